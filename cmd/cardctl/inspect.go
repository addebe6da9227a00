package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cardapi/internal/cardpdf"
)

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [file.pdf]",
		Short: "Print the page count and page sizes of a card document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			pages, err := cardpdf.InspectPages(data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d page(s)\n", args[0], len(pages))
			for i, p := range pages {
				fmt.Fprintf(out, "  page %d: %.0f x %.0f pt\n", i+1, p.Width, p.Height)
			}
			return nil
		},
	}
}
