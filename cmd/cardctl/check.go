package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"cardapi/internal/cardpdf"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify every registered template, its image assets and the fonts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			failed := 0
			for _, t := range registry.CardTypes() {
				tpl, err := registry.Lookup(t)
				if err != nil {
					failed++
					fmt.Fprintf(out, "  %-14s FAIL  %v\n", t, err)
					continue
				}
				fmt.Fprintf(out, "  %-14s OK    %s\n", t, tpl.FrontPath)
			}

			fonts := registry.Fonts()
			if _, err := cardpdf.LoadFonts(fonts); err != nil {
				failed++
				fmt.Fprintf(out, "  %-14s FAIL  %v\n", "fonts", err)
			} else {
				fmt.Fprintf(out, "  %-14s OK    display=%s plain=%s\n", "fonts", fontName(fonts.Display, "Go Bold"), fontName(fonts.Plain, "Go Medium"))
			}

			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func loadRegistry(cmd *cobra.Command) (*cardpdf.Registry, error) {
	file, _ := cmd.Flags().GetString("registry")
	dir, _ := cmd.Flags().GetString("templates")
	if file == "" && dir == "" {
		return nil, errors.New("either --registry or --templates is required")
	}
	return cardpdf.LoadRegistry(file, dir)
}

func fontName(path, builtin string) string {
	if path == "" {
		return builtin
	}
	return path
}
