package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cardapi/internal/card"
	"cardapi/internal/cardpdf"
	"cardapi/internal/config"
)

// anyNumber accepts every candidate; local renders reserve nothing.
type anyNumber struct{}

func (anyNumber) Reserve(context.Context, string) (bool, error) { return true, nil }

func renderCmd(cfg *config.AppConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a card document to a local PDF file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cardType, _ := cmd.Flags().GetString("type")
			name, _ := cmd.Flags().GetString("name")
			number, _ := cmd.Flags().GetString("number")
			from, _ := cmd.Flags().GetString("from")
			outPath, _ := cmd.Flags().GetString("out")
			verify, _ := cmd.Flags().GetString("verify-url")
			policyName, _ := cmd.Flags().GetString("policy")

			policy, err := card.ParsePolicy(policyName)
			if err != nil {
				return err
			}
			tiers := card.DefaultTiers(policy)
			tier, err := tiers.Resolve(cardType)
			if err != nil {
				return err
			}

			issue := time.Now()
			if from != "" {
				d, err := card.ParseDate(from)
				if err != nil {
					return err
				}
				issue = d.Time
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if number == "" {
				number, err = card.NewAllocator(tiers, anyNumber{}).Allocate(ctx, cardType)
				if err != nil {
					return err
				}
			}

			registry, err := loadRegistry(cmd)
			if err != nil {
				return err
			}
			fonts, err := cardpdf.LoadFonts(registry.Fonts())
			if err != nil {
				return err
			}
			renderer, err := cardpdf.NewRenderer(fonts, cardpdf.WithVerifyURL(verify))
			if err != nil {
				return err
			}

			doc, err := cardpdf.NewGenerator(registry, renderer, nil).Build(ctx, cardpdf.RenderRequest{
				CardType:   cardType,
				HolderName: name,
				CardNumber: number,
				Validity:   card.ComputeValidity(tier, issue),
			})
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = cardpdf.StoragePath("", number)
			}
			if err := os.WriteFile(outPath, doc.PDF, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d pages  %d bytes\n", number, outPath, len(doc.Pages), len(doc.PDF))
			return nil
		},
	}

	cmd.Flags().StringP("type", "t", "edupass", "Card type")
	cmd.Flags().StringP("name", "n", "", "Holder name printed on the card")
	cmd.Flags().String("number", "", "Card number (drawn at random when empty)")
	cmd.Flags().String("from", "", "Issue date YYYY-MM-DD (today when empty)")
	cmd.Flags().StringP("out", "o", "", "Output file (<number>.pdf when empty)")
	cmd.Flags().String("verify-url", cfg.Card.VerifyURLBase, "Verification URL base for the QR code")
	cmd.Flags().String("policy", cfg.Card.PrefixPolicy, "Prefix policy for unknown card types: strict or fallback")

	return cmd
}
