package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"cardapi/internal/config"
)

var Version = "dev"

func main() {
	if err := newRootCmd(config.Load()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Template flags default to the
// CARD_REGISTRY_FILE and CARD_TEMPLATE_DIR settings the API uses.
func newRootCmd(cfg *config.AppConfig) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cardctl",
		Short:         "Inspect card templates and render card documents locally",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("registry", cfg.Card.RegistryFile, "YAML template registry (built-in table when empty)")
	rootCmd.PersistentFlags().String("templates", cfg.Card.TemplateDir, "Directory the built-in template images live in")

	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(renderCmd(cfg))
	rootCmd.AddCommand(inspectCmd())

	return rootCmd
}
