// Package snipstashcmder
package snipstashcmder

import (
	"github.com/spf13/cobra"

	backfillcmder "github.com/snipstash/snipstash/cmd/snipstash/backfill"
	configcmder "github.com/snipstash/snipstash/cmd/snipstash/config"
	searchcmder "github.com/snipstash/snipstash/cmd/snipstash/search"
	seedcmder "github.com/snipstash/snipstash/cmd/snipstash/seed"
	servecmder "github.com/snipstash/snipstash/cmd/snipstash/serve"
	versioncmder "github.com/snipstash/snipstash/cmd/version"
)

const snipstashLongDesc string = `Snipstash is a semantic store for code snippets.

Snippets are embedded on write and searched by meaning, not by keyword:
  snipstash serve                 Run the HTTP API server
  snipstash search "<query>"      Search snippets via a running server
  snipstash backfill              Re-embed snippets with missing or stale vectors`

const snipstashShortDesc string = "Snipstash - Semantic Snippet Store"

func NewSnipstashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snipstash",
		Short: snipstashShortDesc,
		Long:  snipstashLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .snipstash/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(backfillcmder.NewBackfillCmd())
	cmd.AddCommand(seedcmder.NewSeedCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
