// Package configcmder provides the config command for managing persistent
// snipstash configuration stored in the .snipstash/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent snipstash configuration.

Configuration is stored as config.toml in the .snipstash/ directory and
provides default values for command flags. CLI flags always take precedence
over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.provider, storage.sqlite_path, storage.postgres_dsn,
  api.listen, mcp.enabled, mcp.listen,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  matcher.provider, matcher.sqlite_path, matcher.qdrant_addr, matcher.qdrant_collection,
  events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  snipstash config set <key> <value>    Set a configuration value
  snipstash config get <key>            Get a configuration value
  snipstash config list                 List all configuration values

Examples:
  snipstash config set storage.provider postgres
  snipstash config set embedding.model nomic-embed-text
  snipstash config get matcher.provider
  snipstash config list`

const configShortDesc string = "Manage persistent snipstash configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
