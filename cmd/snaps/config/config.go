// Package configcmder provides the config command for managing persistent
// snaps configuration stored in the .snaps/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent snaps configuration.

Configuration is stored as config.toml in the .snaps/ directory and provides
default values for command flags. Precedence, highest first: CLI flags,
SNAPS_* environment variables, config.toml, built-in defaults.

Keys use dotted notation matching the TOML section structure, for example:
  storage.provider, blob.provider, api.listen, client.api_target,
  vector_store.provider, vector_store.target, vector_store.namespace,
  embedding.provider, embedding.dimensions, cache.redis_addr, events.brokers

List values (api.cors_allow_origins, events.brokers) are comma separated.

Use subcommands to get, set, or list configuration values:
  snaps config set <key> <value>    Set a configuration value
  snaps config get <key>            Get a configuration value
  snaps config list                 List all configuration values

Examples:
  snaps config set vector_store.provider qdrant
  snaps config set vector_store.target localhost:6334
  snaps config set events.brokers kafka-1:9092,kafka-2:9092
  snaps config get embedding.dimensions
  snaps config list`

const configShortDesc string = "Manage persistent snaps configuration"

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
