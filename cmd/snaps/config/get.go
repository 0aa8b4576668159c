package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/snaps/pkg/cliui"
	"github.com/papercomputeco/snaps/pkg/config"
)

const getLongDesc string = `Get the effective value of a configuration key.

The value is resolved the same way commands resolve it: SNAPS_* environment
variables first, then config.toml in the .snaps/ directory, then the built-in
default. The source is printed next to the value. Credentials are masked
unless --reveal is given.

Examples:
  snaps config get vector_store.provider
  snaps config get embedding.model
  SNAPS_EMBEDDING_DIMENSIONS=768 snaps config get embedding.dimensions`

const getShortDesc string = "Get a configuration value"

func newGetCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runGet(cmd.OutOrStdout(), args[0], configDir, reveal)
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print credentials in clear text")

	return cmd
}

func runGet(w io.Writer, key, configDir string, reveal bool) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	source, err := cfger.Source(key)
	if err != nil {
		return err
	}

	v, err := config.InitViper(configDir)
	if err != nil {
		return err
	}

	value, err := config.FromViper(v).Value(key)
	if err != nil {
		return err
	}

	switch {
	case value == "":
		value = cliui.DimStyle.Render("<not set>")
	case config.IsSecretKey(key) && !reveal:
		value = cliui.DimStyle.Render("<set>")
	default:
		value = cliui.ValueStyle.Render(value)
	}

	fmt.Fprintf(w, "%s  %s  %s\n", cliui.KeyStyle.Render(key), value, cliui.DimStyle.Render("("+source+")"))
	return nil
}
