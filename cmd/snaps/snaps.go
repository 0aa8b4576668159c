// Package snapscmder
package snapscmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/snaps/cmd/snaps/config"
	ingestcmder "github.com/papercomputeco/snaps/cmd/snaps/ingest"
	reconcilecmder "github.com/papercomputeco/snaps/cmd/snaps/reconcile"
	reembedcmder "github.com/papercomputeco/snaps/cmd/snaps/reembed"
	resetindexcmder "github.com/papercomputeco/snaps/cmd/snaps/resetindex"
	searchcmder "github.com/papercomputeco/snaps/cmd/snaps/search"
	servecmder "github.com/papercomputeco/snaps/cmd/snaps/serve"
	showcmder "github.com/papercomputeco/snaps/cmd/snaps/show"
	uploadcmder "github.com/papercomputeco/snaps/cmd/snaps/upload"
	versioncmder "github.com/papercomputeco/snaps/cmd/version"
)

const snapsLongDesc string = `Snaps stores site photos with their building and shot date and finds
them again by text or by a reference image.

Run the server:
  snaps serve                      Run the HTTP API (and MCP endpoint)

Talk to a running server:
  snaps upload <file>...           Upload images
  snaps search [query]             Search by text, image or filters
  snaps show <id|n>                Show one image record

Work on the stores directly:
  snaps ingest <dir>               Ingest a directory of images (--watch to follow it)
  snaps reembed                    Rebuild every vector from the stored images
  snaps reset-index                Drop and recreate the vector collection
  snaps reconcile                  Repair drift between records and vectors`

const snapsShortDesc string = "Snaps - image ingest and search"

func NewSnapsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "snaps",
		Short:         snapsShortDesc,
		Long:          snapsLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .snaps/ config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(uploadcmder.NewUploadCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(showcmder.NewShowCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(reembedcmder.NewReembedCmd())
	cmd.AddCommand(resetindexcmder.NewResetIndexCmd())
	cmd.AddCommand(reconcilecmder.NewReconcileCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
