// Package reconcilecmder provides the reconcile command, which repairs
// drift between the record store, blob store and vector store.
package reconcilecmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/app"
	"github.com/papercomputeco/snaps/pkg/cliui"
	"github.com/papercomputeco/snaps/pkg/config"
	"github.com/papercomputeco/snaps/pkg/logger"
	"github.com/papercomputeco/snaps/pkg/reindex"
)

type reconcileCommander struct {
	debug   bool
	prune   bool
	workers int
	jsonOut bool

	logger *zap.Logger
}

const reconcileLongDesc string = `Repair drift between records, blobs and vectors.

Records with no vector are re-embedded from their stored image. Records
whose image is missing from the blob store are reported, and deleted along
with their vector when --prune is given. Vectors with no record are
reported, and deleted when --prune is given.

Examples:
  snaps reconcile
  snaps reconcile --prune --json`

const reconcileShortDesc string = "Repair drift between records and vectors"

func NewReconcileCmd() *cobra.Command {
	cmder := &reconcileCommander{}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: reconcileShortDesc,
		Long:  reconcileLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cfg, err := config.Resolve(cmd, config.StackFlags, config.StackFlagKeys())
			if err != nil {
				return err
			}

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().BoolVar(&cmder.prune, "prune", false, "Delete records whose image is missing and vectors with no record")
	cmd.Flags().IntVar(&cmder.workers, "workers", 4, "Concurrent embedding requests")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the report as JSON")
	config.AddStackFlags(cmd)

	return cmd
}

func (c *reconcileCommander) run(ctx context.Context, w io.Writer, cfg *config.Config) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}

	stack, err := app.New(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			c.logger.Warn("failed to close stack", zap.Error(err))
		}
	}()

	reindexer, err := stack.NewReindexer(c.workers, 0)
	if err != nil {
		return err
	}

	var report *reindex.Report
	err = cliui.Step(w, "Reconciling stores", func() error {
		var err error
		report, err = reindexer.Reconcile(ctx, c.prune)
		return err
	})
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	rows := []struct {
		key   string
		value int
	}{
		{"records", report.Records},
		{"reembedded", report.Reembedded},
		{"failed", report.Failed},
		{"missing blobs", report.MissingBlobs},
		{"pruned", report.Pruned},
		{"orphan vectors", report.OrphanVectors},
		{"pruned vectors", report.PrunedVectors},
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		fmt.Fprintf(w, "  %s %d\n", cliui.KeyStyle.Render(fmt.Sprintf("%-14s", row.key+":")), row.value)
	}

	if report.MissingBlobs > report.Pruned || report.OrphanVectors > report.PrunedVectors {
		fmt.Fprintf(w, "\n  %s\n", cliui.DimStyle.Render("run with --prune to delete records whose image is missing and vectors with no record"))
	}
	return nil
}
