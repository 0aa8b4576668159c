// Package reembedcmder provides the reembed command, which rebuilds every
// stored vector from the stored image bytes.
package reembedcmder

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

type reembedCommander struct {
	debug   bool
	reset   bool
	workers int
	rate    float64
	jsonOut bool

	logger *zap.Logger
}

const reembedLongDesc string = `Re-embed every stored image.

Each record's image is read back from the blob store, embedded with the
configured model and written to the vector store under the record's id.
Use this after changing the embedding model. With --reset the vector
collection is dropped and recreated first, which is required when the
embedding dimensions change.

Examples:
  snaps reembed
  snaps reembed --reset --embedding-model openai/clip-vit-large-patch14 --embedding-dimensions 768
  snaps reembed --workers 8 --rate 20`

const reembedShortDesc string = "Re-embed every stored image"

func NewReembedCmd() *cobra.Command {
	cmder := &reembedCommander{}

	cmd := &cobra.Command{
		Use:   "reembed",
		Short: reembedShortDesc,
		Long:  reembedLongDesc,
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

	cmd.Flags().BoolVar(&cmder.reset, "reset", false, "Drop and recreate the vector collection first")
	cmd.Flags().IntVar(&cmder.workers, "workers", 4, "Concurrent embedding requests")
	cmd.Flags().Float64Var(&cmder.rate, "rate", 0, "Maximum records per second (0 for no limit)")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the report as JSON")
	config.AddStackFlags(cmd)

	return cmd
}

func (c *reembedCommander) run(ctx context.Context, w io.Writer, cfg *config.Config) error {
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

	reindexer, err := stack.NewReindexer(c.workers, c.rate)
	if err != nil {
		return err
	}

	var report *reindex.Report
	err = cliui.Step(w, "Re-embedding images", func() error {
		var err error
		report, err = reindexer.Reembed(ctx, c.reset)
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

	fmt.Fprintf(w, "\n  %s %d\n  %s %d\n  %s %d\n",
		cliui.KeyStyle.Render("records:   "), report.Records,
		cliui.KeyStyle.Render("reembedded:"), report.Reembedded,
		cliui.KeyStyle.Render("failed:    "), report.Failed,
	)
	if report.Failed > 0 {
		return fmt.Errorf("%d records could not be re-embedded", report.Failed)
	}
	return nil
}
