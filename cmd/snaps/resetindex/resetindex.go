// Package resetindexcmder provides the reset-index command, which drops and
// recreates the vector collection.
package resetindexcmder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/app"
	"github.com/papercomputeco/snaps/pkg/cliui"
	"github.com/papercomputeco/snaps/pkg/config"
	"github.com/papercomputeco/snaps/pkg/logger"
)

// ErrNotConfirmed is returned when reset-index runs without --yes.
var ErrNotConfirmed = errors.New("refusing to drop the vector collection without --yes")

type resetIndexCommander struct {
	debug bool
	yes   bool

	logger *zap.Logger
}

const resetIndexLongDesc string = `Drop and recreate the vector collection.

Records and images are kept. Search returns nothing until the vectors are
rebuilt with "snaps reembed".

Examples:
  snaps reset-index --yes
  snaps reset-index --yes --vector-store-provider qdrant --vector-store-target localhost:6334`

const resetIndexShortDesc string = "Drop and recreate the vector collection"

func NewResetIndexCmd() *cobra.Command {
	cmder := &resetIndexCommander{}

	cmd := &cobra.Command{
		Use:   "reset-index",
		Short: resetIndexShortDesc,
		Long:  resetIndexLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmder.yes {
				return ErrNotConfirmed
			}

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

	cmd.Flags().BoolVarP(&cmder.yes, "yes", "y", false, "Confirm dropping every vector")
	config.AddStackFlags(cmd)

	return cmd
}

func (c *resetIndexCommander) run(ctx context.Context, w io.Writer, cfg *config.Config) error {
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

	err = cliui.Step(w, fmt.Sprintf("Resetting %s collection %q", cfg.VectorStore.Provider, cfg.VectorStore.Collection), func() error {
		return stack.Vectors.Reset(ctx)
	})
	if err != nil {
		return fmt.Errorf("resetting vector collection: %w", err)
	}

	fmt.Fprintf(w, "\n  %s\n", cliui.DimStyle.Render(`run "snaps reembed" to rebuild the vectors`))
	return nil
}
