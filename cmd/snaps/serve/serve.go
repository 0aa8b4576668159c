// Package servecmder provides the serve command that runs the snaps API.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/app"
	"github.com/papercomputeco/snaps/pkg/config"
	"github.com/papercomputeco/snaps/pkg/logger"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 15 * time.Second

type ServeCommander struct {
	debug    bool
	jsonLogs bool
	listen   string
	logger   *zap.Logger
}

const serveLongDesc string = `Run the snaps API server.

The record store, blob store, vector store, embedder, optional redis query
cache and event publisher are built from config.toml, SNAPS_* environment
variables and the flags below. The MCP search tool is served at /mcp unless
api.mcp is false.

Examples:
  snaps serve
  snaps serve --vector-store-provider qdrant --vector-store-target localhost:6334
  snaps serve --storage-provider postgres --postgres-dsn postgres://localhost/snaps`

const serveShortDesc string = "Run the snaps API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cfg, err := config.Resolve(cmd, config.StackFlags, append(config.StackFlagKeys(), config.FlagAPIListen))
			if err != nil {
				return err
			}

			return cmder.run(cmd.Context(), cfg)
		},
	}

	config.AddStringFlag(cmd, config.StackFlags, config.FlagAPIListen, &cmder.listen)
	config.AddStackFlags(cmd)
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write logs as JSON")

	return cmd
}

func (c *ServeCommander) run(ctx context.Context, cfg *config.Config) error {
	if c.jsonLogs {
		c.logger = logger.NewJSONLogger(c.debug, os.Stderr)
	} else {
		c.logger = logger.NewLogger(c.debug)
	}
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

	server, err := stack.NewServer()
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run()
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	case <-sigCtx.Done():
		c.logger.Info("received signal, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
