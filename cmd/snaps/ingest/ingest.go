// Package ingestcmder provides the ingest command, which loads a directory
// of images straight into the configured stores.
package ingestcmder

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/app"
	"github.com/papercomputeco/snaps/pkg/cliui"
	"github.com/papercomputeco/snaps/pkg/config"
	"github.com/papercomputeco/snaps/pkg/imageutil"
	"github.com/papercomputeco/snaps/pkg/ingest"
	"github.com/papercomputeco/snaps/pkg/logger"
	"github.com/papercomputeco/snaps/pkg/worker"
)

const (
	defaultBuilding = "Dataset"
	defaultShotDate = "2024-01-01"
	defaultLimit    = 200
)

type ingestCommander struct {
	debug    bool
	building string
	shotDate string
	notes    string
	limit    int
	watch    bool
	workers  uint
	settle   time.Duration

	logger *zap.Logger
}

const ingestLongDesc string = `Ingest a directory of images without going through the API.

Every image file (jpg, png, gif, bmp, tiff, webp) in the directory tree is
validated, embedded and stored with the given building, shot date and notes,
up to --limit files. The stores come from the same configuration as
"snaps serve".

With --watch the directory keeps being watched after the initial pass, and
new files are ingested by a worker pool once they stop changing.

Examples:
  snaps ingest ./photos
  snaps ingest ./site-a --building "North Hall" --shot-date 2023-07-12 --limit 0
  snaps ingest ./dropbox --watch --workers 4`

const ingestShortDesc string = "Ingest a directory of images"

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cfg, err := config.Resolve(cmd, config.StackFlags, config.StackFlagKeys())
			if err != nil {
				return err
			}

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cfg, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.building, "building", "b", defaultBuilding, "Building stamped on every image")
	cmd.Flags().StringVar(&cmder.shotDate, "shot-date", defaultShotDate, "Shot date stamped on every image (YYYY-MM-DD)")
	cmd.Flags().StringVar(&cmder.notes, "notes", "", "Notes stamped on every image")
	cmd.Flags().IntVar(&cmder.limit, "limit", defaultLimit, "Maximum number of files in the initial pass (0 for no limit)")
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Keep watching the directory for new images")
	cmd.Flags().UintVar(&cmder.workers, "workers", 3, "Ingest workers used in watch mode")
	cmd.Flags().DurationVar(&cmder.settle, "settle", 500*time.Millisecond, "Quiet period before a new file is ingested in watch mode")
	config.AddStackFlags(cmd)

	return cmd
}

func (c *ingestCommander) run(ctx context.Context, w io.Writer, cfg *config.Config, dir string) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	files, err := ImageFiles(dir, c.limit)
	if err != nil {
		return err
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

	ingested, failed := c.ingestAll(ctx, w, stack.Ingester, files)
	fmt.Fprintf(w, "\n%s %d ingested, %d failed\n", cliui.HeaderStyle.Render("Done:"), ingested, failed)

	if !c.watch {
		return nil
	}

	return c.watchDir(ctx, w, stack.Ingester, dir, files)
}

// ingestAll stores files one at a time and prints a line per file.
func (c *ingestCommander) ingestAll(ctx context.Context, w io.Writer, ingester *ingest.Ingester, files []string) (int, int) {
	var ingested, failed int
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}

		res, err := c.ingestFile(ctx, ingester, path)
		if err != nil {
			failed++
			fmt.Fprintf(w, "  %s %s %s\n", cliui.FailMark, path, cliui.DimStyle.Render(err.Error()))
			continue
		}

		ingested++
		fmt.Fprintf(w, "  %s %s %s\n", cliui.SuccessMark, path, cliui.DimStyle.Render(res.ID))
	}
	return ingested, failed
}

func (c *ingestCommander) ingestFile(ctx context.Context, ingester *ingest.Ingester, path string) (*ingest.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ingester.Ingest(ctx, ingest.Upload{
		Filename: filepath.Base(path),
		Data:     data,
		Building: c.building,
		ShotDate: c.shotDate,
		Notes:    c.notes,
	})
}

// watchDir runs a worker pool fed by a directory watcher until SIGINT or
// SIGTERM.
func (c *ingestCommander) watchDir(ctx context.Context, w io.Writer, ingester *ingest.Ingester, dir string, seen []string) error {
	pool, err := worker.NewPool(&worker.Config{
		Ingester:   ingester,
		NumWorkers: c.workers,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}

	watcher, err := worker.NewWatcher(&worker.WatcherConfig{
		Dir:      dir,
		Settle:   c.settle,
		Seen:     seen,
		Enqueuer: pool,
		Template: worker.Job{Building: c.building, ShotDate: c.shotDate, Notes: c.notes},
		Logger:   c.logger,
	})
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating directory watcher: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(w, "%s %s %s\n", cliui.HeaderStyle.Render("Watching"), dir, cliui.DimStyle.Render("(ctrl-c to stop)"))
	runErr := watcher.Run(sigCtx)

	pool.Close()
	stats := pool.Stats()
	fmt.Fprintf(w, "\n%s %d ingested, %d failed, %d dropped\n",
		cliui.HeaderStyle.Render("Watched:"), stats.Ingested, stats.Failed, stats.Dropped)

	return runErr
}

// ImageFiles walks dir and returns up to limit image file paths in lexical
// order. A limit of 0 or less returns every file.
func ImageFiles(dir string, limit int) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && len(d.Name()) > 1 && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if imageutil.IsImageFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	sort.Strings(files)
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}
