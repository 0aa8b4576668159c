package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/imageutil"
)

// defaultSettle is how long a file must go without writes before it is
// enqueued.
const defaultSettle = 500 * time.Millisecond

// Enqueuer accepts jobs. *Pool satisfies it.
type Enqueuer interface {
	Enqueue(job Job) bool
}

// WatcherConfig configures a directory Watcher.
type WatcherConfig struct {
	// Dir is the directory to watch. Subdirectories are not followed.
	Dir string

	// Template supplies the building, shot date and notes for every job.
	Template Job

	// Settle is the quiet period after the last write event before a file
	// is enqueued. Defaults to 500ms.
	Settle time.Duration

	// Seen lists paths that are already ingested and must be skipped.
	Seen []string

	Enqueuer Enqueuer
	Logger   *zap.Logger
}

// Watcher enqueues image files as they appear in a directory.
type Watcher struct {
	config  *WatcherConfig
	logger  *zap.Logger
	pending map[string]time.Time
	seen    map[string]struct{}
}

// NewWatcher validates the config and returns a Watcher.
func NewWatcher(c *WatcherConfig) (*Watcher, error) {
	if c.Enqueuer == nil {
		return nil, fmt.Errorf("watcher requires an enqueuer")
	}
	if c.Dir == "" {
		return nil, fmt.Errorf("watcher requires a directory")
	}
	if c.Settle <= 0 {
		c.Settle = defaultSettle
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	w := &Watcher{
		config:  c,
		logger:  c.Logger,
		pending: make(map[string]time.Time),
		seen:    make(map[string]struct{}, len(c.Seen)),
	}
	for _, p := range c.Seen {
		w.seen[filepath.Clean(p)] = struct{}{}
	}
	return w, nil
}

// Run watches until ctx is done. It returns nil on cancellation and an
// error if the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating directory watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.config.Dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.config.Dir, err)
	}

	ticker := time.NewTicker(max(w.config.Settle/4, time.Millisecond))
	defer ticker.Stop()

	w.logger.Info("watching directory", zap.String("dir", w.config.Dir))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.observe(event, time.Now())

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("directory watcher error: %w", err)

		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

// observe records a create or write of an image file. Every event pushes
// the file's deadline back by the settle period.
func (w *Watcher) observe(event fsnotify.Event, now time.Time) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	path := filepath.Clean(event.Name)
	if !imageutil.IsImageFile(path) {
		return
	}
	if _, ok := w.seen[path]; ok {
		return
	}

	w.pending[path] = now.Add(w.config.Settle)
}

// flush enqueues every pending file whose settle deadline has passed.
func (w *Watcher) flush(now time.Time) {
	for path, deadline := range w.pending {
		if now.Before(deadline) {
			continue
		}
		delete(w.pending, path)
		w.seen[path] = struct{}{}

		job := w.config.Template
		job.Path = path
		if !w.config.Enqueuer.Enqueue(job) {
			w.logger.Warn("dropped new file", zap.String("path", path))
		}
	}
}
