// Package worker provides an asynchronous worker pool for ingesting image
// files found on disk, for example by a directory watcher.
//
// The pool decouples file discovery from embedding and storage so a burst of
// new files never blocks the watcher.
package worker

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/ingest"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	// Path is the image file to ingest.
	Path string

	Building string
	ShotDate string
	Notes    string
}

// Ingester stores a single upload.
type Ingester interface {
	Ingest(ctx context.Context, u ingest.Upload) (*ingest.Result, error)
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Ingester validates, embeds and stores each file.
	Ingester Ingester

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Stats counts job outcomes.
type Stats struct {
	Ingested int64
	Failed   int64
	Dropped  int64
}

// Pool processes ingest jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger

	ingested atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Ingester == nil {
		return nil, fmt.Errorf("worker pool requires an ingester")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued", zap.String("path", job.Path))
		return true
	default:
		p.dropped.Add(1)
		p.logger.Error("job not queued, queue full, job dropped", zap.String("path", job.Path))
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// Stats returns the job outcome counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Ingested: p.ingested.Load(),
		Failed:   p.failed.Load(),
		Dropped:  p.dropped.Load(),
	}
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("ingest worker stopped", zap.Uint("worker_id", id))
}

// processJob reads the job's file and ingests it.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	data, err := os.ReadFile(job.Path)
	if err != nil {
		p.failed.Add(1)
		p.logger.Error("failed to read image file",
			zap.String("path", job.Path),
			zap.Error(err),
		)
		return
	}

	res, err := p.config.Ingester.Ingest(ctx, ingest.Upload{
		Filename: filepath.Base(job.Path),
		Data:     data,
		Building: job.Building,
		ShotDate: job.ShotDate,
		Notes:    job.Notes,
	})
	if err != nil {
		p.failed.Add(1)
		p.logger.Error("async ingest failed",
			zap.String("path", job.Path),
			zap.Error(err),
		)
		return
	}

	p.ingested.Add(1)
	p.logger.Info("file ingested",
		zap.String("path", job.Path),
		zap.String("id", res.ID),
	)
}
