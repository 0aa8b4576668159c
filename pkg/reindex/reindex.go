// Package reindex rebuilds and repairs the vector store from the record
// store, which is the source of truth for stored images.
package reindex

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/papercomputeco/snaps/pkg/blob"
	"github.com/papercomputeco/snaps/pkg/storage"
	"github.com/papercomputeco/snaps/pkg/vector"
)

const (
	defaultWorkers  = 4
	defaultPageSize = 200
)

// Indexer re-embeds a record's stored image and upserts its vector.
type Indexer interface {
	Reindex(ctx context.Context, rec *storage.Record) error
}

// Config is the configuration for a Reindexer.
type Config struct {
	Storage      storage.Driver
	VectorDriver vector.Driver
	Blobs        blob.Store
	Indexer      Indexer

	// Workers bounds concurrent re-embeds (defaults to 4).
	Workers int

	// Rate limits re-embeds per second. Zero means unlimited.
	Rate float64

	// PageSize is the record store page size used while scanning.
	PageSize int

	Logger *zap.Logger
}

// Report summarizes a maintenance run.
type Report struct {
	// Records is the number of records scanned.
	Records int `json:"records"`

	// Reembedded counts vectors rebuilt from blobs.
	Reembedded int `json:"reembedded"`

	// Failed counts records that could not be re-embedded.
	Failed int `json:"failed"`

	// MissingBlobs counts records whose blob is gone.
	MissingBlobs int `json:"missing_blobs"`

	// Pruned counts records deleted because their blob is gone.
	Pruned int `json:"pruned"`

	// OrphanVectors counts vectors with no record. Only drivers that
	// implement vector.Lister are checked.
	OrphanVectors int `json:"orphan_vectors"`

	// PrunedVectors counts orphan vectors deleted.
	PrunedVectors int `json:"pruned_vectors"`
}

// Reindexer runs reembed and reconcile passes.
type Reindexer struct {
	config  *Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewReindexer returns a Reindexer.
func NewReindexer(c *Config) (*Reindexer, error) {
	if c.Storage == nil || c.VectorDriver == nil || c.Blobs == nil || c.Indexer == nil {
		return nil, errors.New("reindexer requires storage, vector driver, blob store and indexer")
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	limit := rate.Inf
	if c.Rate > 0 {
		limit = rate.Limit(c.Rate)
	}

	return &Reindexer{
		config:  c,
		limiter: rate.NewLimiter(limit, 1),
		logger:  c.Logger,
	}, nil
}

// Reembed rebuilds the vector of every record. With reset the vector
// collection is dropped and recreated first.
func (r *Reindexer) Reembed(ctx context.Context, reset bool) (*Report, error) {
	if reset {
		r.logger.Info("resetting vector store")
		if err := r.config.VectorDriver.Reset(ctx); err != nil {
			return nil, fmt.Errorf("resetting vector store: %w", err)
		}
	}

	recs, err := r.listAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Records: len(recs)}
	ok, failed, err := r.reindexAll(ctx, recs)
	report.Reembedded = ok
	report.Failed = failed
	if err != nil {
		return report, err
	}

	r.logger.Info("reembed finished",
		zap.Int("records", report.Records),
		zap.Int("reembedded", report.Reembedded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// Reconcile restores the one record, one vector invariant. Records whose
// vector is missing are re-embedded. Records whose blob is gone are counted,
// and deleted along with their vector when prune is set. Vectors whose
// record is gone are counted, and deleted when prune is set.
func (r *Reindexer) Reconcile(ctx context.Context, prune bool) (*Report, error) {
	recs, err := r.listAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Records: len(recs)}
	var missingVectors []*storage.Record

	for _, rec := range recs {
		exists, err := r.config.Blobs.Exists(ctx, rec.StorageKey)
		if err != nil {
			return report, fmt.Errorf("checking blob for %s: %w", rec.ID, err)
		}

		if !exists {
			report.MissingBlobs++
			r.logger.Warn("record has no blob",
				zap.String("id", rec.ID),
				zap.String("key", rec.StorageKey),
			)
			if prune {
				if err := r.prune(ctx, rec); err != nil {
					return report, err
				}
				report.Pruned++
			}
			continue
		}

		docs, err := r.config.VectorDriver.Get(ctx, []string{rec.ID})
		if err != nil {
			return report, fmt.Errorf("loading vector for %s: %w", rec.ID, err)
		}
		if len(docs) == 0 {
			missingVectors = append(missingVectors, rec)
		}
	}

	ok, failed, err := r.reindexAll(ctx, missingVectors)
	report.Reembedded = ok
	report.Failed = failed
	if err != nil {
		return report, err
	}

	if err := r.reconcileOrphans(ctx, recs, prune, report); err != nil {
		return report, err
	}

	r.logger.Info("reconcile finished",
		zap.Int("records", report.Records),
		zap.Int("reembedded", report.Reembedded),
		zap.Int("missing_blobs", report.MissingBlobs),
		zap.Int("pruned", report.Pruned),
		zap.Int("orphan_vectors", report.OrphanVectors),
		zap.Int("pruned_vectors", report.PrunedVectors),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// reconcileOrphans finds vectors with no record. It is a no-op for drivers
// that cannot list their IDs.
func (r *Reindexer) reconcileOrphans(ctx context.Context, recs []*storage.Record, prune bool, report *Report) error {
	lister, ok := r.config.VectorDriver.(vector.Lister)
	if !ok {
		r.logger.Debug("vector driver cannot list ids, skipping orphan check")
		return nil
	}

	ids, err := lister.IDs(ctx)
	if err != nil {
		return fmt.Errorf("listing vectors: %w", err)
	}

	known := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		known[rec.ID] = struct{}{}
	}

	var orphans []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	report.OrphanVectors = len(orphans)
	if len(orphans) == 0 {
		return nil
	}

	r.logger.Warn("vectors have no record", zap.Int("count", len(orphans)))
	if !prune {
		return nil
	}

	if err := r.config.VectorDriver.Delete(ctx, orphans); err != nil {
		return fmt.Errorf("pruning orphan vectors: %w", err)
	}
	report.PrunedVectors = len(orphans)
	return nil
}

func (r *Reindexer) prune(ctx context.Context, rec *storage.Record) error {
	if err := r.config.VectorDriver.Delete(ctx, []string{rec.ID}); err != nil {
		return fmt.Errorf("pruning vector %s: %w", rec.ID, err)
	}
	if err := r.config.Storage.Delete(ctx, rec.ID); err != nil && !storage.IsNotFound(err) {
		return fmt.Errorf("pruning record %s: %w", rec.ID, err)
	}
	r.logger.Info("pruned record", zap.String("id", rec.ID))
	return nil
}

// reindexAll re-embeds recs on a bounded, rate limited errgroup. Individual
// failures are logged and counted. Only cancellation aborts the run.
func (r *Reindexer) reindexAll(ctx context.Context, recs []*storage.Record) (int, int, error) {
	var ok, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Workers)

	for _, rec := range recs {
		if err := r.limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			if err := r.config.Indexer.Reindex(gctx, rec); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				r.logger.Warn("failed to re-embed record",
					zap.String("id", rec.ID),
					zap.Error(err),
				)
				return nil
			}
			ok.Add(1)
			r.logger.Debug("re-embedded record", zap.String("id", rec.ID))
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return int(ok.Load()), int(failed.Load()), err
}

func (r *Reindexer) listAll(ctx context.Context) ([]*storage.Record, error) {
	var all []*storage.Record
	for offset := 0; ; offset += r.config.PageSize {
		page, err := r.config.Storage.List(ctx, storage.ListOptions{
			Limit:  r.config.PageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("listing records: %w", err)
		}
		all = append(all, page...)
		if len(page) < r.config.PageSize {
			return all, nil
		}
	}
}
