// Package app assembles the snaps ingest and search stack from a loaded
// configuration. Commands that run the stack in-process (serve, ingest,
// reembed, reconcile) share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/api"
	"github.com/papercomputeco/snaps/api/search"
	"github.com/papercomputeco/snaps/pkg/blob"
	blobutils "github.com/papercomputeco/snaps/pkg/blob/utils"
	"github.com/papercomputeco/snaps/pkg/config"
	"github.com/papercomputeco/snaps/pkg/embeddings"
	"github.com/papercomputeco/snaps/pkg/embeddings/cache"
	embeddingutils "github.com/papercomputeco/snaps/pkg/embeddings/utils"
	"github.com/papercomputeco/snaps/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/snaps/pkg/eventstream/utils"
	"github.com/papercomputeco/snaps/pkg/ingest"
	"github.com/papercomputeco/snaps/pkg/reindex"
	"github.com/papercomputeco/snaps/pkg/storage"
	storageutils "github.com/papercomputeco/snaps/pkg/storage/utils"
	"github.com/papercomputeco/snaps/pkg/vector"
	vectorutils "github.com/papercomputeco/snaps/pkg/vector/utils"
)

// Stack holds every wired component. Close releases them in reverse
// construction order.
type Stack struct {
	Config    *config.Config
	Storage   storage.Driver
	Blobs     blob.Store
	Vectors   vector.Driver
	Embedder  embeddings.Embedder
	Publisher eventstream.Publisher
	Ingester  *ingest.Ingester
	Searcher  *search.Searcher

	logger  *zap.Logger
	closers []func() error
}

// New builds the stack described by cfg. On error every component built so
// far is closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stack, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stack{Config: cfg, logger: logger}

	if err := s.build(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Stack) build(ctx context.Context) error {
	cfg := s.Config

	presign, err := parseDuration("blob.presign_expiry", cfg.Blob.PresignExpiry)
	if err != nil {
		return err
	}
	ttl, err := parseDuration("cache.ttl", cfg.Cache.TTL)
	if err != nil {
		return err
	}

	s.Storage, err = storageutils.NewStorageDriver(ctx, &storageutils.NewStorageDriverOpts{
		ProviderType: cfg.Storage.Provider,
		SQLitePath:   cfg.Storage.SQLitePath,
		PostgresDSN:  cfg.Storage.PostgresDSN,
	})
	if err != nil {
		return fmt.Errorf("creating record store: %w", err)
	}
	s.closers = append(s.closers, s.Storage.Close)
	s.logger.Info("record store ready", zap.String("provider", cfg.Storage.Provider))

	s.Blobs, err = blobutils.NewBlobStore(ctx, &blobutils.NewBlobStoreOpts{
		ProviderType:  cfg.Blob.Provider,
		Root:          cfg.Blob.Root,
		BaseURL:       cfg.Blob.BaseURL,
		Endpoint:      cfg.Blob.Endpoint,
		Bucket:        cfg.Blob.Bucket,
		AccessKey:     cfg.Blob.AccessKey,
		SecretKey:     cfg.Blob.SecretKey,
		UseSSL:        cfg.Blob.UseSSL,
		Region:        cfg.Blob.Region,
		PresignExpiry: presign,
		Logger:        s.logger,
	})
	if err != nil {
		return fmt.Errorf("creating blob store: %w", err)
	}
	s.logger.Info("blob store ready", zap.String("provider", cfg.Blob.Provider))

	s.Vectors, err = vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       cfg.VectorStore.Target,
		Collection:   cfg.VectorStore.Collection,
		APIKey:       cfg.VectorStore.APIKey,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       s.logger,
	})
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	s.closers = append(s.closers, s.Vectors.Close)
	s.logger.Info("vector store ready",
		zap.String("provider", cfg.VectorStore.Provider),
		zap.String("target", cfg.VectorStore.Target),
	)

	s.Embedder, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType:    cfg.Embedding.Provider,
		TargetURL:       cfg.Embedding.Target,
		Model:           cfg.Embedding.Model,
		Dimensions:      cfg.Embedding.Dimensions,
		VisionModelPath: cfg.Embedding.VisionModelPath,
		TextModelPath:   cfg.Embedding.TextModelPath,
		TokenizerPath:   cfg.Embedding.TokenizerPath,
		LibraryPath:     cfg.Embedding.ONNXLibraryPath,
		Logger:          s.logger,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	if cfg.Cache.RedisAddr != "" {
		cached, err := cache.NewEmbedder(ctx, s.Embedder, cache.Config{
			Addr:      cfg.Cache.RedisAddr,
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			TTL:       ttl,
			KeyPrefix: fmt.Sprintf("%s:%s:%d", cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimensions),
			Logger:    s.logger,
		})
		if err != nil {
			_ = s.Embedder.Close()
			return fmt.Errorf("creating embedding cache: %w", err)
		}
		s.Embedder = cached
	}
	s.closers = append(s.closers, s.Embedder.Close)
	s.logger.Info("embedder ready",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Uint("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Cache.RedisAddr != ""),
	)

	s.Publisher, err = eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      cfg.Events.Brokers,
		Topic:        cfg.Events.Topic,
		Logger:       s.logger,
	})
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	s.closers = append(s.closers, s.Publisher.Close)

	s.Ingester, err = ingest.NewIngester(&ingest.Config{
		Storage:      s.Storage,
		VectorDriver: s.Vectors,
		Embedder:     s.Embedder,
		Blobs:        s.Blobs,
		Publisher:    s.Publisher,
		Namespace:    cfg.VectorStore.Namespace,
		Logger:       s.logger,
	})
	if err != nil {
		return err
	}

	s.Searcher, err = search.NewSearcher(&search.Config{
		Embedder:     s.Embedder,
		VectorDriver: s.Vectors,
		Storage:      s.Storage,
		Blobs:        s.Blobs,
		Namespace:    cfg.VectorStore.Namespace,
		Logger:       s.logger,
	})
	return err
}

// NewServer returns the HTTP API over the stack.
func (s *Stack) NewServer() (*api.Server, error) {
	bodyLimit := api.DefaultBodyLimit
	if s.Config.API.BodyLimitMB > 0 {
		bodyLimit = s.Config.API.BodyLimitMB << 20
	}

	return api.NewServer(api.Config{
		ListenAddr:   s.Config.API.Listen,
		AllowOrigins: s.Config.API.CORSAllowOrigins,
		BodyLimit:    bodyLimit,
		Ingester:     s.Ingester,
		Searcher:     s.Searcher,
		Blobs:        s.Blobs,
		EnableMCP:    s.Config.API.MCP,
	}, s.Storage, s.logger)
}

// NewReindexer returns a maintenance runner over the stack.
func (s *Stack) NewReindexer(workers int, rate float64) (*reindex.Reindexer, error) {
	return reindex.NewReindexer(&reindex.Config{
		Storage:      s.Storage,
		VectorDriver: s.Vectors,
		Blobs:        s.Blobs,
		Indexer:      s.Ingester,
		Workers:      workers,
		Rate:         rate,
		Logger:       s.logger,
	})
}

// Close releases every component.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func parseDuration(key, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return d, nil
}
