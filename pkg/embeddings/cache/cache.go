// Package cache wraps an Embedder with a redis-backed cache for text
// embeddings. Search queries repeat far more often than images do, so
// image embeddings pass straight through.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/embeddings"
)

// DefaultTTL is how long a cached query embedding lives.
const DefaultTTL = 24 * time.Hour

// Config holds redis connection settings for the cache.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration

	// KeyPrefix scopes entries, typically to the embedding model.
	KeyPrefix string

	Logger *zap.Logger
}

// store is the subset of redis the cache needs.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// errMiss reports a key that is not cached.
var errMiss = errors.New("cache miss")

type redisStore struct {
	client *redis.Client
}

func (r *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, errMiss
	}
	return b, err
}

func (r *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisStore) Close() error {
	return r.client.Close()
}

// Embedder caches Embed results of the wrapped embedder.
type Embedder struct {
	next   embeddings.Embedder
	store  store
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewEmbedder connects to redis and wraps next.
func NewEmbedder(ctx context.Context, next embeddings.Embedder, c Config) (*Embedder, error) {
	if c.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", c.Addr, err)
	}

	if c.Logger != nil {
		c.Logger.Info("redis embedding cache connected", zap.String("addr", c.Addr))
	}
	return newEmbedder(next, &redisStore{client: client}, c), nil
}

func newEmbedder(next embeddings.Embedder, s store, c Config) *Embedder {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		next:   next,
		store:  s,
		ttl:    ttl,
		prefix: "snaps:emb:" + c.KeyPrefix + ":",
		logger: logger,
	}
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return e.prefix + hex.EncodeToString(sum[:])
}

// Embed returns the cached vector for text or computes and stores it.
// Cache failures are logged and never fail the call.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.key(text)

	b, err := e.store.Get(ctx, key)
	switch {
	case err == nil:
		if v, ok := decode(b); ok {
			return v, nil
		}
		e.logger.Warn("discarding malformed cached embedding", zap.String("key", key))
	case !errors.Is(err, errMiss):
		e.logger.Warn("embedding cache read failed", zap.Error(err))
	}

	v, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.store.Set(ctx, key, encode(v), e.ttl); err != nil {
		e.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return v, nil
}

// EmbedImage delegates to the wrapped embedder.
func (e *Embedder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	return e.next.EmbedImage(ctx, data)
}

// Close closes the redis client and the wrapped embedder.
func (e *Embedder) Close() error {
	return errors.Join(e.store.Close(), e.next.Close())
}

func encode(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decode(b []byte) ([]float32, bool) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, false
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, true
}

var _ embeddings.Embedder = (*Embedder)(nil)
