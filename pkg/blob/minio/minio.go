// Package minio stores blobs in an S3-compatible bucket.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/blob"
)

const (
	// DefaultPresignExpiry is the lifetime of presigned GET URLs.
	DefaultPresignExpiry = 15 * time.Minute

	// MaxPresignExpiry caps configured presign lifetimes.
	MaxPresignExpiry = 15 * time.Minute
)

// Config holds the object store configuration.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// Region skips bucket location lookups when set.
	Region string

	PresignExpiry time.Duration
	Logger        *zap.Logger
}

// Store implements blob.Store on a MinIO or S3 bucket.
type Store struct {
	client *miniogo.Client
	bucket string
	expiry time.Duration
	logger *zap.Logger
}

// NewStore connects to the object store and creates the bucket when it
// does not exist yet.
func NewStore(ctx context.Context, c Config) (*Store, error) {
	s, err := newStore(c)
	if err != nil {
		return nil, err
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	if !exists {
		s.logger.Info("creating bucket", zap.String("bucket", s.bucket))
		if err := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{Region: c.Region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", s.bucket, err)
		}
	}

	return s, nil
}

func newStore(c Config) (*Store, error) {
	if c.Endpoint == "" || c.Bucket == "" {
		return nil, errors.New("minio blob store requires an endpoint and a bucket")
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	client, err := miniogo.New(c.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: c.UseSSL,
		Region: c.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	return &Store{
		client: client,
		bucket: c.Bucket,
		expiry: presignExpiry(c.PresignExpiry),
		logger: c.Logger,
	}, nil
}

func presignExpiry(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultPresignExpiry
	case d > MaxPresignExpiry:
		return MaxPresignExpiry
	default:
		return d
	}
}

func isNotFound(err error) bool {
	resp := miniogo.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	key, err := blob.CleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("putting object %s: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	key, err := blob.CleanKey(key)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
		}
		return nil, fmt.Errorf("reading object %s: %w", key, err)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	key, err := blob.CleanKey(key)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("removing object %s: %w", key, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	key, err := blob.CleanKey(key)
	if err != nil {
		return false, err
	}
	_, err = s.client.StatObject(ctx, s.bucket, key, miniogo.StatObjectOptions{})
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("stat object %s: %w", key, err)
	}
}

// URL returns a presigned GET URL.
func (s *Store) URL(ctx context.Context, key string) (string, error) {
	key, err := blob.CleanKey(key)
	if err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presigning object %s: %w", key, err)
	}
	return u.String(), nil
}

var _ blob.Store = (*Store)(nil)
