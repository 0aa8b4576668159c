package blobutils

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/blob"
	"github.com/papercomputeco/snaps/pkg/blob/local"
	"github.com/papercomputeco/snaps/pkg/blob/minio"
)

// Supported blob store providers.
const (
	ProviderLocal = "local"
	ProviderMinio = "minio"
)

type NewBlobStoreOpts struct {
	ProviderType string

	// Local provider
	Root    string
	BaseURL string

	// MinIO provider
	Endpoint      string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	Region        string
	PresignExpiry time.Duration

	Logger *zap.Logger
}

func NewBlobStore(ctx context.Context, o *NewBlobStoreOpts) (blob.Store, error) {
	switch o.ProviderType {
	case ProviderLocal, "":
		return local.NewStore(local.Config{
			Root:    o.Root,
			BaseURL: o.BaseURL,
			Logger:  o.Logger,
		})
	case ProviderMinio:
		return minio.NewStore(ctx, minio.Config{
			Endpoint:      o.Endpoint,
			AccessKey:     o.AccessKey,
			SecretKey:     o.SecretKey,
			Bucket:        o.Bucket,
			UseSSL:        o.UseSSL,
			Region:        o.Region,
			PresignExpiry: o.PresignExpiry,
			Logger:        o.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported blob provider: %s", o.ProviderType)
	}
}
