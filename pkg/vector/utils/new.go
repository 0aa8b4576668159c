package vectorutils

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/vector"
	"github.com/papercomputeco/snaps/pkg/vector/chroma"
	"github.com/papercomputeco/snaps/pkg/vector/inmemory"
	"github.com/papercomputeco/snaps/pkg/vector/pgvector"
	"github.com/papercomputeco/snaps/pkg/vector/qdrant"
	"github.com/papercomputeco/snaps/pkg/vector/sqlitevec"
)

// Supported vector store providers.
const (
	ProviderQdrant   = "qdrant"
	ProviderPGVector = "pgvector"
	ProviderSQLite   = "sqlite"
	ProviderChroma   = "chroma"
	ProviderMemory   = "memory"
)

type NewVectorDriverOpts struct {
	ProviderType string

	// Target is provider specific: a host:port for qdrant, a DSN for
	// pgvector, a file path for sqlite and a URL for chroma.
	Target string

	Collection string
	APIKey     string
	Dimensions uint
	Logger     *zap.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case ProviderQdrant:
		return qdrant.NewDriver(ctx, qdrant.Config{
			Target:         o.Target,
			APIKey:         o.APIKey,
			CollectionName: o.Collection,
			Dimensions:     o.Dimensions,
		}, o.Logger)
	case ProviderPGVector:
		return pgvector.NewDriver(ctx, pgvector.Config{
			ConnString: o.Target,
			Table:      o.Collection,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case ProviderSQLite:
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.Target,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case ProviderChroma:
		return chroma.NewDriver(chroma.Config{
			URL:            o.Target,
			CollectionName: o.Collection,
		}, o.Logger)
	case ProviderMemory:
		return inmemory.NewDriver(o.Dimensions, o.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
