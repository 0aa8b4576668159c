package storageutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/snaps/pkg/storage"
	"github.com/papercomputeco/snaps/pkg/storage/inmemory"
	"github.com/papercomputeco/snaps/pkg/storage/postgres"
	"github.com/papercomputeco/snaps/pkg/storage/sqlite"
)

// Supported record store providers.
const (
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
	ProviderMemory   = "memory"
)

type NewStorageDriverOpts struct {
	ProviderType string
	SQLitePath   string
	PostgresDSN  string
}

func NewStorageDriver(ctx context.Context, o *NewStorageDriverOpts) (storage.Driver, error) {
	switch o.ProviderType {
	case ProviderSQLite:
		if o.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite record store requires a path")
		}
		return sqlite.NewDriver(ctx, o.SQLitePath)
	case ProviderPostgres:
		if o.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres record store requires a DSN")
		}
		return postgres.NewDriver(ctx, o.PostgresDSN)
	case ProviderMemory, "":
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", o.ProviderType)
	}
}
