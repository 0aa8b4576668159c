// Package sqlite provides a SQLite-backed record store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/mattn/go-sqlite3"

	entdriver "github.com/papercomputeco/snaps/pkg/storage/ent/driver"
)

// Driver implements storage.Driver using SQLite via the ent driver
type Driver struct {
	*entdriver.EntDriver
}

// NewDriver creates a new SQLite-backed record store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	d := &Driver{
		EntDriver: &entdriver.EntDriver{
			Driver: entsql.OpenDB(dialect.SQLite, db),
		},
	}

	if err := d.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}
