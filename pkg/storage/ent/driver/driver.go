// Package entdriver implements storage.Driver with ent's dialect-aware SQL
// builder, so the same queries run on SQLite and PostgreSQL.
package entdriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/snaps/pkg/storage"
)

const imagesTable = "images"

var recordColumns = []string{
	"id", "building", "shot_date", "shot_ymd", "notes",
	"storage_key", "content_type", "checksum", "namespace", "created_at",
}

// EntDriver provides storage operations using an ent SQL driver.
// It is database-agnostic and can be embedded by specific drivers.
type EntDriver struct {
	Driver *entsql.Driver
}

func (ed *EntDriver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(ed.Driver.Dialect())
}

// schema is plain DDL shared by SQLite and PostgreSQL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS images (
		id TEXT NOT NULL PRIMARY KEY,
		building TEXT NOT NULL,
		shot_date TEXT NOT NULL,
		shot_ymd INTEGER NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		storage_key TEXT NOT NULL,
		content_type TEXT NOT NULL,
		checksum TEXT NOT NULL,
		namespace TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS images_building_shot_ymd ON images (building, shot_ymd)`,
	`CREATE INDEX IF NOT EXISTS images_created_at ON images (created_at)`,
}

// Migrate creates the images table and its indexes when missing.
func (ed *EntDriver) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := ed.Driver.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Create inserts a record.
func (ed *EntDriver) Create(ctx context.Context, rec *storage.Record) error {
	if rec == nil {
		return errors.New("cannot store nil record")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query, args := ed.builder().Insert(imagesTable).
		Columns(recordColumns...).
		Values(
			rec.ID, rec.Building, rec.ShotDate, rec.ShotYMD, rec.Notes,
			rec.StorageKey, rec.ContentType, rec.Checksum, rec.Namespace, rec.CreatedAt,
		).
		Query()

	var res sql.Result
	if err := ed.Driver.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("could not execute record creation: %w", err)
	}
	return nil
}

// Get retrieves a record by id.
func (ed *EntDriver) Get(ctx context.Context, id string) (*storage.Record, error) {
	query, args := ed.builder().Select(recordColumns...).
		From(ed.builder().Table(imagesTable)).
		Where(entsql.EQ("id", id)).
		Query()

	recs, err := ed.queryRecords(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if len(recs) == 0 {
		return nil, storage.NotFoundError{ID: id}
	}
	return recs[0], nil
}

// List returns records newest first, optionally for one building.
func (ed *EntDriver) List(ctx context.Context, opts storage.ListOptions) ([]*storage.Record, error) {
	sel := ed.builder().Select(recordColumns...).
		From(ed.builder().Table(imagesTable)).
		OrderBy(entsql.Desc("created_at"), "id")
	if opts.Building != "" {
		sel = sel.Where(entsql.EQ("building", opts.Building))
	}
	switch {
	case opts.Limit > 0:
		sel = sel.Limit(opts.Limit)
	case opts.Offset > 0:
		// SQLite only accepts OFFSET after LIMIT.
		sel = sel.Limit(math.MaxInt32)
	}
	if opts.Offset > 0 {
		sel = sel.Offset(opts.Offset)
	}

	query, args := sel.Query()
	recs, err := ed.queryRecords(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return recs, nil
}

// Delete removes a record by id.
func (ed *EntDriver) Delete(ctx context.Context, id string) error {
	query, args := ed.builder().Delete(imagesTable).
		Where(entsql.EQ("id", id)).
		Query()

	var res sql.Result
	if err := ed.Driver.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{ID: id}
	}
	return nil
}

// Count returns the number of records.
func (ed *EntDriver) Count(ctx context.Context) (int, error) {
	query, args := ed.builder().Select(entsql.Count("*")).
		From(ed.builder().Table(imagesTable)).
		Query()

	rows := &entsql.Rows{}
	if err := ed.Driver.Query(ctx, query, args, rows); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to scan count: %w", err)
		}
	}
	return n, rows.Err()
}

// Buildings returns per-building counts ordered by building.
func (ed *EntDriver) Buildings(ctx context.Context) ([]storage.BuildingCount, error) {
	query, args := ed.builder().Select("building", entsql.Count("*")).
		From(ed.builder().Table(imagesTable)).
		GroupBy("building").
		OrderBy("building").
		Query()

	rows := &entsql.Rows{}
	if err := ed.Driver.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to count buildings: %w", err)
	}
	defer rows.Close()

	var out []storage.BuildingCount
	for rows.Next() {
		var bc storage.BuildingCount
		if err := rows.Scan(&bc.Building, &bc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan building count: %w", err)
		}
		out = append(out, bc)
	}
	return out, rows.Err()
}

func (ed *EntDriver) queryRecords(ctx context.Context, query string, args []any) ([]*storage.Record, error) {
	rows := &entsql.Rows{}
	if err := ed.Driver.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*storage.Record
	for rows.Next() {
		rec := &storage.Record{}
		if err := rows.Scan(
			&rec.ID, &rec.Building, &rec.ShotDate, &rec.ShotYMD, &rec.Notes,
			&rec.StorageKey, &rec.ContentType, &rec.Checksum, &rec.Namespace, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Close closes the underlying database connection.
func (ed *EntDriver) Close() error {
	return ed.Driver.Close()
}

var _ storage.Driver = (*EntDriver)(nil)
