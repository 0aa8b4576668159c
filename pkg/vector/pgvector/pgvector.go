// Package pgvector provides a PostgreSQL vector driver using the pgvector
// extension.
package pgvector

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/vector"
)

// DefaultTable is the table holding image vectors.
const DefaultTable = "snaps_vectors"

// Driver implements vector.Driver on PostgreSQL with pgvector.
type Driver struct {
	pool       *pgxpool.Pool
	table      string
	dimensions uint
	logger     *zap.Logger
}

// Config holds configuration for the pgvector driver.
type Config struct {
	// ConnString is a PostgreSQL connection string or URL.
	ConnString string

	// Table defaults to DefaultTable.
	Table string

	// Dimensions is the embedding size of the vector column.
	Dimensions uint
}

// NewDriver connects to PostgreSQL, enables the vector extension and
// creates the vector table with an HNSW cosine index.
func NewDriver(ctx context.Context, c Config, logger *zap.Logger) (*Driver, error) {
	if c.ConnString == "" {
		return nil, fmt.Errorf("pgvector connection string is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("pgvector embedding dimensions cannot be 0, must be configured")
	}

	table := c.Table
	if table == "" {
		table = DefaultTable
	}

	pool, err := pgxpool.New(ctx, c.ConnString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	d := &Driver{
		pool:       pool,
		table:      pgx.Identifier{table}.Sanitize(),
		dimensions: c.Dimensions,
		logger:     logger,
	}

	if err := d.migrate(ctx, table); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("pgvector vector driver initialized",
		zap.String("table", table),
		zap.Uint("dimensions", c.Dimensions),
	)

	return d, nil
}

func (d *Driver) migrate(ctx context.Context, table string) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			building TEXT NOT NULL DEFAULT '',
			shot_date TEXT NOT NULL DEFAULT '',
			shot_ymd INTEGER NOT NULL DEFAULT 0,
			image_url TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			namespace TEXT NOT NULL DEFAULT ''
		)`, d.table, d.dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pgx.Identifier{table + "_embedding_idx"}.Sanitize(), d.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (building)`,
			pgx.Identifier{table + "_building_idx"}.Sanitize(), d.table),
	}
	for _, stmt := range stmts {
		if _, err := d.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrating pgvector schema: %w", err)
		}
	}

	// For vector columns atttypmod holds the declared dimensions.
	var typmod int
	err := d.pool.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = $1::regclass AND attname = 'embedding'`, d.table,
	).Scan(&typmod)
	if err != nil {
		return fmt.Errorf("reading vector column dimensions: %w", err)
	}
	if typmod > 0 && uint(typmod) != d.dimensions {
		return fmt.Errorf("%w: table %s has vector(%d), embedder produces %d",
			vector.ErrDimensionMismatch, d.table, typmod, d.dimensions)
	}
	return nil
}

func (d *Driver) checkDims(v []float32) error {
	if uint(len(v)) != d.dimensions {
		return fmt.Errorf("%w: got %d, want %d", vector.ErrDimensionMismatch, len(v), d.dimensions)
	}
	return nil
}

// Add upserts documents in a single batch.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, building, shot_date, shot_ymd, image_url, notes, namespace)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			building = EXCLUDED.building,
			shot_date = EXCLUDED.shot_date,
			shot_ymd = EXCLUDED.shot_ymd,
			image_url = EXCLUDED.image_url,
			notes = EXCLUDED.notes,
			namespace = EXCLUDED.namespace`, d.table)

	batch := &pgx.Batch{}
	for _, doc := range docs {
		if err := d.checkDims(doc.Embedding); err != nil {
			return fmt.Errorf("adding document %s: %w", doc.ID, err)
		}
		m := doc.Metadata
		batch.Queue(query, doc.ID, pgv.NewVector(doc.Embedding),
			m.Building, m.ShotDate, m.ShotYMD, m.ImageURL, m.Notes, m.Namespace)
	}

	if err := d.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting vectors: %w", err)
	}

	d.logger.Debug("added documents to pgvector", zap.Int("count", len(docs)))
	return nil
}

// whereClause renders the filter with positional parameters starting at
// the given index.
func whereClause(f vector.Filter, start int) (string, []any) {
	var conds []string
	var args []any
	next := func(cond string, arg any) {
		conds = append(conds, fmt.Sprintf(cond, start+len(args)))
		args = append(args, arg)
	}

	if f.Building != "" {
		next("building = $%d", f.Building)
	}
	if f.Namespace != "" {
		next("namespace = $%d", f.Namespace)
	}
	if f.FromYMD != 0 {
		next("shot_ymd >= $%d", f.FromYMD)
	}
	if f.ToYMD != 0 {
		next("shot_ymd <= $%d", f.ToYMD)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// Query returns the topK documents by cosine similarity among those
// matching the filter.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}
	if err := d.checkDims(embedding); err != nil {
		return nil, err
	}

	where, whereArgs := whereClause(filter, 2)
	query := fmt.Sprintf(`
		SELECT id, building, shot_date, shot_ymd, image_url, notes, namespace, embedding <=> $1 AS distance
		FROM %s
		%s
		ORDER BY distance
		LIMIT %d`, d.table, where, topK)

	args := append([]any{pgv.NewVector(embedding)}, whereArgs...)
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var doc vector.Document
		var distance float64
		m := &doc.Metadata
		if err := rows.Scan(&doc.ID, &m.Building, &m.ShotDate, &m.ShotYMD, &m.ImageURL, &m.Notes, &m.Namespace, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		results = append(results, vector.QueryResult{
			Document: doc,
			Score:    float32(1 - distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried pgvector", zap.Int("results", len(results)))
	return results, nil
}

// Get retrieves documents with embeddings by ID.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, embedding, building, shot_date, shot_ymd, image_url, notes, namespace
		FROM %s WHERE id = ANY($1)`, d.table)

	rows, err := d.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []vector.Document
	for rows.Next() {
		var doc vector.Document
		var emb pgv.Vector
		m := &doc.Metadata
		if err := rows.Scan(&doc.ID, &emb, &m.Building, &m.ShotDate, &m.ShotYMD, &m.ImageURL, &m.Notes, &m.Namespace); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		doc.Embedding = emb.Slice()
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// IDs returns every stored document ID.
func (d *Driver) IDs(ctx context.Context) ([]string, error) {
	rows, err := d.pool.Query(ctx, fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, d.table))
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning document ids: %w", err)
	}
	return ids, nil
}

// Delete removes documents by ID.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, d.table)
	if _, err := d.pool.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	d.logger.Debug("deleted documents from pgvector", zap.Int("count", len(ids)))
	return nil
}

// Reset truncates the vector table.
func (d *Driver) Reset(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, d.table)); err != nil {
		return fmt.Errorf("truncating %s: %w", d.table, err)
	}
	d.logger.Info("reset pgvector table", zap.String("table", d.table))
	return nil
}

// Close closes the connection pool.
func (d *Driver) Close() error {
	d.pool.Close()
	return nil
}

var (
	_ vector.Driver = (*Driver)(nil)
	_ vector.Lister = (*Driver)(nil)
)
