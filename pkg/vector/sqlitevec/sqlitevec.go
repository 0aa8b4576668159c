// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/vector"
)

// Driver implements vector.Driver using SQLite with sqlite-vec.
type Driver struct {
	db         *sql.DB
	dimensions uint
	logger     *zap.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 virtual tables use integer rowids, so vec_documents maps the
	// string image ID to a rowid and carries the filterable payload.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL UNIQUE,
			building TEXT NOT NULL DEFAULT '',
			shot_date TEXT NOT NULL DEFAULT '',
			shot_ymd INTEGER NOT NULL DEFAULT 0,
			image_url TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			namespace TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_vec_documents_building ON vec_documents(building)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating building index: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d])`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Driver{
		db:         db,
		dimensions: c.Dimensions,
		logger:     logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

func (d *Driver) checkDims(v []float32) error {
	if uint(len(v)) != d.dimensions {
		return fmt.Errorf("%w: got %d, want %d", vector.ErrDimensionMismatch, len(v), d.dimensions)
	}
	return nil
}

// Add stores documents with their embeddings.
// If a document with the same ID already exists, it is replaced.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		if err := d.checkDims(doc.Embedding); err != nil {
			return fmt.Errorf("adding document %s: %w", doc.ID, err)
		}
		embBlob := serializeFloat32(doc.Embedding)
		m := doc.Metadata

		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_documents WHERE doc_id = ?`, doc.ID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			if _, err := tx.ExecContext(ctx, `
				UPDATE vec_documents
				SET building = ?, shot_date = ?, shot_ymd = ?, image_url = ?, notes = ?, namespace = ?
				WHERE rowid = ?`,
				m.Building, m.ShotDate, m.ShotYMD, m.ImageURL, m.Notes, m.Namespace, existingRowID,
			); err != nil {
				return fmt.Errorf("updating document %s: %w", doc.ID, err)
			}

			// vec0 does not support UPDATE
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vec_embeddings WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for doc %s: %w", doc.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for doc %s: %w", doc.ID, err)
			}
		case sql.ErrNoRows:
			result, err := tx.ExecContext(ctx, `
				INSERT INTO vec_documents(doc_id, building, shot_date, shot_ymd, image_url, notes, namespace)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				doc.ID, m.Building, m.ShotDate, m.ShotYMD, m.ImageURL, m.Notes, m.Namespace,
			)
			if err != nil {
				return fmt.Errorf("inserting document %s: %w", doc.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for doc %s: %w", doc.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for doc %s: %w", doc.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added documents to sqlite-vec",
		zap.Int("count", len(docs)),
	)

	return nil
}

// whereClause renders the filter as SQL conditions on vec_documents.
func whereClause(f vector.Filter) (string, []any) {
	var conds []string
	var args []any

	if f.Building != "" {
		conds = append(conds, "d.building = ?")
		args = append(args, f.Building)
	}
	if f.Namespace != "" {
		conds = append(conds, "d.namespace = ?")
		args = append(args, f.Namespace)
	}
	if f.FromYMD != 0 {
		conds = append(conds, "d.shot_ymd >= ?")
		args = append(args, f.FromYMD)
	}
	if f.ToYMD != 0 {
		conds = append(conds, "d.shot_ymd <= ?")
		args = append(args, f.ToYMD)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// Query finds the topK documents closest to the embedding by cosine
// distance among those matching the filter.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}
	if err := d.checkDims(embedding); err != nil {
		return nil, err
	}

	where, whereArgs := whereClause(filter)
	query := fmt.Sprintf(`
		SELECT
			d.doc_id, d.building, d.shot_date, d.shot_ymd, d.image_url, d.notes, d.namespace,
			vec_distance_cosine(ve.embedding, ?) AS distance
		FROM vec_documents d
		INNER JOIN vec_embeddings ve ON ve.rowid = d.rowid
		%s
		ORDER BY distance, d.rowid
		LIMIT ?
	`, where)

	args := make([]any, 0, len(whereArgs)+2)
	args = append(args, serializeFloat32(embedding))
	args = append(args, whereArgs...)
	args = append(args, topK)

	rows, err := d.db.QueryContext(ctx, query, args...)
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
			Score:    float32(1.0 - distance),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec",
		zap.Int("results", len(results)),
	)

	return results, nil
}

func placeholders(ids []string) (string, []any) {
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = "?"
		args[i] = id
	}
	return strings.Join(ph, ","), args
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	in, args := placeholders(ids)
	query := fmt.Sprintf(`
		SELECT d.doc_id, d.building, d.shot_date, d.shot_ymd, d.image_url, d.notes, d.namespace, ve.embedding
		FROM vec_documents d
		LEFT JOIN vec_embeddings ve ON ve.rowid = d.rowid
		WHERE d.doc_id IN (%s)
	`, in)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []vector.Document
	for rows.Next() {
		var doc vector.Document
		var embBlob []byte
		m := &doc.Metadata
		if err := rows.Scan(&doc.ID, &m.Building, &m.ShotDate, &m.ShotYMD, &m.ImageURL, &m.Notes, &m.Namespace, &embBlob); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if len(embBlob) > 0 {
			doc.Embedding, err = deserializeFloat32(embBlob)
			if err != nil {
				return nil, fmt.Errorf("decoding embedding for doc %s: %w", doc.ID, err)
			}
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// IDs returns every stored document ID.
func (d *Driver) IDs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT doc_id FROM vec_documents ORDER BY doc_id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return ids, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	in, args := placeholders(ids)

	deleteVecs := fmt.Sprintf(
		`DELETE FROM vec_embeddings WHERE rowid IN (SELECT rowid FROM vec_documents WHERE doc_id IN (%s))`, in,
	)
	if _, err := tx.ExecContext(ctx, deleteVecs, args...); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}

	deleteDocs := fmt.Sprintf(`DELETE FROM vec_documents WHERE doc_id IN (%s)`, in)
	if _, err := tx.ExecContext(ctx, deleteDocs, args...); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted documents from sqlite-vec",
		zap.Int("count", len(ids)),
	)

	return nil
}

// Reset removes every stored vector.
func (d *Driver) Reset(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_embeddings`); err != nil {
		return fmt.Errorf("clearing embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_documents`); err != nil {
		return fmt.Errorf("clearing documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Info("reset sqlite-vec index")
	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

var (
	_ vector.Driver = (*Driver)(nil)
	_ vector.Lister = (*Driver)(nil)
)
