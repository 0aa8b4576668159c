// Package vector provides interfaces and implementations for storing image
// embeddings and querying them by similarity with metadata filters.
package vector

import "context"

// Document represents a stored image vector with its metadata payload.
type Document struct {
	// ID is the image record ID the vector belongs to.
	ID string

	// Embedding is the vector representation of the image.
	Embedding []float32

	// Metadata is the filterable payload stored next to the vector.
	Metadata Metadata
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score represents the similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of image embeddings.
type Driver interface {
	// Add stores documents with their embeddings.
	// If a document with the same ID already exists, implementers should
	// replace it.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding
	// that satisfy filter, ordered by descending score.
	Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]QueryResult, error)

	// Get retrieves documents by their IDs. Unknown IDs are omitted.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Reset drops every stored document and recreates the underlying
	// collection or table.
	Reset(ctx context.Context) error

	// Close releases any resources held by the driver.
	Close() error
}

// Lister is implemented by drivers that can enumerate every stored ID.
// Reconciliation uses it to find vectors whose record is gone.
type Lister interface {
	IDs(ctx context.Context) ([]string, error)
}
