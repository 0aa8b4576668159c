package vector

import "errors"

var (
	// ErrNotFound is returned when a document is not found in the vector store.
	ErrNotFound = errors.New("document not found")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")

	// ErrDimensionMismatch is returned when a vector's length differs from
	// the dimension the store was created with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
