// Package embeddings defines the multimodal embedding client used for both
// stored images and search queries.
package embeddings

import "context"

// Embedder maps text and images into a shared vector space.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedImage converts encoded image bytes into a vector embedding.
	EmbedImage(ctx context.Context, data []byte) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
