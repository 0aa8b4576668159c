// Package hash provides a deterministic embedder for development and tests.
// Identical inputs map to identical unit vectors. It carries no semantics
// beyond exact matches.
package hash

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"

	"github.com/papercomputeco/snaps/pkg/embeddings"
	"github.com/papercomputeco/snaps/pkg/vector"
)

// DefaultDimensions is the vector size used when none is configured.
const DefaultDimensions = 512

// Embedder derives vectors from SHA-256 digests of the input.
type Embedder struct {
	dimensions int
}

// NewEmbedder creates a hash embedder producing vectors of the given size.
func NewEmbedder(dimensions uint) *Embedder {
	if dimensions == 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: int(dimensions)}
}

// Embed hashes the trimmed, lower-cased text.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.expand([]byte("text:" + strings.ToLower(strings.TrimSpace(text)))), nil
}

// EmbedImage hashes the raw image bytes.
func (e *Embedder) EmbedImage(_ context.Context, data []byte) ([]float32, error) {
	return e.expand(append([]byte("image:"), data...)), nil
}

// expand stretches the digest of seed into a unit vector by hashing the
// seed with an increasing counter.
func (e *Embedder) expand(seed []byte) []float32 {
	root := sha256.Sum256(seed)
	out := make([]float32, e.dimensions)

	var block [sha256.Size]byte
	var counter [8]byte
	for i := range out {
		if i%8 == 0 {
			binary.LittleEndian.PutUint64(counter[:], uint64(i/8))
			block = sha256.Sum256(append(root[:], counter[:]...))
		}
		u := binary.LittleEndian.Uint32(block[(i%8)*4:])
		out[i] = float32(u)/math.MaxUint32*2 - 1
	}
	return vector.Normalize(out)
}

// Close is a no-op.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
