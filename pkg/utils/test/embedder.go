package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/papercomputeco/snaps/pkg/embeddings/hash"
)

// MockEmbedder is a test embedder that returns predictable embeddings.
// Inputs without a configured vector fall back to a deterministic hash
// embedding, so identical images always map to identical vectors.
type MockEmbedder struct {
	mu sync.Mutex

	// Embeddings maps text to a fixed vector.
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// Err, when set, is returned from every call.
	Err error

	fallback   *hash.Embedder
	texts      []string
	textCalls  int
	imageCalls int
}

func NewMockEmbedder(dimensions uint) *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		fallback:   hash.NewEmbedder(dimensions),
	}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.textCalls++
	m.texts = append(m.texts, text)

	if m.Err != nil {
		return nil, m.Err
	}
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}
	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}
	return m.fallback.Embed(ctx, text)
}

func (m *MockEmbedder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imageCalls++

	if m.Err != nil {
		return nil, m.Err
	}
	return m.fallback.EmbedImage(ctx, data)
}

// TextCalls returns how many times Embed was called.
func (m *MockEmbedder) TextCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.textCalls
}

// Texts returns every text passed to Embed, in call order.
func (m *MockEmbedder) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// ImageCalls returns how many times EmbedImage was called.
func (m *MockEmbedder) ImageCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.imageCalls
}

func (m *MockEmbedder) Close() error {
	return nil
}
