// Package inmemory provides an in-memory vector driver using exact cosine
// similarity over every stored document.
package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/vector"
)

// Driver implements vector.Driver with a map guarded by a RWMutex.
type Driver struct {
	mu         sync.RWMutex
	docs       map[string]vector.Document
	dimensions uint
	logger     *zap.Logger
}

// NewDriver creates an in-memory vector driver. A zero dimensions value
// skips the dimension check.
func NewDriver(dimensions uint, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		docs:       make(map[string]vector.Document),
		dimensions: dimensions,
		logger:     logger,
	}
}

func (d *Driver) checkDims(v []float32) error {
	if d.dimensions != 0 && uint(len(v)) != d.dimensions {
		return fmt.Errorf("%w: got %d, want %d", vector.ErrDimensionMismatch, len(v), d.dimensions)
	}
	return nil
}

// Add stores documents, replacing any with the same ID.
func (d *Driver) Add(_ context.Context, docs []vector.Document) error {
	for _, doc := range docs {
		if err := d.checkDims(doc.Embedding); err != nil {
			return fmt.Errorf("adding document %s: %w", doc.ID, err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, doc := range docs {
		doc.Embedding = slices.Clone(doc.Embedding)
		d.docs[doc.ID] = doc
	}

	d.logger.Debug("added documents to in-memory vector store", zap.Int("count", len(docs)))
	return nil
}

// Query scores every document matching filter and returns the best topK.
func (d *Driver) Query(_ context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}
	if err := d.checkDims(embedding); err != nil {
		return nil, err
	}

	d.mu.RLock()
	results := make([]vector.QueryResult, 0, len(d.docs))
	for _, doc := range d.docs {
		if !filter.Matches(doc.Metadata) {
			continue
		}
		results = append(results, vector.QueryResult{
			Document: doc,
			Score:    vector.CosineSimilarity(embedding, doc.Embedding),
		})
	}
	d.mu.RUnlock()

	slices.SortStableFunc(results, func(a, b vector.QueryResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	docs := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := d.docs[id]; ok {
			doc.Embedding = slices.Clone(doc.Embedding)
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// IDs returns every stored document ID in sorted order.
func (d *Driver) IDs(_ context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.docs))
	for id := range d.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(_ context.Context, ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range ids {
		delete(d.docs, id)
	}
	return nil
}

// Reset drops every document.
func (d *Driver) Reset(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.docs = make(map[string]vector.Document)
	return nil
}

// Count returns the number of stored documents.
func (d *Driver) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docs)
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

var (
	_ vector.Driver = (*Driver)(nil)
	_ vector.Lister = (*Driver)(nil)
)
