package testutils

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/papercomputeco/snaps/pkg/blob"
)

// MemoryBlobStore is an in-memory blob.Store.
type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte

	// FailPut makes Put return an error.
	FailPut bool
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if m.FailPut {
		return fmt.Errorf("mock blob failure for: %s", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	return data, nil
}

func (m *MemoryBlobStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *MemoryBlobStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok, nil
}

func (m *MemoryBlobStore) URL(_ context.Context, key string) (string, error) {
	return "/media/" + key, nil
}

// Keys returns the stored keys in sorted order.
func (m *MemoryBlobStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ blob.Store = (*MemoryBlobStore)(nil)
