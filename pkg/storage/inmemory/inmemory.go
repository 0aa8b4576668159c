package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/papercomputeco/snaps/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of records
	mu sync.RWMutex

	// records is keyed by image id
	records map[string]*storage.Record
}

// NewDriver creates a new in-memory record store.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[string]*storage.Record),
	}
}

// Create stores a copy of the record.
func (s *Driver) Create(_ context.Context, rec *storage.Record) error {
	if rec == nil {
		return errors.New("cannot store nil record")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("record %s already exists", rec.ID)
	}

	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

// Get retrieves a record by id.
func (s *Driver) Get(_ context.Context, id string) (*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	cp := *rec
	return &cp, nil
}

// List returns records newest first.
func (s *Driver) List(_ context.Context, opts storage.ListOptions) ([]*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.Record, 0, len(s.records))
	for _, rec := range s.records {
		if opts.Building != "" && rec.Building != opts.Building {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []*storage.Record{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Delete removes a record by id.
func (s *Driver) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return storage.NotFoundError{ID: id}
	}
	delete(s.records, id)
	return nil
}

// Count returns the number of records.
func (s *Driver) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Buildings returns per-building counts ordered by building.
func (s *Driver) Buildings(_ context.Context) ([]storage.BuildingCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[string]int{}
	for _, rec := range s.records {
		counts[rec.Building]++
	}

	out := make([]storage.BuildingCount, 0, len(counts))
	for b, n := range counts {
		out = append(out, storage.BuildingCount{Building: b, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Building < out[j].Building })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Driver) Close() error {
	return nil
}

var _ storage.Driver = (*Driver)(nil)
