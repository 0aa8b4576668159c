// Package storage
package storage

import (
	"context"
)

// Driver defines the interface for persisting and retrieving image records.
// The record store is the source of truth: vectors can always be rebuilt
// from it.
type Driver interface {
	// Create inserts a new record. IDs are unique.
	Create(ctx context.Context, rec *Record) error

	// Get retrieves a record by id, returning NotFoundError when absent.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records newest first.
	List(ctx context.Context, opts ListOptions) ([]*Record, error)

	// Delete removes a record by id, returning NotFoundError when absent.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Buildings returns per-building record counts ordered by building.
	Buildings(ctx context.Context) ([]BuildingCount, error)

	// Close closes the store and releases any resources.
	Close() error
}
