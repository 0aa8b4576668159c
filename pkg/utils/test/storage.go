package testutils

import (
	"context"
	"errors"

	"github.com/papercomputeco/snaps/pkg/storage"
	"github.com/papercomputeco/snaps/pkg/storage/inmemory"
)

// ErrMockStorage is returned by MockStorageDriver when a failure is toggled on.
var ErrMockStorage = errors.New("mock storage failure")

// MockStorageDriver is an in-memory record store with switchable failures.
type MockStorageDriver struct {
	*inmemory.Driver

	FailCreate bool
	FailList   bool
}

func NewMockStorageDriver() *MockStorageDriver {
	return &MockStorageDriver{Driver: inmemory.NewDriver()}
}

func (m *MockStorageDriver) Create(ctx context.Context, rec *storage.Record) error {
	if m.FailCreate {
		return ErrMockStorage
	}
	return m.Driver.Create(ctx, rec)
}

func (m *MockStorageDriver) List(ctx context.Context, opts storage.ListOptions) ([]*storage.Record, error) {
	if m.FailList {
		return nil, ErrMockStorage
	}
	return m.Driver.List(ctx, opts)
}
