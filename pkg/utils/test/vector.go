package testutils

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/vector"
	"github.com/papercomputeco/snaps/pkg/vector/inmemory"
)

// ErrMockVector is returned by MockVectorDriver when a failure is toggled on.
var ErrMockVector = errors.New("mock vector store failure")

// MockVectorDriver is a test vector driver backed by the in-memory driver
// with switchable failures.
type MockVectorDriver struct {
	*inmemory.Driver

	FailAdd    bool
	FailQuery  bool
	FailDelete bool

	// Results, when non-nil, is returned by Query instead of a real search.
	Results []vector.QueryResult
}

func NewMockVectorDriver(dimensions uint) *MockVectorDriver {
	return &MockVectorDriver{
		Driver: inmemory.NewDriver(dimensions, zap.NewNop()),
	}
}

func (m *MockVectorDriver) Add(ctx context.Context, docs []vector.Document) error {
	if m.FailAdd {
		return ErrMockVector
	}
	return m.Driver.Add(ctx, docs)
}

func (m *MockVectorDriver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if m.FailQuery {
		return nil, ErrMockVector
	}
	if m.Results != nil {
		if len(m.Results) < topK {
			return m.Results, nil
		}
		return m.Results[:topK], nil
	}
	return m.Driver.Query(ctx, embedding, topK, filter)
}

func (m *MockVectorDriver) Delete(ctx context.Context, ids []string) error {
	if m.FailDelete {
		return ErrMockVector
	}
	return m.Driver.Delete(ctx, ids)
}
