package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/snaps/pkg/eventstream"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.ImageEvent

	// Fail makes PublishImage return an error.
	Fail bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishImage(_ context.Context, event *eventstream.ImageEvent) error {
	if event == nil {
		return eventstream.ErrNilImageEvent
	}
	if m.Fail {
		return errors.New("mock publish failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the published events.
func (m *MockPublisher) Events() []*eventstream.ImageEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.ImageEvent(nil), m.events...)
}

func (m *MockPublisher) Close() error {
	return nil
}
