package events

import (
	"context"
	"sync"
)

// MockPublisher records published events in memory for tests.
type MockPublisher struct {
	mu           sync.RWMutex
	events       []*ActivityEvent
	publishError error
	closed       bool
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish records the event and returns any configured error.
func (m *MockPublisher) Publish(ctx context.Context, event *ActivityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.events = append(m.events, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Events returns a copy of everything published so far.
func (m *MockPublisher) Events() []*ActivityEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*ActivityEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Types returns the type of each published event, in order.
func (m *MockPublisher) Types() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

// SetPublishError makes Publish fail with err.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed reports whether Close was called.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
