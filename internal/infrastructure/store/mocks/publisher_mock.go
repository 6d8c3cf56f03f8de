package mocks

import (
	"context"
	"sync"
)

// PublishedEvent captures one PublishEvent call.
type PublishedEvent struct {
	Key       string
	EventType string
	Payload   any
}

// MockPublisher records published events for assertions.
type MockPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent

	PublishErr error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishEvent(ctx context.Context, key, eventType string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Events = append(m.Events, PublishedEvent{Key: key, EventType: eventType, Payload: payload})
	return nil
}

// EventsOfType returns captured events matching the given type.
func (m *MockPublisher) EventsOfType(eventType string) []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PublishedEvent
	for _, e := range m.Events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
