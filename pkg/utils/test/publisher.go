package testutils

import (
	"context"

	"github.com/snipstash/snipstash/pkg/eventstream"
)

// MockPublisher records published snippet events.
type MockPublisher struct {
	// Events accumulates every event passed to PublishSnippet.
	Events []*eventstream.SnippetEvent

	// Fail causes PublishSnippet to return an error.
	Fail bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishSnippet(_ context.Context, event *eventstream.SnippetEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	if m.Fail {
		return eventstream.ErrPublish
	}
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

var _ eventstream.Publisher = (*MockPublisher)(nil)
