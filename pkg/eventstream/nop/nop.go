// Package nop provides the disabled-mode eventstream publisher.
package nop

import (
	"context"

	"github.com/snipstash/snipstash/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishSnippet validates input and otherwise does nothing.
func (p *Publisher) PublishSnippet(_ context.Context, event *eventstream.SnippetEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}

var _ eventstream.Publisher = (*Publisher)(nil)
