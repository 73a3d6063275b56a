package eventstream

import "context"

// Publisher publishes snippet events to an event stream backend.
type Publisher interface {
	PublishSnippet(ctx context.Context, event *SnippetEvent) error
	Close() error
}
