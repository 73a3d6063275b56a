package eventstream

import "errors"

var (
	// ErrNilEvent indicates a nil event payload was provided to a publisher.
	ErrNilEvent = errors.New("nil snippet event")

	// ErrPublish indicates the backend rejected or failed to accept an event.
	ErrPublish = errors.New("event publish failed")
)
