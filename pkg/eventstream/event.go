// Package eventstream defines transport-neutral snippet lifecycle events and
// the Publisher contract backends implement.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/snipstash/snipstash/pkg/snippet"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeSnippetCreated is emitted after a snippet is created.
	EventTypeSnippetCreated = "snipstash.snippet.created"

	// EventTypeSnippetUpdated is emitted after a snippet is updated.
	EventTypeSnippetUpdated = "snipstash.snippet.updated"

	// EventTypeSnippetDeleted is emitted after a snippet is deleted.
	EventTypeSnippetDeleted = "snipstash.snippet.deleted"
)

// SnippetEvent is a transport-neutral event payload for a snippet lifecycle
// change. The snippet body is summarized: code is omitted, only metadata
// travels on the stream.
type SnippetEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Snippet       SnippetSummary `json:"snippet"`
}

// SnippetSummary is the event-sized view of a snippet.
type SnippetSummary struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Language   string    `json:"language"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Searchable bool      `json:"searchable"`
}

// NewSnippetEvent builds an event of the given type for a snippet.
func NewSnippetEvent(eventType string, s *snippet.Snippet) *SnippetEvent {
	return &SnippetEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Snippet: SnippetSummary{
			ID:         s.ID,
			Title:      s.Title,
			Language:   s.Language,
			Tags:       append([]string(nil), s.Tags...),
			CreatedAt:  s.CreatedAt,
			Searchable: s.Searchable(),
		},
	}
}
