// Package storage
package storage

import (
	"context"

	"github.com/snipstash/snipstash/pkg/snippet"
	"github.com/snipstash/snipstash/pkg/vector"
)

const (
	// DefaultListLimit applies when a list request does not specify a limit.
	DefaultListLimit = 20

	// MaxListLimit bounds a single list response.
	MaxListLimit = 100
)

// Store owns the canonical snippet records and their embeddings and mediates
// all create/read/update/delete access. It is the only component permitted
// to mutate snippets; everything else reads.
//
// Implementations serialize concurrent writes to the same snippet ID: one
// write fully completes, including embedding recomputation, before the other
// is observed. Reads never see a record whose stored vector disagrees with
// its text.
type Store interface {
	// Create validates fields, assigns ID and CreatedAt, computes the
	// embedding and persists record and vector atomically. When embedding
	// computation fails the record is persisted without a vector and stays
	// invisible to search until re-embedded.
	Create(ctx context.Context, fields snippet.Fields) (*snippet.Snippet, error)

	// Get retrieves a snippet by ID, or NotFoundError.
	Get(ctx context.Context, id int64) (*snippet.Snippet, error)

	// List returns snippets ordered by ID ascending. A non-positive limit
	// uses DefaultListLimit; limits above MaxListLimit are clamped.
	List(ctx context.Context, offset, limit int) ([]*snippet.Snippet, error)

	// Update applies the provided fields only. When title, description or
	// code changed, the embedding is recomputed before the update commits.
	Update(ctx context.Context, id int64, update snippet.Update) (*snippet.Snippet, error)

	// Delete removes the record and its embedding together. Deleting an
	// absent ID reports NotFoundError, including repeat deletes.
	Delete(ctx context.Context, id int64) error

	// SetEmbedding attaches an externally computed embedding to a record,
	// guarded by the source digest the vector was computed from: when the
	// record's text has changed since, nothing commits and ErrStaleDigest
	// is returned. Used by backfill to re-embed without touching text.
	SetEmbedding(ctx context.Context, id int64, sourceDigest string, embedding []float32, model string) error

	// AllVectors is the ranking snapshot: (id, embedding) for every record
	// with a successfully computed embedding, ordered by ID.
	AllVectors(ctx context.Context) ([]vector.Candidate, error)

	// Languages returns the distinct language tags in the store, sorted.
	Languages(ctx context.Context) ([]string, error)

	// Close closes the store and releases any resources.
	Close() error
}

// ClampListRange normalizes a list request's offset and limit.
func ClampListRange(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return offset, limit
}
