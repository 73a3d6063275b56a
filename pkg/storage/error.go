package storage

import (
	"errors"
	"strconv"
)

// ErrStore is the sentinel for persistence layer failures. A failed commit
// rolls back so record and vector never diverge.
var ErrStore = errors.New("store operation failed")

// ErrStaleDigest is returned by SetEmbedding when the record's text changed
// after the embedding was computed. The caller re-reads and retries.
var ErrStaleDigest = errors.New("source text changed since embedding was computed")

// NotFoundError is returned when a snippet doesn't exist in the store.
type NotFoundError struct {
	ID int64
}

func (e NotFoundError) Error() string {
	return "snippet not found: " + strconv.FormatInt(e.ID, 10)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
