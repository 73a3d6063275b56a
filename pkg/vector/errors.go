package vector

import "errors"

var (
	// ErrDimensionMismatch is returned when a query vector's dimension does
	// not match what an index was created with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrConnection is returned when an external index backend cannot be
	// reached.
	ErrConnection = errors.New("vector index connection failed")
)
