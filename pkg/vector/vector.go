// Package vector provides the similarity ranking contracts shared by the
// brute-force ranker and the external index backends.
package vector

import "context"

// Candidate pairs a snippet ID with its embedding.
type Candidate struct {
	// ID is the snippet ID the embedding belongs to.
	ID int64

	// Embedding is the vector representation of the snippet's text.
	Embedding []float32
}

// Match is a ranked result with its similarity score.
type Match struct {
	ID    int64   `json:"id"`
	Score float32 `json:"score"`
}

// Ranker orders candidates by similarity to a query vector.
//
// Implementations must return at most k matches, ordered by score descending
// with ties broken by ascending ID, so equal-score results have a total,
// reproducible order. A k <= 0 or an empty candidate set yields an empty
// result, never an error.
type Ranker interface {
	Rank(query []float32, candidates []Candidate, k int) []Match
}

// Index is a persistent nearest-neighbor structure that can stand in for
// ranking over a full candidate scan. Exact backends (sqlite-vec) preserve
// the Ranker contract's top-K set; approximate backends (Qdrant with HNSW)
// relax it and are documented as such.
type Index interface {
	// Add stores or replaces entries by ID.
	Add(ctx context.Context, entries []Candidate) error

	// Delete removes entries by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []int64) error

	// Query returns the top k most similar entries to the query vector.
	Query(ctx context.Context, query []float32, k int) ([]Match, error)

	// Close releases any resources held by the index.
	Close() error
}
