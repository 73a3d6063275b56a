package search

import (
	"context"
	"fmt"

	"github.com/snipstash/snipstash/pkg/storage"
	"github.com/snipstash/snipstash/pkg/vector"
)

// Matcher produces the top k snippet IDs for a query vector. The two
// implementations trade freshness for scale: StoreMatcher scans the store's
// live vectors on every call, IndexMatcher queries a maintained index.
type Matcher interface {
	TopK(ctx context.Context, query []float32, k int) ([]vector.Match, error)
}

// StoreMatcher ranks a fresh snapshot of the store's vectors with an
// in-process ranker. Exact, no external state, the default mode.
type StoreMatcher struct {
	store  storage.Store
	ranker vector.Ranker
}

// NewStoreMatcher creates a matcher that scans the store on every query.
func NewStoreMatcher(store storage.Store, ranker vector.Ranker) *StoreMatcher {
	return &StoreMatcher{store: store, ranker: ranker}
}

// TopK snapshots the store's searchable vectors and ranks them.
func (m *StoreMatcher) TopK(ctx context.Context, query []float32, k int) ([]vector.Match, error) {
	candidates, err := m.store.AllVectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshotting vectors: %w", err)
	}
	return m.ranker.Rank(query, candidates, k), nil
}

// IndexMatcher delegates ranking to a vector.Index backend.
type IndexMatcher struct {
	index vector.Index
}

// NewIndexMatcher creates a matcher backed by an external index.
func NewIndexMatcher(index vector.Index) *IndexMatcher {
	return &IndexMatcher{index: index}
}

// TopK queries the index.
func (m *IndexMatcher) TopK(ctx context.Context, query []float32, k int) ([]vector.Match, error) {
	return m.index.Query(ctx, query, k)
}

var (
	_ Matcher = (*StoreMatcher)(nil)
	_ Matcher = (*IndexMatcher)(nil)
)
