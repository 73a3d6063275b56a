// Package bruteforce implements vector.Ranker with an exhaustive cosine
// similarity scan. O(N*D) per query, which is fine at the population sizes
// a snippet store holds; larger deployments swap in an index backend behind
// the same contract.
package bruteforce

import (
	"math"
	"sort"

	"github.com/snipstash/snipstash/pkg/vector"
)

// Ranker is the exact, exhaustive-scan ranker.
type Ranker struct{}

// NewRanker creates a brute-force ranker.
func NewRanker() *Ranker {
	return &Ranker{}
}

// Rank scores every candidate against the query with cosine similarity and
// returns the top k, ordered by score descending with ties broken by
// ascending ID.
//
// Candidates are skipped rather than failing the whole call when they cannot
// be scored: a zero-norm vector has no defined cosine similarity (a corrupt
// or never-embedded record), and a dimension mismatch means the candidate
// was embedded under a different model version.
func (r *Ranker) Rank(query []float32, candidates []vector.Candidate, k int) []vector.Match {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	queryNorm := norm(query)
	if queryNorm == 0 {
		return nil
	}

	matches := make([]vector.Match, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) != len(query) {
			continue
		}
		candNorm := norm(c.Embedding)
		if candNorm == 0 {
			continue
		}
		matches = append(matches, vector.Match{
			ID:    c.ID,
			Score: float32(dot(query, c.Embedding) / (queryNorm * candNorm)),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

var _ vector.Ranker = (*Ranker)(nil)
