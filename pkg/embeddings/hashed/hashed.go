// Package hashed implements a deterministic, fully offline Embedder that
// hashes bag-of-words token counts into a fixed number of buckets. It has no
// semantic understanding beyond token overlap; it exists so development,
// seeding and tests work without a model server, and so embedding-dependent
// behavior stays reproducible.
package hashed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/snipstash/snipstash/pkg/embeddings"
)

// DefaultDimensions is the default bucket count.
const DefaultDimensions = 256

// Embedder hashes tokens into buckets and L2-normalizes the result.
type Embedder struct {
	dimensions int
}

// NewEmbedder creates a hashed embedder with the given dimension count.
// A non-positive dimensions falls back to DefaultDimensions.
func NewEmbedder(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

// Embed converts text into a normalized bag-of-words vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	if err := embeddings.CheckInput(text); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dimensions)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%uint32(e.dimensions)]++
	}

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}

	return vec, nil
}

// Dimensions is the bucket count.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// ModelVersion identifies this embedder. Bump on any tokenization change:
// stored vectors are only comparable within one version.
func (e *Embedder) ModelVersion() string {
	return "hashed-bow/v1"
}

// Close is a no-op.
func (e *Embedder) Close() error {
	return nil
}

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var _ embeddings.Embedder = (*Embedder)(nil)
