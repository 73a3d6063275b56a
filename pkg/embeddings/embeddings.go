// Package embeddings
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrCompute is returned when an embedding cannot be computed: the input is
// empty after trimming, or the underlying model is unavailable. Providers
// must never degrade to a zero vector instead, since a zero vector distorts
// similarity scores for every subsequent comparison.
var ErrCompute = errors.New("embedding computation failed")

// Embedder provides text embedding capabilities.
//
// Embed is deterministic for a fixed model version: the same input text
// yields the same vector under one deployed model.
type Embedder interface {
	// Embed converts text into a vector embedding of Dimensions() length.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions is the fixed output vector length D.
	Dimensions() int

	// ModelVersion identifies the model producing the vectors. Stores record
	// it next to each persisted embedding so a model upgrade can detect and
	// re-embed stale vectors.
	ModelVersion() string

	// Close releases any resources held by the embedder.
	Close() error
}

// CheckInput rejects empty-after-trim input before any provider work
// happens. Shared by all providers.
func CheckInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty input text", ErrCompute)
	}
	return nil
}
