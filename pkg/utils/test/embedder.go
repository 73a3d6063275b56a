package testutils

import (
	"context"
	"fmt"

	"github.com/snipstash/snipstash/pkg/embeddings"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	// Embeddings maps input text to the vector Embed returns for it.
	Embeddings map[string][]float32

	// Default is returned for any text without an entry in Embeddings.
	Default []float32

	// FailOn causes Embed to return ErrCompute when the input text matches
	FailOn string

	// FailAll causes every Embed call to return ErrCompute.
	FailAll bool

	// Calls records every input text passed to Embed.
	Calls []string

	// Dim is reported by Dimensions. Defaults to len(Default) when zero.
	Dim int

	// Model is reported by ModelVersion. Defaults to "mock/v1".
	Model string
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		Default:    []float32{0.1, 0.2, 0.3},
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.Calls = append(m.Calls, text)

	if m.FailAll {
		return nil, fmt.Errorf("%w: mock failure", embeddings.ErrCompute)
	}
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("%w: mock failure for: %s", embeddings.ErrCompute, text)
	}
	if err := embeddings.CheckInput(text); err != nil {
		return nil, err
	}

	if emb, ok := m.Embeddings[text]; ok {
		return append([]float32(nil), emb...), nil
	}
	return append([]float32(nil), m.Default...), nil
}

func (m *MockEmbedder) Dimensions() int {
	if m.Dim > 0 {
		return m.Dim
	}
	return len(m.Default)
}

func (m *MockEmbedder) ModelVersion() string {
	if m.Model != "" {
		return m.Model
	}
	return "mock/v1"
}

func (m *MockEmbedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*MockEmbedder)(nil)
