// Package openai implements pkg/embeddings' Embedder on top of the OpenAI
// embeddings API.
package openai

import (
	"context"
	"fmt"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/snipstash/snipstash/pkg/embeddings"
)

const (
	// DefaultEmbeddingModel is the default OpenAI embedding model.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultDimensions matches text-embedding-3-small output.
	DefaultDimensions = 1536
)

// Embedder wraps the OpenAI embeddings API.
type Embedder struct {
	client     *gopenai.Client
	model      string
	dimensions int
}

// EmbedderConfig holds configuration for the OpenAI embedder.
type EmbedderConfig struct {
	// APIKey authenticates against the OpenAI API. Required.
	APIKey string

	// BaseURL overrides the API endpoint, for OpenAI-compatible servers.
	BaseURL string

	// Model is the embedding model. Defaults to DefaultEmbeddingModel.
	Model string

	// Dimensions is the output vector length of the chosen model.
	// Defaults to DefaultDimensions if zero.
	Dimensions int
}

// NewEmbedder creates a new embedder using the OpenAI embeddings API.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = DefaultDimensions
	}

	clientCfg := gopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client:     gopenai.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := embeddings.CheckInput(text); err != nil {
		return nil, err
	}

	resp, err := e.client.CreateEmbeddings(ctx, gopenai.EmbeddingRequest{
		Input: []string{text},
		Model: gopenai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai request: %v", embeddings.ErrCompute, err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", embeddings.ErrCompute)
	}

	return resp.Data[0].Embedding, nil
}

// Dimensions is the configured output vector length.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// ModelVersion identifies the serving model.
func (e *Embedder) ModelVersion() string {
	return "openai/" + e.model
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
