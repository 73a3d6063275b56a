// Package search orchestrates semantic snippet search: embed the query, rank
// stored vectors, resolve the winners back to full records.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/snipstash/snipstash/pkg/embeddings"
	"github.com/snipstash/snipstash/pkg/snippet"
	"github.com/snipstash/snipstash/pkg/storage"
	"github.com/snipstash/snipstash/pkg/utils"
)

const (
	// DefaultLimit applies when a search request does not specify a limit.
	DefaultLimit = 10

	// MaxLimit bounds a single search response.
	MaxLimit = 50

	// codePreviewLen bounds the code excerpt carried in a search result.
	codePreviewLen = 240
)

// ErrEmptyQuery reports a query that is empty after trimming whitespace.
var ErrEmptyQuery = errors.New("search query must not be empty")

// Result is one ranked snippet.
type Result struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Language    string    `json:"language"`
	Tags        []string  `json:"tags,omitempty"`
	CodePreview string    `json:"code_preview"`
	CreatedAt   time.Time `json:"created_at"`
	Score       float32   `json:"score"`
}

// Response is a full search response: the echoed query and the ranked
// results in order.
type Response struct {
	Query   string   `json:"query"`
	Count   int      `json:"count"`
	Results []Result `json:"results"`
}

// Searcher runs semantic searches against a store through a matcher.
type Searcher struct {
	embedder embeddings.Embedder
	store    storage.Store
	matcher  Matcher
	logger   *zap.Logger
}

// NewSearcher creates a search orchestrator.
func NewSearcher(embedder embeddings.Embedder, store storage.Store, matcher Matcher, logger *zap.Logger) *Searcher {
	return &Searcher{
		embedder: embedder,
		store:    store,
		matcher:  matcher,
		logger:   logger,
	}
}

// ClampLimit bounds a requested result limit. An explicit zero asks for no
// results and stays zero; negative limits are treated the same. Resolving an
// absent limit to DefaultLimit is the transport layer's job.
func ClampLimit(limit int) int {
	if limit < 0 {
		return 0
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Search embeds the query, ranks candidates and resolves matches to snippet
// summaries. An empty-after-trim query returns ErrEmptyQuery; embedding
// failures propagate embeddings.ErrCompute. Matches whose snippet vanished
// between ranking and resolution are dropped silently. A zero limit returns
// an empty response without touching the embedder.
func (s *Searcher) Search(ctx context.Context, query string, limit int) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	limit = ClampLimit(limit)
	if limit == 0 {
		return &Response{Query: query, Results: []Result{}}, nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := s.matcher.TopK(ctx, queryVec, limit)
	if err != nil {
		return nil, fmt.Errorf("ranking candidates: %w", err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		snip, err := s.store.Get(ctx, m.ID)
		if err != nil {
			// Deleted between ranking and resolution.
			if storage.IsNotFound(err) {
				s.logger.Debug("dropping match for deleted snippet",
					zap.Int64("id", m.ID),
				)
				continue
			}
			return nil, fmt.Errorf("resolving match %d: %w", m.ID, err)
		}
		results = append(results, toResult(snip, m.Score))
	}

	s.logger.Debug("search completed",
		zap.String("query", utils.Truncate(query, 80)),
		zap.Int("limit", limit),
		zap.Int("results", len(results)),
	)

	return &Response{
		Query:   query,
		Count:   len(results),
		Results: results,
	}, nil
}

func toResult(s *snippet.Snippet, score float32) Result {
	return Result{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Language:    s.Language,
		Tags:        append([]string(nil), s.Tags...),
		CodePreview: utils.Truncate(s.Code, codePreviewLen),
		CreatedAt:   s.CreatedAt,
		Score:       score,
	}
}
