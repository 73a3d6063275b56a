// Package backfill recomputes embeddings for snippets whose vector is
// missing or was produced by a different model version. It is the recovery
// path for records persisted non-searchable after an embedding failure.
package backfill

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/snipstash/snipstash/pkg/embeddings"
	"github.com/snipstash/snipstash/pkg/snippet"
	"github.com/snipstash/snipstash/pkg/storage"
)

// pageSize is the List window used while scanning the store.
const pageSize = storage.MaxListLimit

// Options configures backfill behavior.
type Options struct {
	// DryRun reports what would be re-embedded without committing anything.
	DryRun bool
}

// Backfiller scans a store and re-embeds stale or missing vectors.
type Backfiller struct {
	store    storage.Store
	embedder embeddings.Embedder
	logger   *zap.Logger
	options  Options
}

// NewBackfiller creates a Backfiller over the given store and embedder.
func NewBackfiller(store storage.Store, embedder embeddings.Embedder, logger *zap.Logger, opts Options) *Backfiller {
	return &Backfiller{
		store:    store,
		embedder: embedder,
		logger:   logger,
		options:  opts,
	}
}

// Run pages through the store and re-embeds every candidate. A snippet is a
// candidate when it has no vector or its vector came from a different model
// version. Commits are digest-guarded: a record whose text changed between
// read and commit is skipped and picked up by the next run.
func (b *Backfiller) Run(ctx context.Context) (*Result, error) {
	result := &Result{Model: b.embedder.ModelVersion()}

	offset := 0
	for {
		page, err := b.store.List(ctx, offset, pageSize)
		if err != nil {
			return nil, fmt.Errorf("listing snippets: %w", err)
		}
		if len(page) == 0 {
			break
		}
		offset += len(page)
		result.Scanned += len(page)

		for _, rec := range page {
			if !b.needsEmbedding(rec) {
				continue
			}
			result.Candidates++

			if b.options.DryRun {
				b.logger.Info("would re-embed snippet",
					zap.Int64("id", rec.ID),
					zap.String("current_model", rec.EmbeddingModel),
				)
				continue
			}

			switch err := b.reembed(ctx, rec); {
			case err == nil:
				result.Embedded++
			case errors.Is(err, storage.ErrStaleDigest) || storage.IsNotFound(err):
				// Changed or deleted under us; not our record anymore.
				result.Skipped++
				b.logger.Debug("skipping snippet changed during backfill",
					zap.Int64("id", rec.ID),
					zap.Error(err),
				)
			default:
				result.Failed++
				b.logger.Warn("re-embedding snippet failed",
					zap.Int64("id", rec.ID),
					zap.Error(err),
				)
			}
		}
	}

	return result, nil
}

func (b *Backfiller) needsEmbedding(rec *snippet.Snippet) bool {
	return !rec.Searchable() || rec.EmbeddingModel != b.embedder.ModelVersion()
}

func (b *Backfiller) reembed(ctx context.Context, rec *snippet.Snippet) error {
	emb, err := b.embedder.Embed(ctx, rec.EmbeddingText())
	if err != nil {
		return fmt.Errorf("computing embedding: %w", err)
	}
	return b.store.SetEmbedding(ctx, rec.ID, rec.SourceDigest(), emb, b.embedder.ModelVersion())
}
