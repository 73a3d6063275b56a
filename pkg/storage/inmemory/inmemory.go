// Package inmemory provides a map-backed Store. It is the default for tests
// and local development and the reference for the locking discipline the
// SQL backends express transactionally.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/snipstash/snipstash/pkg/embeddings"
	"github.com/snipstash/snipstash/pkg/snippet"
	"github.com/snipstash/snipstash/pkg/storage"
	"github.com/snipstash/snipstash/pkg/vector"
)

// Store implements storage.Store using an in-memory map.
type Store struct {
	embedder embeddings.Embedder
	logger   *zap.Logger

	// mu guards the snippets map and nextID. Held only for map access,
	// never across an embedding call.
	mu       sync.RWMutex
	snippets map[int64]*snippet.Snippet
	nextID   int64

	// recordMu serializes writers per snippet ID. The per-record lock is
	// held across embedding recomputation and commit, so a slow embed only
	// blocks writers of the same ID, never readers.
	recordMuMu sync.Mutex
	recordMu   map[int64]*sync.Mutex
}

// NewStore creates a new in-memory store.
func NewStore(embedder embeddings.Embedder, logger *zap.Logger) *Store {
	return &Store{
		embedder: embedder,
		logger:   logger,
		snippets: make(map[int64]*snippet.Snippet),
		recordMu: make(map[int64]*sync.Mutex),
	}
}

// Create validates the fields, computes the embedding and inserts the record.
func (s *Store) Create(ctx context.Context, fields snippet.Fields) (*snippet.Snippet, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	rec := &snippet.Snippet{
		Title:       fields.Title,
		Description: fields.Description,
		Code:        fields.Code,
		Language:    fields.Language,
		Tags:        append([]string(nil), fields.Tags...),
		CreatedAt:   time.Now().UTC(),
	}

	// Embed before taking any lock. On failure the record is persisted
	// without a vector and stays out of search results until backfilled.
	emb, err := s.embedder.Embed(ctx, rec.EmbeddingText())
	if err != nil {
		s.logger.Warn("embedding failed on create, persisting non-searchable",
			zap.String("title", rec.Title),
			zap.Error(err),
		)
	} else {
		rec.Embedding = emb
		rec.EmbeddingModel = s.embedder.ModelVersion()
	}

	s.mu.Lock()
	s.nextID++
	rec.ID = s.nextID
	s.snippets[rec.ID] = rec.Clone()
	s.mu.Unlock()

	return rec, nil
}

// Get retrieves a snippet by ID.
func (s *Store) Get(_ context.Context, id int64) (*snippet.Snippet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.snippets[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}
	return rec.Clone(), nil
}

// List returns snippets ordered by ID ascending.
func (s *Store) List(_ context.Context, offset, limit int) ([]*snippet.Snippet, error) {
	offset, limit = storage.ClampListRange(offset, limit)

	s.mu.RLock()
	ids := make([]int64, 0, len(s.snippets))
	for id := range s.snippets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*snippet.Snippet, 0, limit)
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		out = append(out, s.snippets[ids[i]].Clone())
	}
	s.mu.RUnlock()

	return out, nil
}

// Update applies a partial update, recomputing the embedding when the source
// text changed. Writers to the same ID are serialized by a per-record lock.
func (s *Store) Update(ctx context.Context, id int64, update snippet.Update) (*snippet.Snippet, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	applied := update.Apply(cur)

	if update.TouchesSource() && applied.SourceDigest() != cur.SourceDigest() {
		emb, err := s.embedder.Embed(ctx, applied.EmbeddingText())
		if err != nil {
			// The old, still-consistent record stays in place.
			return nil, err
		}
		applied.Embedding = emb
		applied.EmbeddingModel = s.embedder.ModelVersion()
	}

	s.mu.Lock()
	if _, ok := s.snippets[id]; !ok {
		// Deleted while we were embedding.
		s.mu.Unlock()
		return nil, storage.NotFoundError{ID: id}
	}
	s.snippets[id] = applied.Clone()
	s.mu.Unlock()

	return applied, nil
}

// Delete removes the record and its embedding together.
func (s *Store) Delete(_ context.Context, id int64) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snippets[id]; !ok {
		return storage.NotFoundError{ID: id}
	}
	delete(s.snippets, id)
	return nil
}

// SetEmbedding attaches an externally computed embedding, guarded by the
// source digest it was computed from.
func (s *Store) SetEmbedding(_ context.Context, id int64, sourceDigest string, embedding []float32, model string) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.snippets[id]
	if !ok {
		return storage.NotFoundError{ID: id}
	}
	if rec.SourceDigest() != sourceDigest {
		return storage.ErrStaleDigest
	}

	rec.Embedding = append([]float32(nil), embedding...)
	rec.EmbeddingModel = model
	return nil
}

// AllVectors snapshots (id, embedding) for searchable records.
func (s *Store) AllVectors(_ context.Context) ([]vector.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]vector.Candidate, 0, len(s.snippets))
	for _, rec := range s.snippets {
		if !rec.Searchable() {
			continue
		}
		candidates = append(candidates, vector.Candidate{
			ID:        rec.ID,
			Embedding: append([]float32(nil), rec.Embedding...),
		})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	return candidates, nil
}

// Languages returns the distinct language tags, sorted.
func (s *Store) Languages(_ context.Context) ([]string, error) {
	s.mu.RLock()
	seen := make(map[string]struct{}, len(s.snippets))
	for _, rec := range s.snippets {
		seen[rec.Language] = struct{}{}
	}
	s.mu.RUnlock()

	langs := make([]string, 0, len(seen))
	for lang := range seen {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) lockFor(id int64) *sync.Mutex {
	s.recordMuMu.Lock()
	defer s.recordMuMu.Unlock()

	lock, ok := s.recordMu[id]
	if !ok {
		lock = &sync.Mutex{}
		s.recordMu[id] = lock
	}
	return lock
}

var _ storage.Store = (*Store)(nil)
