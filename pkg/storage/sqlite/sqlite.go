// Package sqlite provides a SQLite-backed snippet store using database/sql
// and the github.com/mattn/go-sqlite3 driver. Record and vector live in one
// row, so they commit and delete together.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/snipstash/snipstash/pkg/embeddings"
	"github.com/snipstash/snipstash/pkg/snippet"
	"github.com/snipstash/snipstash/pkg/storage"
	"github.com/snipstash/snipstash/pkg/vector"
)

// maxUpdateRetries bounds the optimistic-concurrency retry loop in Update.
const maxUpdateRetries = 3

const schema = `
CREATE TABLE IF NOT EXISTS snippets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	code TEXT NOT NULL,
	language TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMP NOT NULL,
	embedding BLOB,
	embedding_model TEXT NOT NULL DEFAULT '',
	source_digest TEXT NOT NULL DEFAULT '',
	version INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_snippets_language ON snippets(language);
`

// Store implements storage.Store on SQLite.
type Store struct {
	db       *sql.DB
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// NewStore opens (or creates) the database at dbPath and ensures the schema.
// Use ":memory:" for an in-memory database.
func NewStore(dbPath string, embedder embeddings.Embedder, logger *zap.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection serializes writes at the driver level and keeps
	// ":memory:" databases from splitting across pool connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("sqlite snippet store initialized",
		zap.String("db_path", dbPath),
		zap.String("embedding_model", embedder.ModelVersion()),
	)

	return &Store{db: db, embedder: embedder, logger: logger}, nil
}

// Create validates the fields, computes the embedding and inserts the row.
// Record and vector share the row, so the insert is atomic by construction.
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

	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling tags: %v", storage.ErrStore, err)
	}

	var embBlob []byte
	if rec.Searchable() {
		embBlob = vector.EncodeFloat32(rec.Embedding)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO snippets(title, description, code, language, tags, created_at, embedding, embedding_model, source_digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Title, rec.Description, rec.Code, rec.Language, string(tagsJSON), rec.CreatedAt, embBlob, rec.EmbeddingModel, rec.SourceDigest())
	if err != nil {
		return nil, fmt.Errorf("%w: inserting snippet: %v", storage.ErrStore, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: reading insert id: %v", storage.ErrStore, err)
	}
	rec.ID = id

	return rec, nil
}

// Get retrieves a snippet by ID.
func (s *Store) Get(ctx context.Context, id int64) (*snippet.Snippet, error) {
	rec, _, err := s.getWithVersion(ctx, id)
	return rec, err
}

// List returns snippets ordered by ID ascending.
func (s *Store) List(ctx context.Context, offset, limit int) ([]*snippet.Snippet, error) {
	offset, limit = storage.ClampListRange(offset, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, code, language, tags, created_at, embedding, embedding_model
		FROM snippets
		ORDER BY id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: listing snippets: %v", storage.ErrStore, err)
	}
	defer rows.Close()

	var out []*snippet.Snippet
	for rows.Next() {
		rec, err := scanSnippet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating snippets: %v", storage.ErrStore, err)
	}

	return out, nil
}

// Update applies a partial update with an optimistic version guard: the
// embedding is computed against a snapshot, and the UPDATE only lands when
// the row is still at the snapshot's version. A concurrent writer bumps the
// version, we re-read and recompute. This keeps the embedding call outside
// any database lock while guaranteeing a committed vector never predates
// the committed text.
func (s *Store) Update(ctx context.Context, id int64, update snippet.Update) (*snippet.Snippet, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		cur, version, err := s.getWithVersion(ctx, id)
		if err != nil {
			return nil, err
		}

		applied := update.Apply(cur)

		if update.TouchesSource() && applied.SourceDigest() != cur.SourceDigest() {
			emb, err := s.embedder.Embed(ctx, applied.EmbeddingText())
			if err != nil {
				// The old, still-consistent row stays in place.
				return nil, err
			}
			applied.Embedding = emb
			applied.EmbeddingModel = s.embedder.ModelVersion()
		}

		tagsJSON, err := json.Marshal(applied.Tags)
		if err != nil {
			return nil, fmt.Errorf("%w: marshaling tags: %v", storage.ErrStore, err)
		}

		var embBlob []byte
		if applied.Searchable() {
			embBlob = vector.EncodeFloat32(applied.Embedding)
		}

		res, err := s.db.ExecContext(ctx, `
			UPDATE snippets
			SET title = ?, description = ?, code = ?, language = ?, tags = ?,
				embedding = ?, embedding_model = ?, source_digest = ?, version = version + 1
			WHERE id = ? AND version = ?
		`, applied.Title, applied.Description, applied.Code, applied.Language, string(tagsJSON),
			embBlob, applied.EmbeddingModel, applied.SourceDigest(), id, version)
		if err != nil {
			return nil, fmt.Errorf("%w: updating snippet %d: %v", storage.ErrStore, id, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("%w: reading affected rows: %v", storage.ErrStore, err)
		}
		if affected == 1 {
			return applied, nil
		}
		// Version moved or the row is gone; the next read tells us which.
	}

	return nil, fmt.Errorf("%w: snippet %d kept changing concurrently", storage.ErrStore, id)
}

// Delete removes the row; record and embedding go together.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: deleting snippet %d: %v", storage.ErrStore, id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: reading affected rows: %v", storage.ErrStore, err)
	}
	if affected == 0 {
		return storage.NotFoundError{ID: id}
	}
	return nil
}

// SetEmbedding attaches an externally computed embedding, guarded by the
// source digest it was computed from.
func (s *Store) SetEmbedding(ctx context.Context, id int64, sourceDigest string, embedding []float32, model string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE snippets
		SET embedding = ?, embedding_model = ?, version = version + 1
		WHERE id = ? AND source_digest = ?
	`, vector.EncodeFloat32(embedding), model, id, sourceDigest)
	if err != nil {
		return fmt.Errorf("%w: setting embedding for snippet %d: %v", storage.ErrStore, id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: reading affected rows: %v", storage.ErrStore, err)
	}
	if affected == 1 {
		return nil
	}

	// Either the row is gone or its text moved on; a read tells us which.
	if _, _, err := s.getWithVersion(ctx, id); err != nil {
		return err
	}
	return storage.ErrStaleDigest
}

// AllVectors snapshots (id, embedding) for rows with a computed embedding.
func (s *Store) AllVectors(ctx context.Context) ([]vector.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, embedding FROM snippets
		WHERE embedding IS NOT NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying vectors: %v", storage.ErrStore, err)
	}
	defer rows.Close()

	var candidates []vector.Candidate
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning vector row: %v", storage.ErrStore, err)
		}
		emb, err := vector.DecodeFloat32(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding embedding for snippet %d: %v", storage.ErrStore, id, err)
		}
		candidates = append(candidates, vector.Candidate{ID: id, Embedding: emb})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating vectors: %v", storage.ErrStore, err)
	}

	return candidates, nil
}

// Languages returns the distinct language tags, sorted.
func (s *Store) Languages(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT language FROM snippets ORDER BY language`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying languages: %v", storage.ErrStore, err)
	}
	defer rows.Close()

	var langs []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, fmt.Errorf("%w: scanning language: %v", storage.ErrStore, err)
		}
		langs = append(langs, lang)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating languages: %v", storage.ErrStore, err)
	}

	return langs, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getWithVersion(ctx context.Context, id int64) (*snippet.Snippet, int64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, code, language, tags, created_at, embedding, embedding_model, version
		FROM snippets
		WHERE id = ?
	`, id)

	var (
		rec      snippet.Snippet
		tagsJSON string
		embBlob  []byte
		version  int64
	)
	err := row.Scan(&rec.ID, &rec.Title, &rec.Description, &rec.Code, &rec.Language,
		&tagsJSON, &rec.CreatedAt, &embBlob, &rec.EmbeddingModel, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading snippet %d: %v", storage.ErrStore, id, err)
	}

	if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
		return nil, 0, fmt.Errorf("%w: unmarshaling tags for snippet %d: %v", storage.ErrStore, id, err)
	}
	if len(embBlob) > 0 {
		rec.Embedding, err = vector.DecodeFloat32(embBlob)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: decoding embedding for snippet %d: %v", storage.ErrStore, id, err)
		}
	}

	return &rec, version, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row rowScanner) (*snippet.Snippet, error) {
	var (
		rec      snippet.Snippet
		tagsJSON string
		embBlob  []byte
	)
	err := row.Scan(&rec.ID, &rec.Title, &rec.Description, &rec.Code, &rec.Language,
		&tagsJSON, &rec.CreatedAt, &embBlob, &rec.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("%w: scanning snippet row: %v", storage.ErrStore, err)
	}

	if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling tags for snippet %d: %v", storage.ErrStore, rec.ID, err)
	}
	if len(embBlob) > 0 {
		rec.Embedding, err = vector.DecodeFloat32(embBlob)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding embedding for snippet %d: %v", storage.ErrStore, rec.ID, err)
		}
	}

	return &rec, nil
}

var _ storage.Store = (*Store)(nil)
