// Package postgres provides a Postgres-backed snippet store using the pgx
// stdlib driver. Same row layout and update discipline as the sqlite store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/snipstash/snipstash/pkg/embeddings"
	"github.com/snipstash/snipstash/pkg/snippet"
	"github.com/snipstash/snipstash/pkg/storage"
	"github.com/snipstash/snipstash/pkg/vector"
)

const maxUpdateRetries = 3

const schema = `
CREATE TABLE IF NOT EXISTS snippets (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	code TEXT NOT NULL,
	language TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL,
	embedding BYTEA,
	embedding_model TEXT NOT NULL DEFAULT '',
	source_digest TEXT NOT NULL DEFAULT '',
	version BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_snippets_language ON snippets(language);
`

// Store implements storage.Store on Postgres.
type Store struct {
	db       *sql.DB
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// NewStore connects with the given DSN and ensures the schema.
func NewStore(dsn string, embedder embeddings.Embedder, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("postgres snippet store initialized",
		zap.String("embedding_model", embedder.ModelVersion()),
	)

	return &Store{db: db, embedder: embedder, logger: logger}, nil
}

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

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO snippets(title, description, code, language, tags, created_at, embedding, embedding_model, source_digest)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, rec.Title, rec.Description, rec.Code, rec.Language, string(tagsJSON), rec.CreatedAt,
		embBlob, rec.EmbeddingModel, rec.SourceDigest()).Scan(&rec.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: inserting snippet: %v", storage.ErrStore, err)
	}

	return rec, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*snippet.Snippet, error) {
	rec, _, err := s.getWithVersion(ctx, id)
	return rec, err
}

func (s *Store) List(ctx context.Context, offset, limit int) ([]*snippet.Snippet, error) {
	offset, limit = storage.ClampListRange(offset, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, code, language, tags, created_at, embedding, embedding_model
		FROM snippets
		ORDER BY id
		LIMIT $1 OFFSET $2
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

// Update uses the same optimistic version guard as the sqlite store: embed
// against a snapshot, commit only if the row's version is unchanged.
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
			SET title = $1, description = $2, code = $3, language = $4, tags = $5,
				embedding = $6, embedding_model = $7, source_digest = $8, version = version + 1
			WHERE id = $9 AND version = $10
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
	}

	return nil, fmt.Errorf("%w: snippet %d kept changing concurrently", storage.ErrStore, id)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snippets WHERE id = $1`, id)
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
		SET embedding = $1, embedding_model = $2, version = version + 1
		WHERE id = $3 AND source_digest = $4
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

	// No row matched: either the snippet is gone or its text moved on.
	if _, _, err := s.getWithVersion(ctx, id); err != nil {
		return err
	}
	return storage.ErrStaleDigest
}

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

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getWithVersion(ctx context.Context, id int64) (*snippet.Snippet, int64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, code, language, tags, created_at, embedding, embedding_model, version
		FROM snippets
		WHERE id = $1
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
