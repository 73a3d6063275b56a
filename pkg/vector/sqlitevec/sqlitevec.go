// Package sqlitevec provides a SQLite-backed vector index using sqlite-vec.
//
// The vec0 virtual table is created with distance_metric=cosine, so KNN
// queries return exact cosine distances. Returned rows are re-sorted to
// break score ties by ascending rowid; when several candidates tie exactly
// at the top-k boundary, which of them makes the cut is vec0's choice.
package sqlitevec

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/snipstash/snipstash/pkg/vector"
)

// Index implements vector.Index using SQLite with sqlite-vec. Snippet IDs are
// used directly as vec0 rowids.
type Index struct {
	db         *sql.DB
	dimensions uint
	logger     *zap.Logger
}

// Config holds configuration for the sqlite-vec index.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	// Required.
	Dimensions uint
}

// NewIndex creates a new sqlite-vec backed index.
func NewIndex(c Config, logger *zap.Logger) (*Index, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrConnection, err)
	}

	// A single connection serializes writes at the driver level and keeps
	// ":memory:" databases from splitting across pool connections.
	db.SetMaxOpenConns(1)

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %v", vector.ErrConnection, err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS snippet_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec index initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Index{
		db:         db,
		dimensions: c.Dimensions,
		logger:     logger,
	}, nil
}

// Add stores or replaces entries by ID. vec0 tables do not support UPDATE, so
// replacement is a DELETE followed by an INSERT inside one transaction.
func (x *Index) Add(ctx context.Context, entries []vector.Candidate) error {
	if len(entries) == 0 {
		return nil
	}

	for _, e := range entries {
		if uint(len(e.Embedding)) != x.dimensions {
			return fmt.Errorf("%w: entry %d has %d dimensions, index expects %d",
				vector.ErrDimensionMismatch, e.ID, len(e.Embedding), x.dimensions)
		}
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM snippet_embeddings WHERE rowid = ?`, e.ID,
		); err != nil {
			return fmt.Errorf("deleting old embedding for snippet %d: %w", e.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snippet_embeddings(rowid, embedding) VALUES (?, ?)`,
			e.ID, vector.EncodeFloat32(e.Embedding),
		); err != nil {
			return fmt.Errorf("inserting embedding for snippet %d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	x.logger.Debug("added entries to sqlite-vec index",
		zap.Int("count", len(entries)),
	)

	return nil
}

// Delete removes entries by ID. Unknown IDs are ignored.
func (x *Index) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(
		`DELETE FROM snippet_embeddings WHERE rowid IN (%s)`,
		strings.Join(placeholders, ","),
	)
	if _, err := x.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}

	return nil
}

// Query returns the top k entries by cosine similarity. Cosine distance from
// vec0 is converted back to similarity via score = 1 - distance; ties are
// broken by ascending rowid.
func (x *Index) Query(ctx context.Context, query []float32, k int) ([]vector.Match, error) {
	if k <= 0 {
		return []vector.Match{}, nil
	}

	if uint(len(query)) != x.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			vector.ErrDimensionMismatch, len(query), x.dimensions)
	}

	rows, err := x.db.QueryContext(ctx, `
		SELECT rowid, distance
		FROM snippet_embeddings
		WHERE embedding MATCH ?
			AND k = ?
		ORDER BY distance
	`, vector.EncodeFloat32(query), k)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	matches := []vector.Match{}
	for rows.Next() {
		var id int64
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		matches = append(matches, vector.Match{
			ID:    id,
			Score: float32(1.0 - distance),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	x.logger.Debug("queried sqlite-vec index",
		zap.Int("results", len(matches)),
	)

	return matches, nil
}

// Close releases resources held by the index.
func (x *Index) Close() error {
	return x.db.Close()
}

var _ vector.Index = (*Index)(nil)
