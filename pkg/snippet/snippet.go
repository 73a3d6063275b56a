// Package snippet defines the snippet domain type: the unit of storage and
// retrieval for the snipstash system, along with input validation and the
// derivation of the text an embedding is computed from.
package snippet

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SourceSeparator joins title, description and code when building the
// embedding source text. Validation rejects fields containing it, so tokens
// can never bleed across field boundaries.
const SourceSeparator = "\x1f"

// ErrValidation is the sentinel for user-correctable input errors. Field
// specific messages wrap it so callers can branch with errors.Is.
var ErrValidation = errors.New("validation failed")

// Snippet is a stored code snippet. ID and CreatedAt are assigned by the
// store on creation and immutable afterwards. Embedding is nil until an
// embedding has been successfully computed for the current text.
type Snippet struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Code        string    `json:"code"`
	Language    string    `json:"language"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`

	// Embedding is the vector for the current title/description/code, or
	// nil when computation has not yet succeeded.
	Embedding []float32 `json:"-"`

	// EmbeddingModel is the model version string that produced Embedding.
	EmbeddingModel string `json:"-"`
}

// Fields is the input for creating a snippet.
type Fields struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Code        string   `json:"code"`
	Language    string   `json:"language"`
	Tags        []string `json:"tags"`
}

// Update carries a partial update. Nil pointers mean "leave unchanged".
type Update struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Code        *string   `json:"code"`
	Language    *string   `json:"language"`
	Tags        *[]string `json:"tags"`
}

// Validate checks the create input. Title, code and language must be
// non-empty after trimming; no text field may contain SourceSeparator.
func (f Fields) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(f.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrValidation)
	}
	if strings.TrimSpace(f.Language) == "" {
		return fmt.Errorf("%w: language is required", ErrValidation)
	}

	for name, value := range map[string]string{
		"title":       f.Title,
		"description": f.Description,
		"code":        f.Code,
	} {
		if strings.Contains(value, SourceSeparator) {
			return fmt.Errorf("%w: %s contains a reserved separator character", ErrValidation, name)
		}
	}

	return nil
}

// Validate checks a partial update. Provided required fields must not be
// blanked out, and no provided text field may contain SourceSeparator.
func (u Update) Validate() error {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}
	if u.Code != nil && strings.TrimSpace(*u.Code) == "" {
		return fmt.Errorf("%w: code cannot be empty", ErrValidation)
	}
	if u.Language != nil && strings.TrimSpace(*u.Language) == "" {
		return fmt.Errorf("%w: language cannot be empty", ErrValidation)
	}

	for name, value := range map[string]*string{
		"title":       u.Title,
		"description": u.Description,
		"code":        u.Code,
	} {
		if value != nil && strings.Contains(*value, SourceSeparator) {
			return fmt.Errorf("%w: %s contains a reserved separator character", ErrValidation, name)
		}
	}

	return nil
}

// TouchesSource reports whether the update changes any field that
// participates in the embedding source text.
func (u Update) TouchesSource() bool {
	return u.Title != nil || u.Description != nil || u.Code != nil
}

// Apply returns a copy of s with the update's provided fields applied.
// ID, CreatedAt and the embedding columns are carried over untouched; the
// store decides whether the embedding must be recomputed.
func (u Update) Apply(s *Snippet) *Snippet {
	out := *s
	if u.Title != nil {
		out.Title = *u.Title
	}
	if u.Description != nil {
		out.Description = *u.Description
	}
	if u.Code != nil {
		out.Code = *u.Code
	}
	if u.Language != nil {
		out.Language = *u.Language
	}
	if u.Tags != nil {
		out.Tags = append([]string(nil), (*u.Tags)...)
	}
	return &out
}

// EmbeddingText is the exact text embeddings are computed from: title,
// description and code in that order, joined by SourceSeparator.
func (s *Snippet) EmbeddingText() string {
	return EmbeddingText(s.Title, s.Description, s.Code)
}

// EmbeddingText builds the embedding source text for the given fields.
func EmbeddingText(title, description, code string) string {
	return strings.Join([]string{title, description, code}, SourceSeparator)
}

// SourceDigest is the SHA-256 fingerprint of the embedding source text. The
// store persists it next to the vector so a stale embedding (text edited
// after the vector was computed) is detectable.
func (s *Snippet) SourceDigest() string {
	return SourceDigest(s.EmbeddingText())
}

// SourceDigest fingerprints an embedding source text.
func SourceDigest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Searchable reports whether the snippet has a usable embedding and may
// appear in search results.
func (s *Snippet) Searchable() bool {
	return len(s.Embedding) > 0
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate canonical records.
func (s *Snippet) Clone() *Snippet {
	out := *s
	out.Tags = append([]string(nil), s.Tags...)
	out.Embedding = append([]float32(nil), s.Embedding...)
	return &out
}
