package api

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/snipstash/snipstash/pkg/eventstream"
	"github.com/snipstash/snipstash/pkg/snippet"
	"github.com/snipstash/snipstash/pkg/storage"
	"github.com/snipstash/snipstash/pkg/vector"
)

// ListSnippetsResponse wraps a page of snippets.
type ListSnippetsResponse struct {
	Count    int                `json:"count"`
	Snippets []*snippet.Snippet `json:"snippets"`
}

// LanguagesResponse lists the distinct languages in the store.
type LanguagesResponse struct {
	Languages []string `json:"languages"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleCreateSnippet handles POST /v1/snippets.
func (s *Server) handleCreateSnippet(c *fiber.Ctx) error {
	var fields snippet.Fields
	if err := c.BodyParser(&fields); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	created, err := s.store.Create(c.Context(), fields)
	if err != nil {
		if errors.Is(err, snippet.ErrValidation) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("creating snippet", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to create snippet"})
	}

	s.mirrorAdd(c.Context(), created)
	s.publish(c.Context(), eventstream.EventTypeSnippetCreated, created)

	return c.Status(fiber.StatusCreated).JSON(created)
}

// handleListSnippets handles GET /v1/snippets with offset/limit query params.
func (s *Server) handleListSnippets(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 0)

	snippets, err := s.store.List(c.Context(), offset, limit)
	if err != nil {
		s.logger.Error("listing snippets", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list snippets"})
	}

	if snippets == nil {
		snippets = []*snippet.Snippet{}
	}
	return c.JSON(ListSnippetsResponse{Count: len(snippets), Snippets: snippets})
}

// handleGetSnippet handles GET /v1/snippets/:id.
func (s *Server) handleGetSnippet(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id must be an integer"})
	}

	snip, err := s.store.Get(c.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("getting snippet", zap.Int64("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to get snippet"})
	}

	return c.JSON(snip)
}

// handleUpdateSnippet handles PUT /v1/snippets/:id with a partial update body.
func (s *Server) handleUpdateSnippet(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id must be an integer"})
	}

	var update snippet.Update
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	updated, err := s.store.Update(c.Context(), id, update)
	if err != nil {
		switch {
		case errors.Is(err, snippet.ErrValidation):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: err.Error()})
		case storage.IsNotFound(err):
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
		default:
			s.logger.Error("updating snippet", zap.Int64("id", id), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to update snippet"})
		}
	}

	s.mirrorAdd(c.Context(), updated)
	s.publish(c.Context(), eventstream.EventTypeSnippetUpdated, updated)

	return c.JSON(updated)
}

// handleDeleteSnippet handles DELETE /v1/snippets/:id.
func (s *Server) handleDeleteSnippet(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id must be an integer"})
	}

	// Fetch before deleting so the lifecycle event carries the full summary,
	// not just the ID.
	snip, err := s.store.Get(c.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("getting snippet for delete", zap.Int64("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to delete snippet"})
	}

	if err := s.store.Delete(c.Context(), id); err != nil {
		if storage.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("deleting snippet", zap.Int64("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to delete snippet"})
	}

	s.mirrorDelete(c.Context(), id)
	s.publish(c.Context(), eventstream.EventTypeSnippetDeleted, snip)

	return c.SendStatus(fiber.StatusNoContent)
}

// handleLanguages handles GET /v1/languages.
func (s *Server) handleLanguages(c *fiber.Ctx) error {
	langs, err := s.store.Languages(c.Context())
	if err != nil {
		s.logger.Error("listing languages", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list languages"})
	}

	if langs == nil {
		langs = []string{}
	}
	return c.JSON(LanguagesResponse{Languages: langs})
}

func parseID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

// publish emits a lifecycle event. Best effort: a publish failure is logged
// and never fails the request that triggered it.
func (s *Server) publish(ctx context.Context, eventType string, snip *snippet.Snippet) {
	if s.publisher == nil {
		return
	}

	event := eventstream.NewSnippetEvent(eventType, snip)
	if err := s.publisher.PublishSnippet(ctx, event); err != nil {
		s.logger.Warn("publishing snippet event",
			zap.String("event_type", eventType),
			zap.Int64("snippet_id", snip.ID),
			zap.Error(err),
		)
	}
}

// mirrorAdd keeps the optional vector index in sync after a write. Best
// effort: the store row is canonical, a stale index entry only degrades
// ranking until the next backfill.
func (s *Server) mirrorAdd(ctx context.Context, snip *snippet.Snippet) {
	if s.index == nil || !snip.Searchable() {
		return
	}

	err := s.index.Add(ctx, []vector.Candidate{{ID: snip.ID, Embedding: snip.Embedding}})
	if err != nil {
		s.logger.Warn("mirroring snippet into index",
			zap.Int64("snippet_id", snip.ID),
			zap.Error(err),
		)
	}
}

func (s *Server) mirrorDelete(ctx context.Context, id int64) {
	if s.index == nil {
		return
	}

	if err := s.index.Delete(ctx, []int64{id}); err != nil {
		s.logger.Warn("removing snippet from index",
			zap.Int64("snippet_id", id),
			zap.Error(err),
		)
	}
}
