package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/snipstash/snipstash/pkg/embeddings"
	"github.com/snipstash/snipstash/pkg/search"
)

// SearchRequest is the body for POST /v1/search. Limit is a pointer so an
// absent limit (take the default) is distinguishable from an explicit zero
// (return no results).
type SearchRequest struct {
	Query string `json:"query"`
	Limit *int   `json:"limit"`
}

// handleSearch handles POST /v1/search requests. The limit is clamped by the
// orchestrator; an empty query is a validation failure, an embedding provider
// failure maps to 502 because the fault is upstream, not in the request.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	limit := search.DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	resp, err := s.searcher.Search(c.Context(), req.Query, limit)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrEmptyQuery):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: err.Error()})
		case errors.Is(err, embeddings.ErrCompute):
			return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "embedding provider unavailable"})
		default:
			s.logger.Error("search failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "search failed"})
		}
	}

	return c.JSON(resp)
}
