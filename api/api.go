package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/snipstash/snipstash/pkg/eventstream"
	"github.com/snipstash/snipstash/pkg/search"
	"github.com/snipstash/snipstash/pkg/storage"
	"github.com/snipstash/snipstash/pkg/vector"
)

// Server is the API server for managing and searching snippets.
type Server struct {
	config    Config
	store     storage.Store
	searcher  *search.Searcher
	publisher eventstream.Publisher
	index     vector.Index
	logger    *zap.Logger
	app       *fiber.App
}

// NewServer creates a new API server. The store, searcher and publisher are
// injected so they can be shared with the MCP server. The index is optional:
// when non-nil, writes are mirrored into it so an index-backed matcher stays
// current.
func NewServer(config Config, store storage.Store, searcher *search.Searcher, publisher eventstream.Publisher, index vector.Index, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    config,
		store:     store,
		searcher:  searcher,
		publisher: publisher,
		index:     index,
		logger:    logger,
		app:       app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Post("/snippets", s.handleCreateSnippet)
	v1.Get("/snippets", s.handleListSnippets)
	v1.Get("/snippets/:id", s.handleGetSnippet)
	v1.Put("/snippets/:id", s.handleUpdateSnippet)
	v1.Delete("/snippets/:id", s.handleDeleteSnippet)
	v1.Post("/search", s.handleSearch)
	v1.Get("/languages", s.handleLanguages)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
