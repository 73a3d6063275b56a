package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/snipstash/snipstash/pkg/search"
)

var (
	searchToolName    = "search"
	searchDescription = "Search stored code snippets by meaning. Returns the most relevant snippets for the query text, ranked by cosine similarity, with title, language, tags and a code preview."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query text to find relevant snippets"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 10)"`
}

// handleSearch processes a search tool call. Failures are tool-level errors,
// not protocol errors: the model sees them and can adjust its query.
func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, search.Response, error) {
	logger := s.config.Logger

	logger.Debug("MCP search request",
		zap.String("query", input.Query),
		zap.Int("topK", input.TopK),
	)

	// The schema marks top_k omitempty, so zero means the caller left it out.
	limit := input.TopK
	if limit <= 0 {
		limit = search.DefaultLimit
	}

	output, err := s.config.Searcher.Search(ctx, input.Query, limit)
	if err != nil {
		logger.Error("MCP search failed", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Search failed: %v", err)},
			},
		}, search.Response{}, nil
	}

	// Serialize the structured output as JSON for the text field
	// Per MCP spec: tools returning structured content should also return
	// serialized JSON in a TextContent block for backwards compatibility
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal search output", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}, search.Response{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, *output, nil
}
