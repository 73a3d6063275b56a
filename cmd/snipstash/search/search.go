// Package searchcmder provides the search command for semantic search over
// snippets via a running snipstash API server.
package searchcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/snipstash/snipstash/pkg/cliui"
	"github.com/snipstash/snipstash/pkg/search"
)

const defaultAPITarget = "http://localhost:8080"

type searchCommander struct {
	query     string
	limit     int
	quiet     bool
	apiTarget string
}

const searchLongDesc string = `Search snippets by meaning via the snipstash API.

The query is embedded and matched against stored snippet vectors, so results
are ranked by semantic similarity rather than keyword overlap. Requires a
running snipstash server.

Use --quiet to output only snippet IDs, one per line, for piping.

Example:
  snipstash search "retry a request with backoff"
  snipstash search "sort a slice in place" --limit 3
  snipstash search "cache eviction" --api-target http://localhost:8080
  snipstash search "worker pool" --quiet`

const searchShortDesc string = "Search snippets by meaning"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&cmder.limit, "limit", "k", search.DefaultLimit, "Number of results to return")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only snippet IDs, one per line (for piping)")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaultAPITarget, "snipstash API server URL")

	return cmd
}

func (c *searchCommander) run(ctx context.Context) error {
	resp, err := SearchAPI(ctx, c.apiTarget, c.query, c.limit)
	if err != nil {
		return err
	}

	if resp.Count == 0 {
		if !c.quiet {
			fmt.Println("No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, result := range resp.Results {
			fmt.Println(result.ID)
		}
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		cliui.ValueStyle.Bold(true).Render("Search results for:"),
		cliui.KeyStyle.Render(fmt.Sprintf("%q", resp.Query)),
	)

	for i, result := range resp.Results {
		printResult(i+1, result)
	}

	return nil
}

func printResult(rank int, result search.Result) {
	fmt.Printf("  %s  %s  %s %s\n",
		cliui.NameStyle.Render(fmt.Sprintf("#%d", rank)),
		cliui.StepStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
		cliui.ValueStyle.Render(result.Title),
		cliui.DimStyle.Render(fmt.Sprintf("(%s, id %d)", result.Language, result.ID)),
	)

	if result.Description != "" {
		fmt.Printf("     %s\n", cliui.StepStyle.Render(result.Description))
	}

	preview := strings.ReplaceAll(result.CodePreview, "\n", " ")
	if len(preview) > 80 {
		preview = preview[:77] + "..."
	}
	fmt.Printf("     %s\n", cliui.DimStyle.Render(preview))

	if len(result.Tags) > 0 {
		fmt.Printf("     %s\n", cliui.DimStyle.Render(strings.Join(result.Tags, ", ")))
	}

	fmt.Println()
}

// SearchAPI calls the snipstash search API and returns the parsed response.
func SearchAPI(ctx context.Context, apiTarget, query string, limit int) (*search.Response, error) {
	searchURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	searchURL.Path = "/v1/search"

	payload, err := json.Marshal(map[string]any{
		"query": query,
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to snipstash API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var out search.Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return &out, nil
}
