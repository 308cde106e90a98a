package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/helicon-labs/researchd/tools/websearch"
)

// SearchTool exposes web search to the engine.
type SearchTool struct {
	searcher websearch.Searcher
	results  int
}

// NewSearchTool wraps a websearch provider. k bounds the number of results
// folded into one observation.
func NewSearchTool(searcher websearch.Searcher, k int) *SearchTool {
	if k <= 0 {
		k = 5
	}
	return &SearchTool{searcher: searcher, results: k}
}

func (t *SearchTool) Name() string { return "search" }

func (t *SearchTool) Description() string {
	return "Search the web for up-to-date information"
}

func (t *SearchTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"query": map[string]interface{}{
			"type":        "string",
			"description": "The search query",
		},
	}, "query")
}

func (t *SearchTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := stringParam(args, "query")
	if err != nil {
		return "", err
	}
	results, err := t.searcher.Search(ctx, query, t.results)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "- %s (%s)\n", r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "  %s\n", r.Snippet)
		}
	}
	return b.String(), nil
}
