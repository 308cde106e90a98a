// Package websearch provides best-effort web search behind a small provider
// interface. Serper and Brave are supported.
package websearch

import (
	"context"
	"errors"
)

// Result is a single search hit.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher runs a query and returns up to k results.
type Searcher interface {
	Search(ctx context.Context, q string, k int) ([]Result, error)
}

// Provider selects a search backend.
type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var ErrUnsupportedProvider = errors.New("unsupported search provider")

// NewSearcher builds a searcher for the given provider.
func NewSearcher(provider Provider, apiKey string) (Searcher, error) {
	switch provider {
	case SerperProvider:
		return serperSearch{apiKey: apiKey}, nil
	case BraveProvider:
		return braveSearch{apiKey: apiKey}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
