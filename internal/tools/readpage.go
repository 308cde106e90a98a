package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// ReadPageTool fetches a URL and extracts the readable article text, giving
// the engine a way to follow up on search hits.
type ReadPageTool struct {
	maxChars   int
	httpClient *http.Client
}

func NewReadPageTool(maxChars int) *ReadPageTool {
	if maxChars <= 0 {
		maxChars = 20000
	}
	return &ReadPageTool{
		maxChars:   maxChars,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func (t *ReadPageTool) Name() string { return "read_page" }

func (t *ReadPageTool) Description() string {
	return "Fetch a web page and return its readable article text"
}

func (t *ReadPageTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"url": map[string]interface{}{
			"type":        "string",
			"description": "The http(s) URL to fetch",
		},
	}, "url")
}

func (t *ReadPageTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	rawURL, err := stringParam(args, "url")
	if err != nil {
		return "", err
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch returned status: %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", fmt.Errorf("readability extraction failed: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "No readable content found.", nil
	}
	if len(text) > t.maxChars {
		text = text[:t.maxChars]
	}
	if article.Title != "" {
		return article.Title + "\n\n" + text, nil
	}
	return text, nil
}
