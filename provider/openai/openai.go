// Package openai_provider implements the reasoning engine boundary against
// OpenAI's chat completions API.
package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/helicon-labs/researchd/config"
	"github.com/helicon-labs/researchd/internal/engine"
)

// Client calls the chat completions endpoint with tool-calling enabled.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// NewClient creates a new OpenAI client from config.
func NewClient(cfg config.LLMConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type toolEntry struct {
	Type     string `json:"type"`
	Function struct {
		Name        string                 `json:"name"`
		Description string                 `json:"description"`
		Parameters  map[string]interface{} `json:"parameters"`
	} `json:"function"`
}

type request struct {
	Model       string      `json:"model"`
	Messages    []message   `json:"messages"`
	Tools       []toolEntry `json:"tools,omitempty"`
	Temperature float64     `json:"temperature"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
}

type response struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements engine.Engine.
func (c *Client) Complete(ctx context.Context, messages []engine.Message, tools []engine.ToolSpec) (engine.Completion, error) {
	reqBody := request{
		Model:       c.model,
		Messages:    toWireMessages(messages),
		Tools:       toWireTools(tools),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return engine.Completion{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return engine.Completion{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return engine.Completion{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return engine.Completion{}, fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return engine.Completion{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if apiResp.Error != nil {
			return engine.Completion{}, fmt.Errorf("API returned status %d: %s", resp.StatusCode, apiResp.Error.Message)
		}
		return engine.Completion{}, fmt.Errorf("API returned status: %d", resp.StatusCode)
	}
	if len(apiResp.Choices) == 0 {
		return engine.Completion{}, fmt.Errorf("no choices in response")
	}

	choice := apiResp.Choices[0].Message
	out := engine.Completion{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, engine.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func toWireMessages(messages []engine.Message) []message {
	out := make([]message, 0, len(messages))
	for _, m := range messages {
		wire := message{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			var w toolCall
			w.ID = tc.ID
			w.Type = "function"
			w.Function.Name = tc.Name
			w.Function.Arguments = tc.Arguments
			wire.ToolCalls = append(wire.ToolCalls, w)
		}
		out = append(out, wire)
	}
	return out
}

func toWireTools(tools []engine.ToolSpec) []toolEntry {
	out := make([]toolEntry, 0, len(tools))
	for _, t := range tools {
		var e toolEntry
		e.Type = "function"
		e.Function.Name = t.Name
		e.Function.Description = t.Description
		e.Function.Parameters = t.Parameters
		out = append(out, e)
	}
	return out
}
