package openai_provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/helicon-labs/researchd/config"
	"github.com/helicon-labs/researchd/internal/engine"
)

func TestCompleteRoundTripsToolCalls(t *testing.T) {
	var captured request
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{
				"role":"assistant",
				"content":"",
				"tool_calls":[{"id":"call_1","type":"function","function":{"name":"search","arguments":"{\"query\":\"x\"}"}}]
			}}]
		}`))
	}))
	defer api.Close()

	c := NewClient(config.LLMConfig{APIKey: "sk-test", BaseURL: api.URL, Model: "gpt-4o-mini"})
	completion, err := c.Complete(context.Background(),
		[]engine.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hello"},
		},
		[]engine.ToolSpec{{Name: "search", Description: "d", Parameters: map[string]interface{}{"type": "object"}}},
	)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(completion.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", completion.ToolCalls)
	}
	tc := completion.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "search" || tc.Arguments != `{"query":"x"}` {
		t.Fatalf("unexpected tool call %+v", tc)
	}

	if captured.Model != "gpt-4o-mini" {
		t.Fatalf("model = %q", captured.Model)
	}
	if len(captured.Tools) != 1 || captured.Tools[0].Function.Name != "search" {
		t.Fatalf("tools not serialized: %+v", captured.Tools)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("messages not serialized: %+v", captured.Messages)
	}
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer api.Close()

	c := NewClient(config.LLMConfig{APIKey: "sk-test", BaseURL: api.URL, Model: "gpt-4o-mini"})
	_, err := c.Complete(context.Background(), []engine.Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestCompleteToolObservationMessage(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		last := req.Messages[len(req.Messages)-1]
		if last.Role != "tool" || last.ToolCallID != "call_1" {
			t.Errorf("tool observation not serialized: %+v", last)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"done"}}]}`))
	}))
	defer api.Close()

	c := NewClient(config.LLMConfig{APIKey: "sk-test", BaseURL: api.URL, Model: "gpt-4o-mini"})
	completion, err := c.Complete(context.Background(), []engine.Message{
		{Role: "user", Content: "q"},
		{Role: "assistant", ToolCalls: []engine.ToolCall{{ID: "call_1", Name: "search", Arguments: "{}"}}},
		{Role: "tool", Content: "observation", ToolCallID: "call_1"},
	}, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completion.Content != "done" {
		t.Fatalf("content = %q", completion.Content)
	}
}
