package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/helicon-labs/researchd/internal/contract"
	"github.com/helicon-labs/researchd/internal/engine"
	"github.com/helicon-labs/researchd/internal/tools"
)

// scriptedEngine plays back a fixed sequence of completions.
type scriptedEngine struct {
	mu    sync.Mutex
	turns []engine.Completion
	calls int
	seen  [][]engine.Message
}

func (s *scriptedEngine) Complete(ctx context.Context, messages []engine.Message, specs []engine.ToolSpec) (engine.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, messages)
	if s.calls >= len(s.turns) {
		return engine.Completion{}, errors.New("script exhausted")
	}
	turn := s.turns[s.calls]
	s.calls++
	return turn, nil
}

// echoTool records invocations and returns a canned observation.
type echoTool struct {
	name  string
	reply string
	mu    sync.Mutex
	count int
	delay time.Duration
	fail  error
}

func (e *echoTool) Name() string                   { return e.name }
func (e *echoTool) Description() string            { return "test tool" }
func (e *echoTool) Schema() map[string]interface{} { return map[string]interface{}{"type": "object"} }

func (e *echoTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	e.mu.Lock()
	e.count++
	e.mu.Unlock()
	if e.fail != nil {
		return "", e.fail
	}
	return e.reply, nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func mustRegistry(t *testing.T, ts ...tools.Tool) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistry(ts...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

const finalAnswer = `{"topic":"Capital of France","summary":"Paris is the capital of France.","sources":[],"tools_used":["search"]}`

func TestRunSearchThenAnswer(t *testing.T) {
	search := &echoTool{name: "search", reply: "Paris is the capital of France."}
	eng := &scriptedEngine{turns: []engine.Completion{
		{ToolCalls: []engine.ToolCall{{ID: "c1", Name: "search", Arguments: `{"query":"capital of France"}`}}},
		{Content: finalAnswer},
	}}
	o := New(eng, mustRegistry(t, search), 10, quietLogger(), nil)

	res, err := o.Run(context.Background(), "capital of France")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Answer.Topic != "Capital of France" {
		t.Fatalf("topic = %q", res.Answer.Topic)
	}
	if len(res.ToolsUsed) != 1 || res.ToolsUsed[0] != "search" {
		t.Fatalf("audit trail = %v", res.ToolsUsed)
	}
	if res.Iterations != 2 {
		t.Fatalf("iterations = %d", res.Iterations)
	}
	if search.count != 1 {
		t.Fatalf("search invoked %d times", search.count)
	}

	// second engine turn must have seen the observation
	last := eng.seen[len(eng.seen)-1]
	var observed bool
	for _, m := range last {
		if m.Role == "tool" && m.Content == "Paris is the capital of France." && m.ToolCallID == "c1" {
			observed = true
		}
	}
	if !observed {
		t.Fatalf("observation missing from transcript: %+v", last)
	}
}

func TestRunEnforcesIterationCeiling(t *testing.T) {
	// engine that always wants another tool call and never finishes
	search := &echoTool{name: "search", reply: "more"}
	turns := make([]engine.Completion, 20)
	for i := range turns {
		turns[i] = engine.Completion{ToolCalls: []engine.ToolCall{{ID: fmt.Sprintf("c%d", i), Name: "search", Arguments: "{}"}}}
	}
	o := New(&scriptedEngine{turns: turns}, mustRegistry(t, search), 3, quietLogger(), nil)

	_, err := o.Run(context.Background(), "loop forever")
	if !errors.Is(err, ErrTooManyIterations) {
		t.Fatalf("expected ErrTooManyIterations, got %v", err)
	}
	if search.count != 3 {
		t.Fatalf("expected exactly 3 tool rounds, got %d", search.count)
	}
}

func TestRunRecoversFromUnknownTool(t *testing.T) {
	eng := &scriptedEngine{turns: []engine.Completion{
		{ToolCalls: []engine.ToolCall{{ID: "c1", Name: "wikipedia", Arguments: "{}"}}},
		{Content: finalAnswer},
	}}
	o := New(eng, mustRegistry(t, &echoTool{name: "search", reply: "x"}), 10, quietLogger(), nil)

	res, err := o.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run should recover from unknown tool, got %v", err)
	}
	if len(res.ToolsUsed) != 1 || res.ToolsUsed[0] != "wikipedia" {
		t.Fatalf("audit trail = %v", res.ToolsUsed)
	}

	last := eng.seen[len(eng.seen)-1]
	var fedBack bool
	for _, m := range last {
		if m.Role == "tool" && m.ToolCallID == "c1" {
			fedBack = m.Content != ""
		}
	}
	if !fedBack {
		t.Fatalf("unknown-tool failure was not fed back as observation")
	}
}

func TestRunRecoversFromToolError(t *testing.T) {
	broken := &echoTool{name: "search", fail: errors.New("upstream 503")}
	eng := &scriptedEngine{turns: []engine.Completion{
		{ToolCalls: []engine.ToolCall{{ID: "c1", Name: "search", Arguments: "{}"}}},
		{Content: finalAnswer},
	}}
	o := New(eng, mustRegistry(t, broken), 10, quietLogger(), nil)
	if _, err := o.Run(context.Background(), "q"); err != nil {
		t.Fatalf("Run should recover from tool error, got %v", err)
	}
}

func TestRunFailsOnUnparsableAnswer(t *testing.T) {
	eng := &scriptedEngine{turns: []engine.Completion{
		{Content: "here is your answer: Paris"},
	}}
	o := New(eng, mustRegistry(t, &echoTool{name: "search"}), 10, quietLogger(), nil)

	_, err := o.Run(context.Background(), "q")
	var pe *contract.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *contract.ParseError, got %v", err)
	}
	if pe.Raw != "here is your answer: Paris" {
		t.Fatalf("ParseError lost raw text: %q", pe.Raw)
	}
}

func TestRunStepWaitsForAllToolCalls(t *testing.T) {
	fast := &echoTool{name: "fast", reply: "fast done"}
	slow := &echoTool{name: "slow", reply: "slow done", delay: 50 * time.Millisecond}
	eng := &scriptedEngine{turns: []engine.Completion{
		{ToolCalls: []engine.ToolCall{
			{ID: "c1", Name: "slow", Arguments: "{}"},
			{ID: "c2", Name: "fast", Arguments: "{}"},
		}},
		{Content: finalAnswer},
	}}
	o := New(eng, mustRegistry(t, fast, slow), 10, quietLogger(), nil)

	if _, err := o.Run(context.Background(), "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// both observations present, in issue order, before the second turn
	last := eng.seen[len(eng.seen)-1]
	var got []string
	for _, m := range last {
		if m.Role == "tool" {
			got = append(got, m.Content)
		}
	}
	if len(got) != 2 || got[0] != "slow done" || got[1] != "fast done" {
		t.Fatalf("partial or misordered observations: %v", got)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	slow := &echoTool{name: "search", reply: "x", delay: time.Second}
	turns := []engine.Completion{
		{ToolCalls: []engine.ToolCall{{ID: "c1", Name: "search", Arguments: "{}"}}},
		{Content: finalAnswer},
	}
	o := New(&scriptedEngine{turns: turns}, mustRegistry(t, slow), 10, quietLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := o.Run(ctx, "q")
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("run did not abandon promptly")
	}
}
