// Package orchestrator drives the reasoning engine through a bounded
// think -> call tool -> observe loop until it emits a structured answer.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/helicon-labs/researchd/internal/contract"
	"github.com/helicon-labs/researchd/internal/engine"
	"github.com/helicon-labs/researchd/internal/telemetry"
	"github.com/helicon-labs/researchd/internal/tools"
)

// ErrTooManyIterations is returned when the engine keeps requesting tools
// past the configured ceiling without producing a final answer.
var ErrTooManyIterations = errors.New("orchestration exceeded iteration limit")

const systemPrompt = `You are a research assistant that will help generate a research paper. Answer the user query and use the necessary tools. ` // format instructions appended at run time

// Result is the outcome of one successful orchestration run.
type Result struct {
	Answer     contract.Answer
	ToolsUsed  []string // ordered audit of tools actually invoked
	RunID      string
	Iterations int
}

// Orchestrator owns one engine and one tool registry and runs independent
// research requests against them.
type Orchestrator struct {
	engine        engine.Engine
	registry      *tools.Registry
	maxIterations int
	logger        *log.Logger
	telemetry     *telemetry.Telemetry
}

// New creates an orchestrator. maxIterations bounds reasoning round-trips;
// values <= 0 fall back to 10.
func New(eng engine.Engine, registry *tools.Registry, maxIterations int, logger *log.Logger, tele *telemetry.Telemetry) *Orchestrator {
	if maxIterations <= 0 {
		maxIterations = 10
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	return &Orchestrator{
		engine:        eng,
		registry:      registry,
		maxIterations: maxIterations,
		logger:        logger,
		telemetry:     tele,
	}
}

// Run executes the loop for one query. Tool-level failures are fed back to
// the engine as observations; parse failures and the iteration ceiling
// terminate the run with an error.
func (o *Orchestrator) Run(ctx context.Context, query string) (*Result, error) {
	runID := uuid.NewString()
	start := time.Now()
	o.logger.Printf("run %s started: %q", runID, query)

	transcript := []engine.Message{
		{Role: "system", Content: systemPrompt + contract.FormatInstructions()},
		{Role: "user", Content: query},
	}
	specs := o.registry.Specs()
	var toolsUsed []string

	for iteration := 1; iteration <= o.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			o.finish(false, start, iteration)
			return nil, err
		}

		completion, err := o.engine.Complete(ctx, transcript, specs)
		if err != nil {
			o.finish(false, start, iteration)
			return nil, fmt.Errorf("engine call failed: %w", err)
		}

		if len(completion.ToolCalls) == 0 {
			result, err := o.finalize(runID, completion.Content, toolsUsed, iteration)
			o.finish(err == nil, start, iteration)
			return result, err
		}

		observations, err := o.executeStep(ctx, completion.ToolCalls)
		if err != nil {
			o.finish(false, start, iteration)
			return nil, err
		}
		for _, call := range completion.ToolCalls {
			toolsUsed = append(toolsUsed, call.Name)
		}

		transcript = append(transcript, engine.Message{
			Role:      "assistant",
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})
		transcript = append(transcript, observations...)
	}

	o.logger.Printf("run %s hit iteration limit (%d)", runID, o.maxIterations)
	o.finish(false, start, o.maxIterations)
	return nil, ErrTooManyIterations
}

// executeStep runs all tool calls of one reasoning step concurrently and
// waits for every one before returning; observations come back in the order
// the engine issued the calls. Tool errors never fail the step: the error
// text becomes the observation so the engine can adapt. Only context
// cancellation aborts.
func (o *Orchestrator) executeStep(ctx context.Context, calls []engine.ToolCall) ([]engine.Message, error) {
	observations := make([]engine.Message, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			text, err := o.invoke(gctx, call)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				text = fmt.Sprintf("tool %q failed: %v", call.Name, err)
			}
			observations[i] = engine.Message{
				Role:       "tool",
				Content:    text,
				ToolCallID: call.ID,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return observations, nil
}

func (o *Orchestrator) invoke(ctx context.Context, call engine.ToolCall) (string, error) {
	tool, err := o.registry.Lookup(call.Name)
	if err != nil {
		o.telemetry.RecordToolCall(call.Name, err)
		return "", err
	}
	args := call.Arguments
	if args == "" {
		args = "{}"
	}
	text, err := tool.Invoke(ctx, json.RawMessage(args))
	o.telemetry.RecordToolCall(call.Name, err)
	return text, err
}

func (o *Orchestrator) finalize(runID, candidate string, toolsUsed []string, iterations int) (*Result, error) {
	answer, err := contract.Parse(candidate)
	if err != nil {
		o.logger.Printf("run %s final answer rejected: %v", runID, err)
		return nil, err
	}
	if !sameTools(toolsUsed, answer.ToolsUsed) {
		// tolerated: the audit trail is authoritative, the claim is the model's
		o.logger.Printf("run %s tools_used mismatch: invoked %v, claimed %v", runID, toolsUsed, answer.ToolsUsed)
	}
	return &Result{
		Answer:     answer,
		ToolsUsed:  toolsUsed,
		RunID:      runID,
		Iterations: iterations,
	}, nil
}

func (o *Orchestrator) finish(success bool, start time.Time, iterations int) {
	o.telemetry.RecordRun(success, time.Since(start), iterations)
}

func sameTools(invoked, claimed []string) bool {
	seen := make(map[string]bool, len(invoked))
	for _, name := range invoked {
		seen[name] = true
	}
	if len(seen) != len(uniq(claimed)) {
		return false
	}
	for _, name := range claimed {
		if !seen[name] {
			return false
		}
	}
	return true
}

func uniq(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
