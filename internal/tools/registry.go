// Package tools holds the fixed registry of capabilities the reasoning
// engine may invoke, plus the built-in tool implementations.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/helicon-labs/researchd/internal/engine"
)

// Tool is a single named capability.
type Tool interface {
	Name() string
	Description() string
	// Schema returns the JSON schema of the tool's argument object, handed
	// to the engine as the function parameters.
	Schema() map[string]interface{}
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

// UnknownToolError is returned when the engine requests a tool name that was
// never registered. The orchestration loop recovers from it locally.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// Registry is a fixed mapping from tool name to implementation. It is built
// once at startup and never mutated afterwards.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds a registry, rejecting duplicate names.
func NewRegistry(ts ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("duplicate tool name %q", name)
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return r, nil
}

// Lookup resolves a tool by name, failing fast on unregistered names.
func (r *Registry) Lookup(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return t, nil
}

// Specs describes all registered tools to the engine, in registration order.
func (r *Registry) Specs() []engine.ToolSpec {
	specs := make([]engine.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, engine.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return specs
}

func stringParam(args json.RawMessage, key string) (string, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(args, &payload); err != nil {
		// tolerate a bare string argument, some models emit those
		var s string
		if err2 := json.Unmarshal(args, &s); err2 == nil {
			return s, nil
		}
		return "", fmt.Errorf("invalid tool arguments: %w", err)
	}
	raw, ok := payload[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
