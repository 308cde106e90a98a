// Package engine defines the boundary contract with the external reasoning
// engine. The orchestration loop only depends on these types; the concrete
// LLM client lives in provider/.
package engine

import "context"

// Message is one entry in the loop's transcript.
type Message struct {
	Role       string // system, user, assistant, tool
	Content    string
	ToolCalls  []ToolCall // set on assistant messages that request tools
	ToolCallID string     // set on tool messages carrying an observation
}

// ToolCall is a single engine request to invoke a named capability.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON payload as emitted by the engine
}

// ToolSpec describes a registered tool to the engine.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON schema for the arguments
}

// Completion is one engine turn: either tool calls to execute, or (when
// ToolCalls is empty) a final answer candidate in Content.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// Engine is a chat-completion function with tool-calling support.
type Engine interface {
	Complete(ctx context.Context, messages []Message, tools []ToolSpec) (Completion, error)
}
