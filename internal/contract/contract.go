// Package contract defines the structured answer the reasoning engine must
// emit and the strict parser that validates raw engine output against it.
package contract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Answer is the validated final output of one orchestration run.
type Answer struct {
	Topic     string   `json:"topic"`
	Summary   string   `json:"summary"` // markdown
	Sources   []string `json:"sources"`
	ToolsUsed []string `json:"tools_used"`
}

// ParseError reports engine output that does not satisfy the contract. It
// carries the offending raw text for diagnostics.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("structured output parse failed: %s", e.Reason)
}

// FormatInstructions renders the required output shape for the engine's
// system prompt.
func FormatInstructions() string {
	return `Respond ONLY with a JSON object in exactly this shape and provide no other text:
{
  "topic": "main research subject",
  "summary": "consolidated findings in markdown",
  "sources": ["reference URLs"],
  "tools_used": ["names of tools you invoked"]
}
All four fields are required. "sources" and "tools_used" must be arrays of strings (empty arrays are allowed).`
}

// Parse validates and decodes raw engine output. It is strict: a missing or
// null field, a non-string topic or summary, or a list containing non-string
// elements all fail. Missing fields are never coerced to defaults.
func Parse(raw string) (Answer, error) {
	text := stripFence(raw)
	if strings.TrimSpace(text) == "" {
		return Answer{}, &ParseError{Reason: "empty output", Raw: raw}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return Answer{}, &ParseError{Reason: "not a JSON object: " + err.Error(), Raw: raw}
	}

	var ans Answer
	var err error
	if ans.Topic, err = requireString(fields, "topic"); err != nil {
		return Answer{}, &ParseError{Reason: err.Error(), Raw: raw}
	}
	if ans.Summary, err = requireString(fields, "summary"); err != nil {
		return Answer{}, &ParseError{Reason: err.Error(), Raw: raw}
	}
	if ans.Sources, err = requireStringList(fields, "sources"); err != nil {
		return Answer{}, &ParseError{Reason: err.Error(), Raw: raw}
	}
	if ans.ToolsUsed, err = requireStringList(fields, "tools_used"); err != nil {
		return Answer{}, &ParseError{Reason: err.Error(), Raw: raw}
	}
	return ans, nil
}

func requireString(fields map[string]json.RawMessage, key string) (string, error) {
	rawField, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("missing required field %q", key)
	}
	var s string
	if err := json.Unmarshal(rawField, &s); err != nil {
		return "", fmt.Errorf("field %q must be a string", key)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("field %q must be non-empty", key)
	}
	return s, nil
}

func requireStringList(fields map[string]json.RawMessage, key string) ([]string, error) {
	rawField, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("missing required field %q", key)
	}
	if string(rawField) == "null" {
		return nil, fmt.Errorf("field %q must be a list of strings, not null", key)
	}
	var items []string
	if err := json.Unmarshal(rawField, &items); err != nil {
		return nil, fmt.Errorf("field %q must be a list of strings", key)
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

// stripFence removes a surrounding markdown code fence, which models often
// wrap JSON output in despite instructions.
func stripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// drop a language hint like "json" on the fence line
		first := strings.TrimSpace(text[:nl])
		if first == "" || !strings.ContainsAny(first, "{}") {
			text = text[nl+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
