package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SaveTool appends research findings to a text file. It never truncates:
// every invocation adds a timestamped block, so prior content for the same
// target is preserved.
type SaveTool struct {
	dir         string
	defaultFile string
	now         func() time.Time
}

// NewSaveTool writes under dir; defaultFile is used when the engine omits a
// filename.
func NewSaveTool(dir, defaultFile string) *SaveTool {
	if defaultFile == "" {
		defaultFile = "research_output.txt"
	}
	return &SaveTool{dir: dir, defaultFile: defaultFile, now: time.Now}
}

func (t *SaveTool) Name() string { return "save_text_to_file" }

func (t *SaveTool) Description() string {
	return "Saves structured research data to a text file."
}

func (t *SaveTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"data": map[string]interface{}{
			"type":        "string",
			"description": "Research content to save, markdown formatted",
		},
		"filename": map[string]interface{}{
			"type":        "string",
			"description": "Optional target file name",
		},
	}, "data")
}

func (t *SaveTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	data, err := stringParam(args, "data")
	if err != nil {
		return "", err
	}
	filename := t.defaultFile
	if name, err := stringParam(args, "filename"); err == nil && name != "" {
		filename = name
	}
	// the engine picks the name; keep it inside the output dir
	if filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("invalid filename %q", filename)
	}

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(t.dir, filename)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	timestamp := t.now().Format("2006-01-02 15:04:05")
	block := fmt.Sprintf("--- Research Output ---\nTimestamp: %s\n\n%s\n\n", timestamp, data)
	if _, err := f.WriteString(block); err != nil {
		return "", err
	}
	return fmt.Sprintf("Data successfully saved to %s", filename), nil
}
