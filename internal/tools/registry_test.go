package tools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/helicon-labs/researchd/tools/websearch"
)

type fakeSearcher struct {
	results []websearch.Result
	err     error
}

func (f fakeSearcher) Search(ctx context.Context, q string, k int) ([]websearch.Result, error) {
	return f.results, f.err
}

func TestSearchToolFormatsResults(t *testing.T) {
	tool := NewSearchTool(fakeSearcher{results: []websearch.Result{
		{Title: "Paris", URL: "https://en.wikipedia.org/wiki/Paris", Snippet: "Capital of France"},
	}}, 5)
	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"query":"capital of France"}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out, "Paris") || !strings.Contains(out, "Capital of France") {
		t.Fatalf("unexpected observation %q", out)
	}
}

func TestSearchToolNoResults(t *testing.T) {
	tool := NewSearchTool(fakeSearcher{}, 5)
	out, err := tool.Invoke(context.Background(), json.RawMessage(`{"query":"xyzzy"}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "No results found." {
		t.Fatalf("unexpected observation %q", out)
	}
}

func TestRegistryLookupUnknown(t *testing.T) {
	r, err := NewRegistry(NewSaveTool(t.TempDir(), ""))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	_, err = r.Lookup("wikipedia")
	var ute *UnknownToolError
	if !errors.As(err, &ute) {
		t.Fatalf("expected *UnknownToolError, got %v", err)
	}
	if ute.Name != "wikipedia" {
		t.Fatalf("unexpected name %q", ute.Name)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewRegistry(NewSaveTool(dir, ""), NewSaveTool(dir, "")); err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}
}

func TestRegistrySpecsOrdered(t *testing.T) {
	r, err := NewRegistry(NewSaveTool(t.TempDir(), ""), NewReadPageTool(0))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	specs := r.Specs()
	if len(specs) != 2 || specs[0].Name != "save_text_to_file" || specs[1].Name != "read_page" {
		t.Fatalf("unexpected specs: %+v", specs)
	}
	if specs[0].Parameters["type"] != "object" {
		t.Fatalf("expected object schema, got %v", specs[0].Parameters)
	}
}

func TestSaveToolAppends(t *testing.T) {
	dir := t.TempDir()
	tool := NewSaveTool(dir, "research_output.txt")
	tool.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	ctx := context.Background()
	for _, data := range []string{"first entry", "second entry"} {
		args, _ := json.Marshal(map[string]string{"data": data})
		msg, err := tool.Invoke(ctx, args)
		if err != nil {
			t.Fatalf("Invoke: %v", err)
		}
		if !strings.Contains(msg, "research_output.txt") {
			t.Fatalf("unexpected confirmation %q", msg)
		}
	}

	content, err := os.ReadFile(filepath.Join(dir, "research_output.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "first entry") || !strings.Contains(text, "second entry") {
		t.Fatalf("append lost content:\n%s", text)
	}
	if got := strings.Count(text, "--- Research Output ---"); got != 2 {
		t.Fatalf("expected 2 timestamped blocks, got %d", got)
	}
	if !strings.Contains(text, "2026-01-02 03:04:05") {
		t.Fatalf("missing timestamp:\n%s", text)
	}
}

func TestSaveToolRejectsPathEscape(t *testing.T) {
	tool := NewSaveTool(t.TempDir(), "")
	for _, name := range []string{"../evil.txt", "/etc/passwd", "a/b.txt"} {
		args, _ := json.Marshal(map[string]string{"data": "x", "filename": name})
		if _, err := tool.Invoke(context.Background(), args); err == nil {
			t.Fatalf("expected filename %q to be rejected", name)
		}
	}
}

func TestSaveToolMissingData(t *testing.T) {
	tool := NewSaveTool(t.TempDir(), "")
	if _, err := tool.Invoke(context.Background(), json.RawMessage(`{"filename":"x.txt"}`)); err == nil {
		t.Fatalf("expected missing data argument to fail")
	}
}
