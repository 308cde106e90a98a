// Package store persists validated research answers as markdown artifacts
// and resolves stored filenames back for download. Persisted reports are
// additionally indexed in bleve for listing and search.
package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/helicon-labs/researchd/internal/contract"
)

// ErrNotFound is returned for missing artifacts and for any filename that
// is not a plain name inside the output directory.
var ErrNotFound = errors.New("artifact not found")

const (
	filenamePrefix = "research_"
	filenameExt    = ".md"
	indexDir       = ".index"
)

// Artifact is a persisted research report.
type Artifact struct {
	Filename string
	Path     string
	Bytes    []byte
}

// Report is one hit from the report index.
type Report struct {
	Filename string  `json:"filename"`
	Topic    string  `json:"topic"`
	Score    float64 `json:"score"`
}

// Store owns a single restricted output directory. Writes are serialized so
// same-filename races resolve to a clean last-writer-wins.
type Store struct {
	dir       string
	overwrite bool
	index     bleve.Index
	logger    *log.Logger
	mu        sync.Mutex
}

// New opens (or creates) the store rooted at dir. With overwrite true a
// colliding topic replaces the previous report; otherwise a numeric suffix
// is appended.
func New(dir string, overwrite bool, logger *log.Logger) (*Store, error) {
	if dir == "" {
		dir = "outputs"
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[STORE] ", log.LstdFlags)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	indexPath := filepath.Join(dir, indexDir)
	idx, err := bleve.Open(indexPath)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(indexPath, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening report index: %w", err)
	}

	return &Store{dir: dir, overwrite: overwrite, index: idx, logger: logger}, nil
}

// Close releases the report index.
func (s *Store) Close() error {
	return s.index.Close()
}

// Filename derives the artifact name from a topic: whitespace becomes
// underscores, with a fixed prefix and extension. The derivation is not
// collision-free; see the overwrite setting.
func Filename(topic string) string {
	name := strings.Join(strings.Fields(topic), "_")
	return filenamePrefix + name + filenameExt
}

// Persist writes the answer as "# topic\n\nsummary" under the derived
// filename. Publication is atomic: the content lands in a temp file in the
// same directory and is renamed into place, so a concurrent reader sees
// either the old report or the new one, never a torn file.
func (s *Store) Persist(answer contract.Answer) (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Artifact{}, err
	}

	filename := Filename(answer.Topic)
	if !s.overwrite {
		filename = s.nextFree(filename)
	}
	path := filepath.Join(s.dir, filename)
	content := []byte(fmt.Sprintf("# %s\n\n%s", answer.Topic, answer.Summary))

	// dot-prefixed so an in-flight temp file can never pass Resolve
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return Artifact{}, err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Artifact{}, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Artifact{}, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return Artifact{}, err
	}

	if err := s.index.Index(filename, map[string]interface{}{
		"topic": answer.Topic,
		"body":  answer.Summary,
	}); err != nil {
		// the artifact is durable; a stale index entry is recoverable
		s.logger.Printf("indexing %s failed: %v", filename, err)
	}

	return Artifact{Filename: filename, Path: path, Bytes: content}, nil
}

// nextFree appends _2, _3, ... before the extension until the name is free.
func (s *Store) nextFree(filename string) string {
	if _, err := os.Stat(filepath.Join(s.dir, filename)); err != nil {
		return filename
	}
	base := strings.TrimSuffix(filename, filenameExt)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, filenameExt)
		if _, err := os.Stat(filepath.Join(s.dir, candidate)); err != nil {
			return candidate
		}
	}
}

// Resolve maps a requested filename to its on-disk path. Anything that is
// not a clean base name inside the output directory fails with ErrNotFound:
// no parent-directory traversal, no absolute paths, no dotfiles.
func (s *Store) Resolve(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) ||
		strings.HasPrefix(filename, ".") || strings.ContainsAny(filename, `/\`) {
		return "", ErrNotFound
	}
	path := filepath.Join(s.dir, filename)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrNotFound
	}
	return path, nil
}

// Search lists indexed reports. An empty query matches everything; a
// non-empty query is matched against topic and body.
func (s *Store) Search(q string, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 20
	}
	var req *bleve.SearchRequest
	if strings.TrimSpace(q) == "" {
		req = bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	} else {
		req = bleve.NewSearchRequest(bleve.NewQueryStringQuery(q))
	}
	req.Size = limit
	req.Fields = []string{"topic"}

	res, err := s.index.Search(req)
	if err != nil {
		return nil, err
	}
	reports := make([]Report, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := Report{Filename: hit.ID, Score: hit.Score}
		if topic, ok := hit.Fields["topic"].(string); ok {
			r.Topic = topic
		}
		reports = append(reports, r)
	}
	return reports, nil
}
