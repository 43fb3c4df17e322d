// Package artifact persists the captures a run produces: one screenshot
// and one page-source file per (collection, step), one info.yaml per
// collection, and a run-level summary document.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/odvcencio/webshots/pkg/outcome"
)

// Store lays artifacts out under a root directory, one subdirectory per
// collection.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the artifact root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) collectionDir(collectionID string) string {
	return filepath.Join(s.root, collectionID)
}

// ScreenshotPath returns the capture path for an item, creating the
// collection directory on the way.
func (s *Store) ScreenshotPath(collectionID, stepName string) (string, error) {
	dir := s.collectionDir(collectionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create collection dir: %w", err)
	}
	return filepath.Join(dir, stepName+".png"), nil
}

// PageSourcePath returns the markup path for an item.
func (s *Store) PageSourcePath(collectionID, stepName string) string {
	return filepath.Join(s.collectionDir(collectionID), stepName+".html")
}

// RemoveStale deletes any previous artifacts for an item so a failed
// visit never leaves a misleadingly fresh capture behind. Missing files
// are fine.
func (s *Store) RemoveStale(collectionID, stepName string) error {
	for _, path := range []string{
		filepath.Join(s.collectionDir(collectionID), stepName+".png"),
		s.PageSourcePath(collectionID, stepName),
	} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale artifact: %w", err)
		}
	}
	return nil
}

// WritePageSource persists the page markup alongside the screenshot.
func (s *Store) WritePageSource(collectionID, stepName, html string) error {
	dir := s.collectionDir(collectionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create collection dir: %w", err)
	}
	return os.WriteFile(s.PageSourcePath(collectionID, stepName), []byte(html), 0o644)
}

// info is the per-collection summary document: successful timings keyed
// by step, plus whatever went wrong.
type info struct {
	Times    map[string]float64 `yaml:"times"`
	Timeouts []string           `yaml:"timeouts,omitempty"`
	Errors   map[string]string  `yaml:"errors,omitempty"`
}

func buildInfo(results map[string]outcome.Outcome) info {
	doc := info{Times: map[string]float64{}}
	steps := make([]string, 0, len(results))
	for name := range results {
		steps = append(steps, name)
	}
	sort.Strings(steps)
	for _, name := range steps {
		switch out := results[name]; out.Kind {
		case outcome.KindDuration:
			doc.Times[name] = out.Seconds
		case outcome.KindTimeout:
			doc.Timeouts = append(doc.Timeouts, name)
		case outcome.KindError:
			if doc.Errors == nil {
				doc.Errors = map[string]string{}
			}
			doc.Errors[name] = out.Message
		}
	}
	return doc
}

// WriteInfo persists a collection's per-step outcomes as info.yaml in
// its directory.
func (s *Store) WriteInfo(collectionID string, results map[string]outcome.Outcome) error {
	dir := s.collectionDir(collectionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create collection dir: %w", err)
	}
	raw, err := yaml.Marshal(buildInfo(results))
	if err != nil {
		return fmt.Errorf("marshal info: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "info.yaml"), raw, 0o644)
}

// WriteSummary persists the whole run's outcomes as summary.yaml at the
// root.
func (s *Store) WriteSummary(results map[string]map[string]outcome.Outcome) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create artifact root: %w", err)
	}
	doc := make(map[string]info, len(results))
	for collectionID, outcomes := range results {
		doc[collectionID] = buildInfo(outcomes)
	}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return os.WriteFile(filepath.Join(s.root, "summary.yaml"), raw, 0o644)
}
