// Package seed loads model catalogs from YAML and writes them to the store.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jordanhubbard/modelhub/internal/store"
	"github.com/jordanhubbard/modelhub/internal/validate"
)

// EntryError reports a seed entry that failed validation.
type EntryError struct {
	Index int
	Slug  string
	Err   error
}

func (e *EntryError) Error() string {
	if e.Slug != "" {
		return fmt.Sprintf("seed entry %d (%s): %v", e.Index, e.Slug, e.Err)
	}
	return fmt.Sprintf("seed entry %d: %v", e.Index, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Load parses a YAML list of models. Every entry is checked against the
// model schema; legacy pricing keys are accepted.
func Load(r io.Reader) ([]store.ModelRecord, error) {
	var docs []any
	if err := yaml.NewDecoder(r).Decode(&docs); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse seed yaml: %w", err)
	}

	out := make([]store.ModelRecord, 0, len(docs))
	seen := make(map[string]int, len(docs))
	for i, doc := range docs {
		slug := slugOf(doc)
		if err := validate.ModelValue(doc); err != nil {
			return nil, &EntryError{Index: i, Slug: slug, Err: err}
		}
		if prev, dup := seen[slug]; dup {
			return nil, &EntryError{Index: i, Slug: slug, Err: fmt.Errorf("duplicate of entry %d", prev)}
		}
		seen[slug] = i

		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, &EntryError{Index: i, Slug: slug, Err: err}
		}
		var m store.ModelRecord
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, &EntryError{Index: i, Slug: slug, Err: err}
		}
		out = append(out, m)
	}
	return out, nil
}

// LoadFile is Load on a file path.
func LoadFile(path string) ([]store.ModelRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func slugOf(doc any) string {
	if m, ok := doc.(map[string]any); ok {
		if s, ok := m["slug"].(string); ok {
			return s
		}
	}
	return ""
}

// Writer is the store capability Apply needs.
type Writer interface {
	UpsertModel(ctx context.Context, m store.ModelRecord) error
}

// Apply upserts models and returns how many were written. Missing ids are
// generated and market metrics without a timestamp are stamped with now.
func Apply(ctx context.Context, w Writer, models []store.ModelRecord, now time.Time) (int, error) {
	n := 0
	for _, m := range models {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.LastUpdated.IsZero() {
			m.LastUpdated = now
		}
		if m.Metrics != nil && m.Metrics.LastUpdated.IsZero() {
			mm := *m.Metrics
			mm.LastUpdated = now
			m.Metrics = &mm
		}
		if err := w.UpsertModel(ctx, m); err != nil {
			return n, fmt.Errorf("upsert %s: %w", m.Slug, err)
		}
		n++
	}
	return n, nil
}
