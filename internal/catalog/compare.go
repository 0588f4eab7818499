package catalog

import (
	"strings"

	"github.com/jordanhubbard/modelhub/internal/store"
)

// Bounds on the number of models in one comparison.
const (
	MinCompare = 2
	MaxCompare = 5
)

// Normalized is the per-model triplet shown side by side in a comparison.
type Normalized struct {
	Performance float64 `json:"performance"`
	Price       float64 `json:"price"`
	Context     float64 `json:"context"`
}

// ComparisonEntry is one model in a comparison result.
type ComparisonEntry struct {
	Slug            string                `json:"slug"`
	Name            string                `json:"name"`
	Provider        string                `json:"provider"`
	Modalities      []string              `json:"modalities"`
	ContextWindow   *int                  `json:"contextWindow"`
	BenchmarkScores store.BenchmarkScores `json:"benchmarkScores"`
	Pricing         *store.Pricing        `json:"pricing"`
	Capabilities    []string              `json:"capabilities"`
	Tags            []string              `json:"tags"`
	Normalized      Normalized            `json:"normalized"`
}

// ComparisonResult is the payload of a comparison response.
type ComparisonResult struct {
	Models []ComparisonEntry `json:"models"`
}

// ParseSlugs splits a comma-separated list, trims blanks and drops repeats.
// The first occurrence of each slug keeps its position.
func ParseSlugs(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// CheckCompareCount enforces the 2..5 bound.
func CheckCompareCount(slugs []string) error {
	if len(slugs) < MinCompare || len(slugs) > MaxCompare {
		return ErrInvalidModelCount
	}
	return nil
}

// OrderBySlugs returns the records in slugs order. Any slug without a record
// is reported in a *NotFoundError.
func OrderBySlugs(slugs []string, models []store.ModelRecord) ([]store.ModelRecord, error) {
	bySlug := make(map[string]store.ModelRecord, len(models))
	for _, m := range models {
		bySlug[m.Slug] = m
	}
	out := make([]store.ModelRecord, 0, len(slugs))
	var missing []string
	for _, s := range slugs {
		m, ok := bySlug[s]
		if !ok {
			missing = append(missing, s)
			continue
		}
		out = append(out, m)
	}
	if len(missing) > 0 {
		return nil, &NotFoundError{Resource: "model", Slugs: missing}
	}
	return out, nil
}

// ScoreComparison normalizes performance, price (inverted) and context over
// exactly the given models and returns them in the same order.
func ScoreComparison(models []store.ModelRecord) []ComparisonEntry {
	fs := extractAll(models)
	performance := Normalize(column(fs, func(f Features) *float64 { return f.Performance }), false)
	price := Normalize(column(fs, func(f Features) *float64 { return f.Price }), true)
	window := Normalize(column(fs, func(f Features) *float64 { return f.Context }), false)

	out := make([]ComparisonEntry, len(models))
	for i, m := range models {
		out[i] = ComparisonEntry{
			Slug:            m.Slug,
			Name:            m.Name,
			Provider:        m.Provider,
			Modalities:      m.Modalities,
			ContextWindow:   m.ContextWindow,
			BenchmarkScores: m.BenchmarkScores,
			Pricing:         m.Pricing,
			Capabilities:    m.Capabilities,
			Tags:            m.Tags,
			Normalized: Normalized{
				Performance: performance[i],
				Price:       price[i],
				Context:     window[i],
			},
		}
	}
	return out
}

// Compare validates slugs, resolves them against models and scores the
// comparison.
func Compare(slugs []string, models []store.ModelRecord) ([]ComparisonEntry, error) {
	if err := CheckCompareCount(slugs); err != nil {
		return nil, err
	}
	ordered, err := OrderBySlugs(slugs, models)
	if err != nil {
		return nil, err
	}
	return ScoreComparison(ordered), nil
}
