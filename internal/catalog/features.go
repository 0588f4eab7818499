// Package catalog turns stored model records into ranked, compared and
// similarity-scored results. Everything except Service is a pure function
// over an in-memory candidate set.
package catalog

import (
	"sort"

	"github.com/jordanhubbard/modelhub/internal/store"
)

// Features are the raw scalar inputs for one candidate. A nil field means
// the value is unknown for that model.
type Features struct {
	Performance *float64
	Price       *float64
	Context     *float64
	Popularity  *float64
}

// Extract derives the scoring features of one record.
func Extract(m store.ModelRecord) Features {
	f := Features{
		Performance: AveragePerformance(m.BenchmarkScores),
		Price:       AveragePrice(m.Pricing),
	}
	if m.ContextWindow != nil {
		v := float64(*m.ContextWindow)
		f.Context = &v
	}
	if m.Metrics != nil {
		v := m.Metrics.Popularity
		f.Popularity = &v
	}
	return f
}

// AveragePerformance is the unweighted mean of every benchmark score. No
// benchmark name counts more than another. Nil when there are no scores.
func AveragePerformance(scores store.BenchmarkScores) *float64 {
	if len(scores) == 0 {
		return nil
	}
	// Summing in key order keeps the result bit-identical across calls.
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sum float64
	for _, k := range keys {
		sum += scores[k]
	}
	avg := sum / float64(len(keys))
	return &avg
}

// AveragePrice is the mean of whichever of input and output price are known.
//
// This folds prompt and completion cost into one scalar even though they are
// separate cost axes with different weight per workload. Kept as is; a
// per-axis price feature would change every ranking.
func AveragePrice(p *store.Pricing) *float64 {
	if p.IsEmpty() {
		return nil
	}
	var sum float64
	n := 0
	if p.InputPrice != nil {
		sum += *p.InputPrice
		n++
	}
	if p.OutputPrice != nil {
		sum += *p.OutputPrice
		n++
	}
	avg := sum / float64(n)
	return &avg
}

// column collects one feature across the candidate set, preserving order.
func column(fs []Features, pick func(Features) *float64) []*float64 {
	out := make([]*float64, len(fs))
	for i, f := range fs {
		out[i] = pick(f)
	}
	return out
}

func extractAll(models []store.ModelRecord) []Features {
	fs := make([]Features, len(models))
	for i, m := range models {
		fs[i] = Extract(m)
	}
	return fs
}
