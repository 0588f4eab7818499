package catalog

import (
	"math"
	"sort"

	"github.com/jordanhubbard/modelhub/internal/store"
)

// Similarity weights. They sum to 1.
const (
	WeightProviderMatch   = 0.2
	WeightModalityOverlap = 0.3
	WeightBenchmarkCloser = 0.3
	WeightPriceCloser     = 0.2
)

// Bounds on the number of similar models returned.
const (
	DefaultSimilarLimit = 5
	MaxSimilarLimit     = 10
)

// SimilarEntry is one candidate in a similarity result.
type SimilarEntry struct {
	Slug            string                `json:"slug"`
	Name            string                `json:"name"`
	Provider        string                `json:"provider"`
	Modalities      []string              `json:"modalities"`
	ContextWindow   *int                  `json:"contextWindow"`
	BenchmarkScores store.BenchmarkScores `json:"benchmarkScores"`
	Pricing         *store.Pricing        `json:"pricing"`
	Tags            []string              `json:"tags"`
	SimilarityScore float64               `json:"similarityScore"`
}

// Jaccard returns |a∩b| / |a∪b| treating both slices as sets. Two empty
// sets score 0.
func Jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, v := range a {
		setA[v] = struct{}{}
	}
	union := len(setA)
	inter := 0
	seenB := make(map[string]struct{}, len(b))
	for _, v := range b {
		if _, dup := seenB[v]; dup {
			continue
		}
		seenB[v] = struct{}{}
		if _, ok := setA[v]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Closeness scores how near value is to baseline on a [lo,hi] scale:
// 1 - min(|value-baseline|/(hi-lo), 1). Either side nil scores 0; a zero
// range scores 0.5.
func Closeness(value, baseline *float64, lo, hi float64) float64 {
	if value == nil || baseline == nil {
		return 0
	}
	span := hi - lo
	if span == 0 {
		return 0.5
	}
	return 1 - math.Min(math.Abs(*value-*baseline)/span, 1)
}

// InSimilarityPool reports whether candidate may be compared with anchor:
// it is a different model that shares the provider or at least one
// modality.
func InSimilarityPool(anchor, candidate store.ModelRecord) bool {
	if candidate.Slug == anchor.Slug {
		return false
	}
	if candidate.Provider == anchor.Provider {
		return true
	}
	for _, a := range anchor.Modalities {
		for _, c := range candidate.Modalities {
			if a == c {
				return true
			}
		}
	}
	return false
}

// ScoreSimilar scores every pool member against anchor, sorts by
// similarity descending and keeps at most limit entries. Records outside the
// anchor's pool are ignored, so an empty pool gives an empty result.
func ScoreSimilar(anchor store.ModelRecord, candidates []store.ModelRecord, limit int) []SimilarEntry {
	pool := make([]store.ModelRecord, 0, len(candidates))
	for _, c := range candidates {
		if InSimilarityPool(anchor, c) {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return []SimilarEntry{}
	}

	base := Extract(anchor)
	fs := extractAll(pool)

	// Ranges span the anchor and every candidate.
	perf := append([]*float64{base.Performance}, column(fs, func(f Features) *float64 { return f.Performance })...)
	price := append([]*float64{base.Price}, column(fs, func(f Features) *float64 { return f.Price })...)
	perfLo, perfHi, _ := bounds(perf)
	priceLo, priceHi, _ := bounds(price)

	out := make([]SimilarEntry, len(pool))
	for i, c := range pool {
		var providerScore float64
		if c.Provider == anchor.Provider {
			providerScore = 1
		}
		score := WeightProviderMatch*providerScore +
			WeightModalityOverlap*Jaccard(anchor.Modalities, c.Modalities) +
			WeightBenchmarkCloser*Closeness(fs[i].Performance, base.Performance, perfLo, perfHi) +
			WeightPriceCloser*Closeness(fs[i].Price, base.Price, priceLo, priceHi)

		out[i] = SimilarEntry{
			Slug:            c.Slug,
			Name:            c.Name,
			Provider:        c.Provider,
			Modalities:      c.Modalities,
			ContextWindow:   c.ContextWindow,
			BenchmarkScores: c.BenchmarkScores,
			Pricing:         c.Pricing,
			Tags:            c.Tags,
			SimilarityScore: score,
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SimilarityScore > out[j].SimilarityScore
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ParseSimilarLimit validates the limit parameter of a similarity query.
func ParseSimilarLimit(raw string) (int, error) {
	return parseBoundedInt("limit", raw, DefaultSimilarLimit, 1, MaxSimilarLimit)
}
