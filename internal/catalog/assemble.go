package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jordanhubbard/modelhub/internal/store"
)

// RankedModel is one row of a ranking.
type RankedModel struct {
	Rank     int      `json:"rank"`
	Slug     string   `json:"slug"`
	Name     string   `json:"name"`
	Provider string   `json:"provider"`
	Tags     []string `json:"tags"`
	Scores   Scores   `json:"scores"`
}

// Paginate returns the window [offset, offset+limit) of items, clamped to the
// slice. limit <= 0 means no upper bound.
func Paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return items[:0]
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// AssembleRanking paginates sorted scores and numbers them. Rank is the
// 1-based position in the full sorted list, so rank 1 is always the first
// row in the chosen direction.
func AssembleRanking(sorted []Scored, offset, limit int) []RankedModel {
	page := Paginate(sorted, offset, limit)
	out := make([]RankedModel, len(page))
	for i, s := range page {
		out[i] = RankedModel{
			Rank:     offset + i + 1,
			Slug:     s.Model.Slug,
			Name:     s.Model.Name,
			Provider: s.Model.Provider,
			Tags:     s.Model.Tags,
			Scores:   s.Scores,
		}
	}
	return out
}

// LeaderboardEntry is one row of a single-benchmark leaderboard.
type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	Slug     string  `json:"slug"`
	Name     string  `json:"name"`
	Provider string  `json:"provider"`
	Score    float64 `json:"score"`
}

// Leaderboard ranks models by one benchmark. The name is matched
// case-insensitively; models without a positive score for it are left out.
// Ties keep input order.
func Leaderboard(models []store.ModelRecord, benchmark string, limit int) []LeaderboardEntry {
	benchmark = strings.ToLower(benchmark)
	out := make([]LeaderboardEntry, 0, len(models))
	for _, m := range models {
		score, ok := m.BenchmarkScores.Lookup(benchmark)
		if !ok || score <= 0 {
			continue
		}
		out = append(out, LeaderboardEntry{Slug: m.Slug, Name: m.Name, Provider: m.Provider, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	out = Paginate(out, 0, limit)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// TrendingModel is one row of the trending list.
type TrendingModel struct {
	Slug            string                `json:"slug"`
	Name            string                `json:"name"`
	Provider        string                `json:"provider"`
	Modalities      []string              `json:"modalities"`
	ContextWindow   *int                  `json:"contextWindow"`
	BenchmarkScores store.BenchmarkScores `json:"benchmarkScores"`
	Pricing         *store.Pricing        `json:"pricing"`
	Tags            []string              `json:"tags"`
	TrendScore      float64               `json:"trendScore"`
	Popularity      float64               `json:"popularity"`
	TotalViews      int64                 `json:"totalViews"`
	TotalAPICalls   int64                 `json:"totalApiCalls"`
	LastUpdated     time.Time             `json:"lastUpdated"`
}

// AssembleTrending shapes records that carry market metrics. Records without
// metrics are skipped.
func AssembleTrending(models []store.ModelRecord) []TrendingModel {
	out := make([]TrendingModel, 0, len(models))
	for _, m := range models {
		if m.Metrics == nil {
			continue
		}
		out = append(out, TrendingModel{
			Slug:            m.Slug,
			Name:            m.Name,
			Provider:        m.Provider,
			Modalities:      m.Modalities,
			ContextWindow:   m.ContextWindow,
			BenchmarkScores: m.BenchmarkScores,
			Pricing:         m.Pricing,
			Tags:            m.Tags,
			TrendScore:      m.Metrics.GrowthRate,
			Popularity:      m.Metrics.Popularity,
			TotalViews:      m.Metrics.TotalViews,
			TotalAPICalls:   m.Metrics.TotalAPICalls,
			LastUpdated:     m.Metrics.LastUpdated,
		})
	}
	return out
}

// UpdatedModel is one row of the recently-updated list.
type UpdatedModel struct {
	Slug            string                 `json:"slug"`
	Name            string                 `json:"name"`
	Provider        string                 `json:"provider"`
	LastUpdated     time.Time              `json:"lastUpdated"`
	Changelog       []store.ChangelogEntry `json:"changelog"`
	Tags            []string               `json:"tags"`
	BenchmarkScores store.BenchmarkScores  `json:"benchmarkScores"`
	Pricing         *store.Pricing         `json:"pricing"`
}

// AssembleUpdated shapes recently-updated records.
func AssembleUpdated(models []store.ModelRecord) []UpdatedModel {
	out := make([]UpdatedModel, len(models))
	for i, m := range models {
		out[i] = UpdatedModel{
			Slug:            m.Slug,
			Name:            m.Name,
			Provider:        m.Provider,
			LastUpdated:     m.LastUpdated,
			Changelog:       m.Changelog,
			Tags:            m.Tags,
			BenchmarkScores: m.BenchmarkScores,
			Pricing:         m.Pricing,
		}
	}
	return out
}

var ranges = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

// ParseRange validates a range parameter against allowed and returns its
// duration. Empty selects def.
func ParseRange(raw, def string, allowed ...string) (string, time.Duration, error) {
	if raw == "" {
		raw = def
	}
	for _, a := range allowed {
		if raw == a {
			return raw, ranges[raw], nil
		}
	}
	return "", 0, &ValidationError{
		Field:   "range",
		Message: fmt.Sprintf("range must be one of %s; got %q", strings.Join(allowed, ", "), raw),
	}
}

// ParseLimit validates an integer parameter in [lo,hi]. Empty selects def.
func ParseLimit(field, raw string, def, lo, hi int) (int, error) {
	return parseBoundedInt(field, raw, def, lo, hi)
}

func parseBoundedInt(field, raw string, def, lo, hi int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ValidationError{Field: field, Message: fmt.Sprintf("%s must be an integer", field)}
	}
	if n < lo || n > hi {
		return 0, &ValidationError{Field: field, Message: fmt.Sprintf("%s must be between %d and %d", field, lo, hi)}
	}
	return n, nil
}

// ParseOffset validates a non-negative offset. Empty selects 0.
func ParseOffset(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, &ValidationError{Field: "offset", Message: "offset must be a non-negative integer"}
	}
	return n, nil
}
