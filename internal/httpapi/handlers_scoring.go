package httpapi

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jordanhubbard/modelhub/internal/catalog"
	"github.com/jordanhubbard/modelhub/internal/store"
)

// noCache reports whether the caller asked to bypass result caches.
func noCache(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("cache"), "false") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Cache-Control")), "no-cache")
}

func cacheHeader(w http.ResponseWriter, hit bool) {
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
}

// RankingsHandler handles GET /api/rankings.
func RankingsHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := r.URL.Query()
		sortBy, err := catalog.ParseSortField(v.Get("sortBy"))
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		order, err := catalog.ParseOrder(v.Get("order"))
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		limit, err := catalog.ParseLimit("limit", v.Get("limit"), 50, 1, 100)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		offset, err := catalog.ParseOffset(v.Get("offset"))
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}

		res, err := d.Catalog.Rankings(r.Context(), catalog.RankingQuery{
			SortBy: sortBy, Order: order, Limit: limit, Offset: offset, NoCache: noCache(r),
		})
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		cacheHeader(w, res.CacheHit)
		w.Header().Set("X-Ranking-Sort", string(sortBy)+":"+string(order))
		writeData(w, http.StatusOK, res.Models, nil)
	}
}

// CompareHandler handles GET /api/compare?models=a,b.
func CompareHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slugs := catalog.ParseSlugs(r.URL.Query().Get("models"))
		out, err := d.Catalog.Compare(r.Context(), slugs)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		writeData(w, http.StatusOK, catalog.ComparisonResult{Models: out}, nil)
	}
}

// TrendingHandler handles GET /api/trending.
func TrendingHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rng, window, err := catalog.ParseRange(r.URL.Query().Get("range"), "7d", "24h", "7d", "30d")
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		limit, err := catalog.ParseLimit("limit", r.URL.Query().Get("limit"), 10, 1, 50)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		res, err := d.Catalog.Trending(r.Context(), catalog.TrendingQuery{
			Range: rng, Window: window, Limit: limit, NoCache: noCache(r),
		})
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		cacheHeader(w, res.CacheHit)
		w.Header().Set("X-Range", rng)
		writeData(w, http.StatusOK, res.Models, nil)
	}
}

var csvHeader = []string{
	"id", "slug", "name", "provider", "releaseDate", "contextWindow",
	"modalities", "capabilities", "benchmarkScores", "inputPrice", "outputPrice",
	"links", "createdAt", "updatedAt",
}

// BulkModelsHandler handles GET /api/v1/bulk/models. Responses are
// compressed by the gzip wrapper installed on the route.
func BulkModelsHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := r.URL.Query()
		format := v.Get("format")
		if format == "" {
			format = "json"
		}
		if format != "json" && format != "csv" {
			writeError(w, r, d.logger(), &catalog.ValidationError{Field: "format", Message: "format must be json or csv"})
			return
		}
		limit, err := catalog.ParseLimit("limit", v.Get("limit"), 1000, 1, 10000)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		offset, err := catalog.ParseOffset(v.Get("offset"))
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}

		q := store.ModelQuery{Limit: limit, Offset: offset}
		page, err := d.Catalog.List(r.Context(), q)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		w.Header().Set("X-Total-Count", strconv.Itoa(page.Total))

		if format == "json" {
			writeData(w, http.StatusOK, page.Models, newMeta(page.Total, limit, offset))
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="models.csv"`)
		w.WriteHeader(http.StatusOK)
		cw := csv.NewWriter(w)
		_ = cw.Write(csvHeader)
		for _, m := range page.Models {
			_ = cw.Write(csvRow(m))
		}
		cw.Flush()
		warnOnErr("bulk_csv", cw.Error())
	}
}

func csvRow(m store.ModelRecord) []string {
	var release, ctxWindow, in, out string
	if m.ReleaseDate != nil {
		release = m.ReleaseDate.UTC().Format(time.RFC3339)
	}
	if m.ContextWindow != nil {
		ctxWindow = strconv.Itoa(*m.ContextWindow)
	}
	if m.Pricing != nil {
		in = decimalString(m.Pricing.InputPrice)
		out = decimalString(m.Pricing.OutputPrice)
	}
	return []string{
		m.ID, m.Slug, m.Name, m.Provider, release, ctxWindow,
		strings.Join(m.Modalities, ", "),
		strings.Join(m.Capabilities, ", "),
		jsonCell(m.BenchmarkScores),
		in, out,
		jsonCell(m.Links),
		m.CreatedAt.UTC().Format(time.RFC3339),
		m.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// decimalString renders a price without float artifacts such as
// 0.15000000000000002.
func decimalString(f *float64) string {
	if f == nil {
		return ""
	}
	return decimal.NewFromFloat(*f).String()
}

func jsonCell[T any](v T) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return "{}"
	}
	return string(b)
}
