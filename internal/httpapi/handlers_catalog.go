package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jordanhubbard/modelhub/internal/billing"
	"github.com/jordanhubbard/modelhub/internal/catalog"
	"github.com/jordanhubbard/modelhub/internal/store"
)

var modelSortFields = map[string]bool{
	"name": true, "provider": true, "releaseDate": true,
	"contextWindow": true, "createdAt": true, "updatedAt": true,
}

var modelCategories = map[string]bool{
	"coding": true, "reasoning": true, "image": true,
	"audio": true, "video": true, "multimodal": true,
}

// parseModelQuery reads the listing filters shared by the public and v1
// model endpoints.
func parseModelQuery(r *http.Request) (store.ModelQuery, error) {
	v := r.URL.Query()
	q := store.ModelQuery{
		Provider:  v.Get("provider"),
		Modality:  v.Get("modality"),
		Tag:       v.Get("category"),
		Search:    strings.TrimSpace(v.Get("search")),
		SortBy:    v.Get("sortBy"),
		SortOrder: v.Get("sortOrder"),
	}
	if q.Tag != "" && !modelCategories[q.Tag] {
		return q, &catalog.ValidationError{Field: "category", Message: "category must be one of coding, reasoning, image, audio, video, multimodal"}
	}
	if q.SortBy == "" {
		q.SortBy = "name"
	} else if !modelSortFields[q.SortBy] {
		return q, &catalog.ValidationError{Field: "sortBy", Message: "sortBy must be one of name, provider, releaseDate, contextWindow, createdAt, updatedAt"}
	}
	if q.SortOrder == "" {
		q.SortOrder = "asc"
	} else if q.SortOrder != "asc" && q.SortOrder != "desc" {
		return q, &catalog.ValidationError{Field: "sortOrder", Message: "sortOrder must be asc or desc"}
	}

	var err error
	if q.Limit, err = catalog.ParseLimit("limit", v.Get("limit"), 50, 1, 1000); err != nil {
		return q, err
	}
	if q.Offset, err = catalog.ParseOffset(v.Get("offset")); err != nil {
		return q, err
	}
	if q.MinContextWindow, err = positiveInt(v, "minContextWindow"); err != nil {
		return q, err
	}
	if q.MaxContextWindow, err = positiveInt(v, "maxContextWindow"); err != nil {
		return q, err
	}
	if q.MinPrice, err = nonNegativeFloat(v, "minPricing"); err != nil {
		return q, err
	}
	if q.MaxPrice, err = nonNegativeFloat(v, "maxPricing"); err != nil {
		return q, err
	}
	if q.ReleasedFrom, err = timeParam(v, "releaseDateFrom"); err != nil {
		return q, err
	}
	if q.ReleasedTo, err = timeParam(v, "releaseDateTo"); err != nil {
		return q, err
	}
	return q, nil
}

type valueGetter interface{ Get(string) string }

func positiveInt(v valueGetter, field string) (*int, error) {
	raw := v.Get(field)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return nil, &catalog.ValidationError{Field: field, Message: field + " must be a positive integer"}
	}
	return &n, nil
}

func nonNegativeFloat(v valueGetter, field string) (*float64, error) {
	raw := v.Get(field)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return nil, &catalog.ValidationError{Field: field, Message: field + " must be a non-negative number"}
	}
	return &f, nil
}

func timeParam(v valueGetter, field string) (*time.Time, error) {
	raw := v.Get(field)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, &catalog.ValidationError{Field: field, Message: field + " must be an RFC 3339 timestamp"}
	}
	return &t, nil
}

// ModelsListHandler handles GET /api/models.
func ModelsListHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseModelQuery(r)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		page, err := d.Catalog.List(r.Context(), q)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		if len(q.Search) > 1 && d.Store != nil {
			warnOnErr("record_search", d.Store.RecordSearch(r.Context(), q.Search, page.Total))
		}
		writeData(w, http.StatusOK, page.Models, newMeta(page.Total, q.Limit, q.Offset))
	}
}

// ModelGetHandler handles GET /api/models/{slug}.
func ModelGetHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := d.Catalog.Get(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		writeData(w, http.StatusOK, m, nil)
	}
}

// SimilarHandler handles GET /api/models/{slug}/similar.
func SimilarHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := catalog.ParseSimilarLimit(r.URL.Query().Get("limit"))
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		out, err := d.Catalog.Similar(r.Context(), chi.URLParam(r, "slug"), limit)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		writeData(w, http.StatusOK, out, nil)
	}
}

// ModelsUpdatedHandler handles GET /api/models/updated.
func ModelsUpdatedHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rng, window, err := catalog.ParseRange(r.URL.Query().Get("range"), "7d", "24h", "7d", "30d", "90d")
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		limit, err := catalog.ParseLimit("limit", r.URL.Query().Get("limit"), 20, 1, 100)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		out, err := d.Catalog.Updated(r.Context(), window, limit)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		w.Header().Set("X-Range", rng)
		writeData(w, http.StatusOK, out, nil)
	}
}

// LeaderboardHandler handles GET /api/leaderboards/{benchmark}.
func LeaderboardHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		benchmark := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "benchmark")))
		if benchmark == "" {
			writeError(w, r, d.logger(), &catalog.ValidationError{Field: "benchmark", Message: "benchmark is required"})
			return
		}
		limit, err := catalog.ParseLimit("limit", r.URL.Query().Get("limit"), 50, 1, 1000)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		out, err := d.Catalog.Leaderboard(r.Context(), benchmark, limit)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"benchmark": benchmark, "data": out})
	}
}

// ProvidersHandler handles GET /api/providers.
func ProvidersHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := d.Store.ListProviders(r.Context())
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		if out == nil {
			out = []string{}
		}
		writeData(w, http.StatusOK, out, nil)
	}
}

// ModalitiesHandler handles GET /api/modalities.
func ModalitiesHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := d.Store.ListModalities(r.Context())
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		if out == nil {
			out = []string{}
		}
		writeData(w, http.StatusOK, out, nil)
	}
}

// PricingHandler handles GET /api/pricing.
func PricingHandler(Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, http.StatusOK, billing.Plans(), nil)
	}
}
