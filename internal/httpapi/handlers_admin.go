package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/jordanhubbard/modelhub/internal/catalog"
	"github.com/jordanhubbard/modelhub/internal/events"
	"github.com/jordanhubbard/modelhub/internal/store"
	"github.com/jordanhubbard/modelhub/internal/validate"
)

// maxBodyBytes bounds admin request bodies.
const maxBodyBytes = 1 << 20

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &catalog.ValidationError{Field: "body", Message: "request body unreadable or larger than 1 MiB"}
	}
	return body, nil
}

// audit records an admin mutation. detail is marshalled to JSON.
func (d Dependencies) audit(r *http.Request, action, resource string, detail any) {
	if d.Store == nil {
		return
	}
	var raw string
	if detail != nil {
		if b, err := json.Marshal(detail); err == nil {
			raw = string(b)
		}
	}
	warnOnErr("audit", d.Store.LogAudit(r.Context(), store.AuditEntry{
		Timestamp: d.now(),
		Action:    action,
		Resource:  resource,
		Detail:    raw,
		RequestID: middleware.GetReqID(r.Context()),
	}))
}

func (d Dependencies) publish(r *http.Request, e events.Event) {
	if d.EventBus == nil {
		return
	}
	e.Timestamp = d.now()
	e.RequestID = middleware.GetReqID(r.Context())
	d.EventBus.Publish(e)
}

// AdminModelCreateHandler handles POST /admin/v1/models.
func AdminModelCreateHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		m, err := validate.Model(body)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		now := d.now()
		m.ID = uuid.NewString()
		m.CreatedAt, m.UpdatedAt, m.LastUpdated = now, now, now
		if m.Metrics != nil && m.Metrics.LastUpdated.IsZero() {
			m.Metrics.LastUpdated = now
		}
		if err := d.Store.CreateModel(r.Context(), m); err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		d.audit(r, "model.create", m.Slug, map[string]string{"provider": m.Provider})
		d.publish(r, events.Event{Type: events.EventModelCreated, Slug: m.Slug})
		d.logger().Info("model created", slog.String("slug", m.Slug))
		writeData(w, http.StatusCreated, m, nil)
	}
}

// AdminModelsListHandler handles GET /admin/v1/models. It reads the store
// directly so it keeps working while the catalog breaker is open.
func AdminModelsListHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseModelQuery(r)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		models, err := d.Store.ListModels(r.Context(), q)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		total, err := d.Store.CountModels(r.Context(), q)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		if models == nil {
			models = []store.ModelRecord{}
		}
		writeData(w, http.StatusOK, models, newMeta(total, q.Limit, q.Offset))
	}
}

// AdminModelPatchHandler handles PATCH /admin/v1/models/{slug}.
func AdminModelPatchHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		fields, err := validate.Patch(body)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		existing, err := d.Store.GetModel(r.Context(), slug)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		if existing == nil {
			writeError(w, r, d.logger(), &catalog.NotFoundError{Resource: "model", Slugs: []string{slug}})
			return
		}
		updated, err := validate.ApplyPatch(*existing, fields)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		updated.UpdatedAt, updated.LastUpdated = d.now(), d.now()
		if err := d.Store.UpsertModel(r.Context(), updated); err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		d.audit(r, "model.update", slug, fieldNames(fields))
		d.publish(r, events.Event{Type: events.EventModelUpdated, Slug: slug})
		writeData(w, http.StatusOK, updated, nil)
	}
}

func fieldNames(fields map[string]json.RawMessage) []string {
	out := make([]string, 0, len(fields))
	for k := range fields {
		out = append(out, k)
	}
	return out
}

// AdminModelDeleteHandler handles DELETE /admin/v1/models/{slug}.
func AdminModelDeleteHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		if err := d.Store.DeleteModel(r.Context(), slug); err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		d.audit(r, "model.delete", slug, nil)
		d.publish(r, events.Event{Type: events.EventModelDeleted, Slug: slug})
		writeData(w, http.StatusOK, map[string]any{"deleted": slug}, nil)
	}
}

// AdminModelsBulkUpdateHandler handles POST /admin/v1/models/bulk-update.
// Slugs that do not resolve are reported, not treated as an error.
func AdminModelsBulkUpdateHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		req, err := validate.Bulk(body)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		found, err := d.Store.GetModelsBySlugs(r.Context(), req.Slugs)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}

		now := d.now()
		bySlug := make(map[string]store.ModelRecord, len(found))
		for _, m := range found {
			bySlug[m.Slug] = m
		}
		updated := make([]string, 0, len(found))
		missing := []string{}
		for _, slug := range req.Slugs {
			m, ok := bySlug[slug]
			if !ok {
				missing = append(missing, slug)
				continue
			}
			next, err := validate.ApplyPatch(m, req.Updates)
			if err != nil {
				writeError(w, r, d.logger(), err)
				return
			}
			next.UpdatedAt, next.LastUpdated = now, now
			if err := d.Store.UpsertModel(r.Context(), next); err != nil {
				writeError(w, r, d.logger(), fmt.Errorf("bulk update %s: %w", slug, err))
				return
			}
			updated = append(updated, slug)
		}

		if len(updated) > 0 {
			d.audit(r, "model.bulk_update", fmt.Sprintf("%d models", len(updated)),
				map[string]any{"slugs": updated, "fields": fieldNames(req.Updates)})
			d.publish(r, events.Event{Type: events.EventModelsBulk, Slugs: updated, Count: len(updated)})
		}
		writeData(w, http.StatusOK, map[string]any{
			"updated": len(updated),
			"slugs":   updated,
			"missing": missing,
		}, nil)
	}
}

// AdminMetricsHandler handles PUT /admin/v1/models/{slug}/metrics.
func AdminMetricsHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		mm, err := validate.Metrics(body)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		if mm.LastUpdated.IsZero() {
			mm.LastUpdated = d.now()
		}
		if err := d.Store.UpsertMarketMetrics(r.Context(), slug, mm); err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		d.audit(r, "model.metrics", slug, mm)
		d.publish(r, events.Event{Type: events.EventMetricsUpdated, Slug: slug})
		writeData(w, http.StatusOK, mm, nil)
	}
}

// CachePurgeHandler handles POST /admin/v1/cache/purge.
func CachePurgeHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := d.Catalog.PurgeCaches()
		d.audit(r, "cache.purge", "catalog", map[string]int{"entries": n})
		d.publish(r, events.Event{Type: events.EventCachePurged, Count: n})
		writeData(w, http.StatusOK, map[string]int{"purged": n}, nil)
	}
}

// AuditLogsHandler handles GET /admin/v1/audit?limit=N&offset=N.
func AuditLogsHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := catalog.ParseLimit("limit", r.URL.Query().Get("limit"), 100, 1, 1000)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		offset, err := catalog.ParseOffset(r.URL.Query().Get("offset"))
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		logs, err := d.Store.ListAuditLogs(r.Context(), limit, offset)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		if logs == nil {
			logs = []store.AuditEntry{}
		}
		writeData(w, http.StatusOK, logs, nil)
	}
}
