package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"github.com/jordanhubbard/modelhub/internal/apikey"
	"github.com/jordanhubbard/modelhub/internal/catalog"
	"github.com/jordanhubbard/modelhub/internal/events"
	"github.com/jordanhubbard/modelhub/internal/idempotency"
	"github.com/jordanhubbard/modelhub/internal/metrics"
	"github.com/jordanhubbard/modelhub/internal/store"
)

type Dependencies struct {
	Catalog    *catalog.Service
	Store      store.Store
	APIKeys    *apikey.Manager
	AdminToken *AdminTokenHolder
	Metrics    *metrics.Registry
	EventBus   *events.Bus
	Logger     *slog.Logger

	// Idempotency, when set, replays admin creates that repeat an
	// Idempotency-Key.
	Idempotency *idempotency.Store

	// RequireAPIKey rejects keyed routes that arrive without a key. When
	// false a key is still verified and metered if one is sent.
	RequireAPIKey bool

	Version string
	// Docs is the markdown rendered at /api-docs.
	Docs []byte

	Now func() time.Time
}

func (d Dependencies) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func MountRoutes(r chi.Router, d Dependencies) {
	r.Get("/healthz", HealthzHandler(d))
	r.Get("/api-docs", DocsHandler(d))
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	keyed := apikey.AuthMiddleware(d.APIKeys, d.Metrics, d.RequireAPIKey)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", HealthHandler(d))
		mountCatalog(r, d)

		r.Group(func(r chi.Router) {
			r.Use(keyed)
			r.Get("/rankings", RankingsHandler(d))
			r.Get("/compare", CompareHandler(d))
			r.Get("/trending", TrendingHandler(d))
		})

		r.Route("/v1", func(r chi.Router) {
			r.Use(keyed)
			mountCatalog(r, d)
			r.Get("/bulk/models", gzhttp.GzipHandler(BulkModelsHandler(d)))
		})
	})

	r.Route("/admin/v1", func(r chi.Router) {
		r.Use(d.AdminToken.Middleware)
		once := idempotency.Middleware(d.Idempotency, rejectIdempotent)

		r.With(once).Post("/models", AdminModelCreateHandler(d))
		r.Get("/models", AdminModelsListHandler(d))
		r.With(once).Post("/models/bulk-update", AdminModelsBulkUpdateHandler(d))
		r.Patch("/models/{slug}", AdminModelPatchHandler(d))
		r.Delete("/models/{slug}", AdminModelDeleteHandler(d))
		r.Put("/models/{slug}/metrics", AdminMetricsHandler(d))

		r.With(once).Post("/apikeys", APIKeysIssueHandler(d))
		r.Get("/apikeys", APIKeysListHandler(d))
		r.Delete("/apikeys/{id}", APIKeysRevokeHandler(d))
		r.Get("/apikeys/{id}/usage", APIKeysUsageHandler(d))

		r.Post("/cache/purge", CachePurgeHandler(d))
		r.Post("/admin-token/rotate", AdminTokenRotateHandler(d))
		r.Get("/audit", AuditLogsHandler(d))
		if d.EventBus != nil {
			r.Get("/events", SSEHandler(d.EventBus))
		}
	})
}

// mountCatalog registers the read-only catalog routes shared by /api and
// /api/v1.
func mountCatalog(r chi.Router, d Dependencies) {
	r.Get("/models", ModelsListHandler(d))
	r.Get("/models/updated", ModelsUpdatedHandler(d))
	r.Get("/models/{slug}", ModelGetHandler(d))
	r.Get("/models/{slug}/similar", SimilarHandler(d))
	r.Get("/leaderboards/{benchmark}", LeaderboardHandler(d))
	r.Get("/providers", ProvidersHandler(d))
	r.Get("/modalities", ModalitiesHandler(d))
	r.Get("/pricing", PricingHandler(d))
}

func rejectIdempotent(w http.ResponseWriter, _ *http.Request, status int, reason string) {
	code := CodeValidation
	if status == http.StatusUnprocessableEntity {
		code = CodeConflict
	}
	jsonError(w, status, code, reason)
}
