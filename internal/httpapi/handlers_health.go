package httpapi

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/sync/errgroup"

	"github.com/jordanhubbard/modelhub/internal/store"
)

// HealthzHandler is the liveness probe: 200 while the store answers a ping.
func HealthzHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "error": "database unreachable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

type serviceHealth struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs,omitempty"`
}

type healthReport struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]serviceHealth `json:"services"`
	Metrics   map[string]int           `json:"metrics,omitempty"`
}

// HealthHandler handles GET /api/health. The ping and both counts run
// concurrently; the report is healthy only when all of them succeed.
func HealthHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		var (
			latency           time.Duration
			models, keys      int
			pingErr, countErr error
		)
		start := time.Now()
		var g errgroup.Group
		g.Go(func() error {
			pingErr = d.Store.Ping(ctx)
			latency = time.Since(start)
			return nil
		})
		g.Go(func() error {
			var err error
			models, err = d.Store.CountModels(ctx, store.ModelQuery{})
			return err
		})
		g.Go(func() error {
			var err error
			keys, err = d.Store.CountAPIKeys(ctx)
			return err
		})
		countErr = g.Wait()

		rep := healthReport{
			Version:   d.Version,
			Timestamp: d.now(),
			Services:  map[string]serviceHealth{},
		}
		switch {
		case pingErr != nil:
			rep.Status = "unhealthy"
			rep.Services["database"] = serviceHealth{Status: "disconnected"}
		case countErr != nil:
			rep.Status = "degraded"
			rep.Services["database"] = serviceHealth{Status: "connected", LatencyMs: latency.Milliseconds()}
		default:
			rep.Status = "healthy"
			rep.Services["database"] = serviceHealth{Status: "connected", LatencyMs: latency.Milliseconds()}
			rep.Metrics = map[string]int{"totalModels": models, "totalKeys": keys}
		}
		if d.Catalog != nil {
			rep.Services["breaker"] = serviceHealth{Status: d.Catalog.BreakerState().String()}
		}

		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		status := http.StatusOK
		if rep.Status == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, rep)
	}
}

var docsPage = template.Must(template.New("docs").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>modelhub API</title>
<style>body{font-family:system-ui,sans-serif;max-width:52rem;margin:2rem auto;padding:0 1rem;line-height:1.5}
pre{background:#f4f4f4;padding:.75rem;overflow-x:auto}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.25rem .5rem}</style>
</head>
<body>
{{.}}
</body>
</html>
`))

// DocsHandler renders the embedded API markdown as HTML. The page is
// rendered once and reused.
func DocsHandler(d Dependencies) http.HandlerFunc {
	var (
		once sync.Once
		page []byte
		err  error
	)
	render := func() {
		md := goldmark.New(goldmark.WithExtensions(extension.GFM))
		var body bytes.Buffer
		if err = md.Convert(d.Docs, &body); err != nil {
			return
		}
		var out bytes.Buffer
		if err = docsPage.Execute(&out, template.HTML(body.String())); err != nil {
			return
		}
		page = out.Bytes()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		once.Do(render)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}
}
