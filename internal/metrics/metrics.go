package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	RequestsTotal     *prometheus.CounterVec
	RequestLatency    *prometheus.HistogramVec
	ScoringDuration   *prometheus.HistogramVec
	CacheLookups      *prometheus.CounterVec
	RateLimited       prometheus.Counter
	APIKeyRequests    *prometheus.CounterVec
	StoreBreakerState prometheus.Gauge
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "modelhub_http_requests_total",
			Help: "HTTP requests served, by route pattern",
		}, []string{"route", "method", "status"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "modelhub_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		ScoringDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "modelhub_scoring_duration_seconds",
			Help:    "Time spent fetching and scoring candidates",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"operation"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "modelhub_cache_lookups_total",
			Help: "Result cache lookups by outcome",
		}, []string{"cache", "result"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modelhub_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter",
		}),
		APIKeyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "modelhub_apikey_requests_total",
			Help: "Keyed requests by plan and outcome",
		}, []string{"plan", "outcome"}),
		StoreBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "modelhub_store_breaker_state",
			Help: "Store circuit breaker state (0 closed, 1 open, 2 half-open)",
		}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestLatency, m.ScoringDuration, m.CacheLookups,
		m.RateLimited, m.APIKeyRequests, m.StoreBreakerState)
	return m
}

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
