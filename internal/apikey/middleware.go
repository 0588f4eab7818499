package apikey

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/jordanhubbard/modelhub/internal/metrics"
	"github.com/jordanhubbard/modelhub/internal/store"
)

type contextKey string

const apiKeyContextKey contextKey = "apikey"

// FromContext returns the API key record attached to the request context.
func FromContext(ctx context.Context) *store.APIKeyRecord {
	if v, ok := ctx.Value(apiKeyContextKey).(*store.APIKeyRecord); ok {
		return v
	}
	return nil
}

// KeyFromRequest extracts a key from X-API-KEY or, failing that, an
// Authorization bearer token.
func KeyFromRequest(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("X-API-KEY")); k != "" {
		return k
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// AuthMiddleware verifies API keys and charges each request to the key's
// plan quota. With required unset, requests without a key pass through
// anonymously; a key that is present is still verified and charged.
// Returns 401 for missing/invalid keys and 429 when the quota is spent.
func AuthMiddleware(mgr *Manager, reg *metrics.Registry, required bool) func(http.Handler) http.Handler {
	count := func(plan, outcome string) {
		if reg != nil {
			reg.APIKeyRequests.WithLabelValues(plan, outcome).Inc()
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := r.Header.Get("X-Real-IP")
			if clientIP == "" {
				clientIP = r.RemoteAddr
			}

			key := KeyFromRequest(r)
			if key == "" {
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				slog.Warn("api key auth: missing key", slog.String("ip", clientIP), slog.String("path", r.URL.Path))
				count("none", "missing")
				deny(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key required. Provide X-API-KEY header.")
				return
			}

			rec, err := mgr.Verify(r.Context(), key)
			if err != nil {
				if errors.Is(err, ErrInvalidKey) || errors.Is(err, ErrExpiredKey) {
					slog.Warn("api key auth: validation failed", slog.String("ip", clientIP), slog.String("path", r.URL.Path), slog.String("error", err.Error()))
					count("none", "invalid")
					deny(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired API key")
					return
				}
				slog.Error("api key auth: lookup failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
				deny(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify API key")
				return
			}

			plan := Plan(rec.Plan)
			if err := mgr.Consume(r.Context(), rec); err != nil {
				var qe *QuotaExceededError
				if errors.As(err, &qe) {
					slog.Warn("api key auth: quota exceeded", slog.String("key_id", rec.ID), slog.String("plan", rec.Plan))
					count(rec.Plan, "quota_exceeded")
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(qe.RetryAfter.Seconds()))))
					w.Header().Set("X-RateLimit-Limit", strconv.Itoa(qe.Limit))
					w.Header().Set("X-RateLimit-Remaining", "0")
					deny(w, http.StatusTooManyRequests, "RATE_LIMITED", "Daily request quota exceeded for plan "+rec.Plan)
					return
				}
				deny(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify API key")
				return
			}

			count(rec.Plan, "allowed")
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(plan.DailyLimit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(mgr.quotas.Remaining(rec.ID, plan)))

			ctx := context.WithValue(r.Context(), apiKeyContextKey, rec)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func deny(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"message": msg, "code": code},
	})
}
