package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jordanhubbard/modelhub/internal/apikey"
	"github.com/jordanhubbard/modelhub/internal/catalog"
	"github.com/jordanhubbard/modelhub/internal/metrics"
	"github.com/jordanhubbard/modelhub/internal/store"
	"github.com/jordanhubbard/modelhub/internal/validate"
)

// Error codes carried in the error envelope.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidModelCount = "INVALID_MODEL_COUNT"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInternal          = "INTERNAL_ERROR"
)

// Meta is pagination metadata attached to list responses.
type Meta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Page   int `json:"page"`
	Pages  int `json:"pages"`
}

func newMeta(total, limit, offset int) *Meta {
	m := &Meta{Total: total, Limit: limit, Offset: offset, Page: 1}
	if limit > 0 {
		m.Page = offset/limit + 1
		m.Pages = (total + limit - 1) / limit
	}
	return m
}

type envelope struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

type errorBody struct {
	Message string                `json:"message"`
	Code    string                `json:"code"`
	Field   string                `json:"field,omitempty"`
	Details []validate.FieldError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeData writes a success envelope.
func writeData(w http.ResponseWriter, status int, data any, meta *Meta) {
	writeJSON(w, status, envelope{Data: data, Meta: meta})
}

// jsonError writes an error envelope.
func jsonError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]errorBody{"error": {Message: msg, Code: code}})
}

// writeError maps err onto the error envelope. Anything unrecognised is a
// 500 with a generic message; the detail only goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		ve  *catalog.ValidationError
		sve *validate.Error
		nf  *catalog.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {
			Message: ve.Message, Code: CodeValidation, Field: ve.Field,
		}})
	case errors.As(err, &sve):
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {
			Message: sve.Error(), Code: CodeValidation, Field: sve.Field(), Details: sve.Errors,
		}})
	case errors.Is(err, catalog.ErrInvalidModelCount):
		jsonError(w, http.StatusBadRequest, CodeInvalidModelCount, err.Error())
	case errors.As(err, &nf):
		jsonError(w, http.StatusNotFound, CodeNotFound, nf.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, apikey.ErrKeyNotFound):
		jsonError(w, http.StatusNotFound, CodeNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		jsonError(w, http.StatusConflict, CodeConflict, "resource already exists")
	default:
		if logger == nil {
			logger = slog.Default()
		}
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("query", r.URL.RawQuery),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
		jsonError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

func warnOnErr(op string, err error) {
	if err != nil {
		slog.Warn("store operation failed", slog.String("op", op), slog.String("error", err.Error()))
	}
}

// Instrument records request counts and latency per chi route pattern.
func Instrument(reg *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			if reg == nil {
				return
			}
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			reg.RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
			reg.RequestLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}
