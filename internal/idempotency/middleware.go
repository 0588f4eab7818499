// Package idempotency replays responses to admin writes that carry an
// Idempotency-Key header, so a retried seed or key issue does not create
// duplicates.
package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/jordanhubbard/modelhub/internal/cache"
)

const (
	HeaderKey    = "Idempotency-Key"
	HeaderReplay = "Idempotency-Replay"

	maxKeyLen  = 255
	maxBodyLen = 1 << 20
)

// Response is a captured response.
type Response struct {
	BodyHash   string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Store holds captured responses keyed by method, path and Idempotency-Key.
type Store struct {
	responses *cache.TTL[Response]
}

// NewStore keeps responses for ttl, at most maxEntries of them.
func NewStore(ttl time.Duration, maxEntries int, opts ...cache.Option) *Store {
	return &Store{responses: cache.New[Response](ttl, maxEntries, opts...)}
}

// Len reports how many responses are held.
func (s *Store) Len() int { return s.responses.Len() }

func (s *Store) Stop() { s.responses.Stop() }

// Rejector writes the error response for a request the middleware refuses.
// reason is a human-readable message.
type Rejector func(w http.ResponseWriter, r *http.Request, status int, reason string)

// Middleware replays the stored response when a request repeats a key with
// the same body. Reusing a key with a different body is rejected with 422.
// Only 2xx responses are stored; failures can be retried under the same key.
// A nil store disables the middleware.
func Middleware(s *Store, reject Rejector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if s == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxKeyLen {
				reject(w, r, http.StatusBadRequest, HeaderKey+" is too long")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyLen+1))
			if err != nil {
				reject(w, r, http.StatusBadRequest, "read request body: "+err.Error())
				return
			}
			if len(body) > maxBodyLen {
				reject(w, r, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])
			cacheKey := r.Method + " " + r.URL.Path + " " + key

			if prev, ok := s.responses.Get(cacheKey); ok {
				if prev.BodyHash != hash {
					reject(w, r, http.StatusUnprocessableEntity, HeaderKey+" was already used with a different request body")
					return
				}
				for k, v := range prev.Header {
					w.Header()[k] = v
				}
				w.Header().Set(HeaderReplay, "true")
				w.WriteHeader(prev.StatusCode)
				_, _ = w.Write(prev.Body)
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status < 200 || rec.status > 299 {
				return
			}
			s.responses.Set(cacheKey, Response{
				BodyHash:   hash,
				StatusCode: rec.status,
				Header:     w.Header().Clone(),
				Body:       rec.body.Bytes(),
			})
		})
	}
}

type recorder struct {
	http.ResponseWriter
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func (r *recorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
