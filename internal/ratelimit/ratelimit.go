// Package ratelimit provides per-client token bucket rate limiting
// middleware for net/http.
package ratelimit

import (
	"container/list"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Limiter is a per-IP token bucket rate limiter. The least recently seen
// client is evicted once maxKeys buckets exist.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*list.Element
	lru     *list.List // front = most recently used
	rps     rate.Limit
	burst   int
	maxKeys int
	idle    time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
	counter prometheus.Counter // optional: incremented on each 429
}

type bucket struct {
	key      string
	lim      *rate.Limiter
	lastSeen time.Time
}

// New creates a rate limiter allowing rps requests per second per client
// with bursts of up to burst.
func New(rps float64, burst int, opts ...Option) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*list.Element),
		lru:     list.New(),
		rps:     rate.Limit(rps),
		burst:   burst,
		maxKeys: 100000, // default cap: 100k unique IPs
		idle:    10 * time.Minute,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.cleanup()
	return l
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithCounter sets a Prometheus counter that is incremented on each 429.
func WithCounter(c prometheus.Counter) Option {
	return func(l *Limiter) {
		l.counter = c
	}
}

// WithMaxKeys caps the number of tracked clients.
func WithMaxKeys(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.maxKeys = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// Middleware enforces rate limits per client IP (X-Real-IP, else the host
// part of RemoteAddr).
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, wait := l.reserve(clientIP(r)); !ok {
			if l.counter != nil {
				l.counter.Inc()
			}
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"message": "rate limit exceeded", "code": "RATE_LIMITED"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (l *Limiter) allow(key string) bool {
	ok, _ := l.reserve(key)
	return ok
}

// reserve takes one token for key, or reports how long until one is free.
func (l *Limiter) reserve(key string) (bool, time.Duration) {
	now := l.now()
	b := l.touch(key, now)
	res := b.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, d
	}
	return true, 0
}

func (l *Limiter) touch(key string, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.buckets[key]; ok {
		l.lru.MoveToFront(el)
		b := el.Value.(*bucket)
		b.lastSeen = now
		return b
	}
	if len(l.buckets) >= l.maxKeys {
		l.evictOldest()
	}
	b := &bucket{key: key, lim: rate.NewLimiter(l.rps, l.burst), lastSeen: now}
	l.buckets[key] = l.lru.PushFront(b)
	return b
}

// evictOldest removes the least recently used bucket.
// Must be called with l.mu held.
func (l *Limiter) evictOldest() {
	el := l.lru.Back()
	if el == nil {
		return
	}
	l.lru.Remove(el)
	delete(l.buckets, el.Value.(*bucket).key)
}

// Stop terminates the background cleanup goroutine. Safe to call twice.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.prune()
		case <-l.stop:
			return
		}
	}
}

// prune drops clients idle for longer than l.idle.
func (l *Limiter) prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.idle)
	for el := l.lru.Back(); el != nil; {
		b := el.Value.(*bucket)
		if !b.lastSeen.Before(cutoff) {
			break
		}
		prev := el.Prev()
		l.lru.Remove(el)
		delete(l.buckets, b.key)
		el = prev
	}
}
