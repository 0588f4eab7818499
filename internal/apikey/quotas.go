package apikey

import (
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// QuotaExceededError is returned when a key has used up its plan allowance.
type QuotaExceededError struct {
	Plan       Plan
	Limit      int
	RetryAfter time.Duration
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily quota exceeded: plan=%s limit=%d retry_after=%s", e.Plan, e.Limit, e.RetryAfter)
}

// Quotas tracks per-key request allowances. Each key gets a token bucket
// holding one day of requests for its plan, refilled continuously.
type Quotas struct {
	mu       sync.Mutex
	limiters map[string]*keyLimiter
	now      func() time.Time
}

type keyLimiter struct {
	plan Plan
	lim  *rate.Limiter
}

// NewQuotas creates an empty quota tracker.
func NewQuotas() *Quotas {
	return &Quotas{
		limiters: make(map[string]*keyLimiter),
		now:      time.Now,
	}
}

func (q *Quotas) limiter(keyID string, plan Plan) *rate.Limiter {
	q.mu.Lock()
	defer q.mu.Unlock()
	kl, ok := q.limiters[keyID]
	if !ok || kl.plan != plan {
		daily := plan.DailyLimit()
		kl = &keyLimiter{
			plan: plan,
			lim:  rate.NewLimiter(rate.Every(24*time.Hour/time.Duration(daily)), daily),
		}
		q.limiters[keyID] = kl
	}
	return kl.lim
}

// Take consumes one request for keyID. It returns a *QuotaExceededError
// carrying the wait until the next request is available when the bucket is
// empty; nothing is consumed in that case.
func (q *Quotas) Take(keyID string, plan Plan) error {
	lim := q.limiter(keyID, plan)
	now := q.now()
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return &QuotaExceededError{Plan: plan, Limit: plan.DailyLimit(), RetryAfter: 24 * time.Hour}
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return &QuotaExceededError{Plan: plan, Limit: plan.DailyLimit(), RetryAfter: d}
	}
	return nil
}

// Remaining reports how many whole requests keyID may still make now.
func (q *Quotas) Remaining(keyID string, plan Plan) int {
	tokens := q.limiter(keyID, plan).TokensAt(q.now())
	if tokens < 0 {
		return 0
	}
	return int(math.Floor(tokens))
}

// Forget drops the bucket of a revoked key.
func (q *Quotas) Forget(keyID string) {
	q.mu.Lock()
	delete(q.limiters, keyID)
	q.mu.Unlock()
}

// Len is the number of tracked keys.
func (q *Quotas) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.limiters)
}
