package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jordanhubbard/modelhub/internal/cache"
	"github.com/jordanhubbard/modelhub/internal/events"
	"github.com/jordanhubbard/modelhub/internal/store"
)

// hashForBcrypt pre-hashes a key with SHA-256 to stay within bcrypt's 72-byte limit.
func hashForBcrypt(key string) []byte {
	h := sha256.Sum256([]byte(key))
	return []byte(hex.EncodeToString(h[:]))
}

const (
	keyPrefix    = "mh_"
	keyRandBytes = 32 // 64 hex chars
	prefixLen    = len(keyPrefix) + 8
	bcryptCost   = 10
	cacheTTL     = 5 * time.Minute
	cacheEntries = 10000
)

var (
	// ErrInvalidKey is returned for keys that match no enabled record.
	ErrInvalidKey = errors.New("invalid api key")
	// ErrExpiredKey is returned for keys past their expiry.
	ErrExpiredKey = errors.New("api key expired")
	// ErrKeyNotFound is returned when an id names no key.
	ErrKeyNotFound = errors.New("api key not found")
)

// Manager issues, verifies and revokes API keys.
type Manager struct {
	store  store.Store
	quotas *Quotas
	cache  *cache.TTL[store.APIKeyRecord] // bcrypt prehash -> record
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithQuotas shares a quota tracker with the manager.
func WithQuotas(q *Quotas) Option {
	return func(m *Manager) { m.quotas = q }
}

// WithClock replaces time.Now for issue and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a new API key manager.
func NewManager(s store.Store, opts ...Option) *Manager {
	m := &Manager{
		store: s,
		now:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	if m.quotas == nil {
		m.quotas = NewQuotas()
	}
	m.quotas.now = m.now
	m.cache = cache.New[store.APIKeyRecord](cacheTTL, cacheEntries, cache.WithClock(m.now))
	return m
}

// Quotas returns the tracker used for per-key allowances.
func (m *Manager) Quotas() *Quotas { return m.quotas }

// Close stops the verification cache.
func (m *Manager) Close() { m.cache.Stop() }

// Issue creates a new key for ownerID, stores its bcrypt hash, and returns
// the plaintext key exactly once. Keys on paid plans expire after 30 days.
func (m *Manager) Issue(ctx context.Context, ownerID string, plan Plan) (string, *store.APIKeyRecord, error) {
	raw := make([]byte, keyRandBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("generate random: %w", err)
	}
	plaintext := keyPrefix + hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword(hashForBcrypt(plaintext), bcryptCost)
	if err != nil {
		return "", nil, fmt.Errorf("bcrypt hash: %w", err)
	}

	now := m.now().UTC()
	rec := store.APIKeyRecord{
		ID:        uuid.NewString(),
		KeyHash:   string(hash),
		KeyPrefix: plaintext[:prefixLen],
		OwnerID:   ownerID,
		Plan:      string(plan),
		CreatedAt: now,
		Enabled:   true,
	}
	if life := plan.KeyLifetime(); life > 0 {
		exp := now.Add(life)
		rec.ExpiresAt = &exp
	}

	if err := m.store.CreateAPIKey(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("store api key: %w", err)
	}
	return plaintext, &rec, nil
}

// Verify checks a plaintext API key and returns the associated record.
// Uses a short TTL cache to avoid bcrypt on every request.
func (m *Manager) Verify(ctx context.Context, key string) (*store.APIKeyRecord, error) {
	if !strings.HasPrefix(key, keyPrefix) || len(key) < prefixLen {
		return nil, ErrInvalidKey
	}
	digest := hashForBcrypt(key)
	if rec, ok := m.cache.Get(string(digest)); ok {
		if m.expired(&rec) {
			m.cache.Delete(string(digest))
			return nil, ErrExpiredKey
		}
		return &rec, nil
	}

	candidates, err := m.store.GetAPIKeysByPrefix(ctx, key[:prefixLen])
	if err != nil {
		return nil, fmt.Errorf("lookup keys: %w", err)
	}
	for i := range candidates {
		k := &candidates[i]
		if !k.Enabled {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(k.KeyHash), digest); err != nil {
			continue
		}
		if m.expired(k) {
			return nil, ErrExpiredKey
		}
		m.cache.Set(string(digest), *k)
		return k, nil
	}
	return nil, ErrInvalidKey
}

func (m *Manager) expired(k *store.APIKeyRecord) bool {
	return k.ExpiresAt != nil && m.now().After(*k.ExpiresAt)
}

// Consume charges one request against the key's plan and records the use.
// A *QuotaExceededError means the request must be refused.
func (m *Manager) Consume(ctx context.Context, rec *store.APIKeyRecord) error {
	if err := m.quotas.Take(rec.ID, Plan(rec.Plan)); err != nil {
		return err
	}
	if err := m.store.IncrementAPIKeyUsage(ctx, rec.ID, m.now().UTC()); err != nil {
		slog.Warn("api key usage not recorded", slog.String("key_id", rec.ID), slog.String("error", err.Error()))
	}
	return nil
}

// Revoke disables a key. Cached verifications are dropped.
func (m *Manager) Revoke(ctx context.Context, id string) error {
	rec, err := m.store.GetAPIKey(ctx, id)
	if err != nil {
		return fmt.Errorf("get key: %w", err)
	}
	if rec == nil {
		return ErrKeyNotFound
	}
	rec.Enabled = false
	if err := m.store.UpdateAPIKey(ctx, *rec); err != nil {
		return fmt.Errorf("update key: %w", err)
	}
	m.cache.Purge()
	m.quotas.Forget(id)
	return nil
}

// List returns every issued key.
func (m *Manager) List(ctx context.Context) ([]store.APIKeyRecord, error) {
	return m.store.ListAPIKeys(ctx)
}

// Usage summarises a key's lifetime use and what remains of today's quota.
type Usage struct {
	KeyID      string     `json:"key_id"`
	Plan       string     `json:"plan"`
	Enabled    bool       `json:"enabled"`
	UsageCount int64      `json:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	DailyLimit int        `json:"daily_limit"`
	Remaining  int        `json:"remaining"`
}

// Usage reports consumption for one key.
func (m *Manager) Usage(ctx context.Context, id string) (*Usage, error) {
	rec, err := m.store.GetAPIKey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get key: %w", err)
	}
	if rec == nil {
		return nil, ErrKeyNotFound
	}
	plan := Plan(rec.Plan)
	u := &Usage{
		KeyID:      rec.ID,
		Plan:       rec.Plan,
		Enabled:    rec.Enabled,
		UsageCount: rec.UsageCount,
		LastUsedAt: rec.LastUsedAt,
		ExpiresAt:  rec.ExpiresAt,
		DailyLimit: plan.DailyLimit(),
	}
	if rec.Enabled {
		u.Remaining = m.quotas.Remaining(rec.ID, plan)
	}
	return u, nil
}

// DisableExpired disables every enabled key past its expiry, publishes an
// apikey_revoked event for each on bus (when non-nil) and returns how many
// were disabled.
func (m *Manager) DisableExpired(ctx context.Context, bus *events.Bus, logger *slog.Logger) (int, error) {
	keys, err := m.store.ListAPIKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list keys: %w", err)
	}
	count := 0
	for i := range keys {
		k := keys[i]
		if !k.Enabled || !m.expired(&k) {
			continue
		}
		k.Enabled = false
		if err := m.store.UpdateAPIKey(ctx, k); err != nil {
			logger.Warn("failed to disable expired key", slog.String("key_id", k.ID), slog.String("error", err.Error()))
			continue
		}
		m.quotas.Forget(k.ID)
		count++
		logger.Info("disabled expired api key", slog.String("key_id", k.ID), slog.String("plan", k.Plan))
		if bus != nil {
			bus.Publish(events.Event{Type: events.EventAPIKeyRevoked, KeyID: k.ID})
		}
	}
	if count > 0 {
		m.cache.Purge()
	}
	return count, nil
}
