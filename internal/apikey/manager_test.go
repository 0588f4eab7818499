package apikey

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jordanhubbard/modelhub/internal/events"
	"github.com/jordanhubbard/modelhub/internal/store"
)

func newTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T) (*Manager, *store.SQLStore, *fakeClock) {
	t.Helper()
	s := newTestStore(t)
	clk := &fakeClock{t: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
	mgr := NewManager(s, WithClock(clk.Now))
	t.Cleanup(mgr.Close)
	return mgr, s, clk
}

func TestIssue(t *testing.T) {
	mgr, _, clk := newTestManager(t)
	ctx := context.Background()

	plaintext, rec, err := mgr.Issue(ctx, "user-1", PlanFree)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if !strings.HasPrefix(plaintext, "mh_") {
		t.Errorf("expected mh_ prefix, got %s", plaintext[:5])
	}
	// 3 (prefix) + 64 (32 hex bytes) = 67 chars.
	if len(plaintext) != 67 {
		t.Errorf("expected key length 67, got %d", len(plaintext))
	}
	if rec.KeyPrefix != plaintext[:11] {
		t.Errorf("expected prefix %s, got %s", plaintext[:11], rec.KeyPrefix)
	}
	if rec.OwnerID != "user-1" || rec.Plan != "free" || !rec.Enabled {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.ExpiresAt != nil {
		t.Errorf("free keys should not expire, got %v", rec.ExpiresAt)
	}
	if !rec.CreatedAt.Equal(clk.Now()) {
		t.Errorf("created_at = %v, want %v", rec.CreatedAt, clk.Now())
	}
	if strings.Contains(rec.KeyHash, plaintext) {
		t.Error("plaintext must not be stored")
	}

	_, paid, err := mgr.Issue(ctx, "user-2", PlanPro)
	if err != nil {
		t.Fatalf("issue pro failed: %v", err)
	}
	if paid.ExpiresAt == nil || !paid.ExpiresAt.Equal(clk.Now().Add(30*24*time.Hour)) {
		t.Errorf("pro key expiry = %v, want 30 days out", paid.ExpiresAt)
	}
	if paid.ID == rec.ID {
		t.Error("ids must be unique")
	}
}

func TestVerify(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	plaintext, issued, err := mgr.Issue(ctx, "user-1", PlanFree)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	rec, err := mgr.Verify(ctx, plaintext)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if rec.ID != issued.ID {
		t.Errorf("expected id %s, got %s", issued.ID, rec.ID)
	}

	for _, bad := range []string{"", "mh_short", "sk_other", plaintext[:len(plaintext)-1] + "0"} {
		if bad == plaintext {
			continue
		}
		if _, err := mgr.Verify(ctx, bad); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Verify(%q) = %v, want ErrInvalidKey", bad, err)
		}
	}
}

func TestVerifyExpiredKey(t *testing.T) {
	mgr, _, clk := newTestManager(t)
	ctx := context.Background()

	plaintext, _, err := mgr.Issue(ctx, "user-1", PlanPro)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := mgr.Verify(ctx, plaintext); err != nil {
		t.Fatalf("fresh key should verify: %v", err)
	}

	clk.Advance(31 * 24 * time.Hour)
	if _, err := mgr.Verify(ctx, plaintext); !errors.Is(err, ErrExpiredKey) {
		t.Fatalf("expected ErrExpiredKey, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	mgr, s, _ := newTestManager(t)
	ctx := context.Background()

	plaintext, rec, err := mgr.Issue(ctx, "user-1", PlanFree)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	// Populate the cache first.
	if _, err := mgr.Verify(ctx, plaintext); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if err := mgr.Revoke(ctx, rec.ID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := mgr.Verify(ctx, plaintext); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("revoked key should not verify, got %v", err)
	}
	got, _ := s.GetAPIKey(ctx, rec.ID)
	if got == nil || got.Enabled {
		t.Fatalf("expected disabled record, got %+v", got)
	}

	if err := mgr.Revoke(ctx, "nonexistent"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestVerifyCache(t *testing.T) {
	mgr, s, _ := newTestManager(t)
	ctx := context.Background()

	plaintext, rec, err := mgr.Issue(ctx, "user-1", PlanFree)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := mgr.Verify(ctx, plaintext); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	// Disable behind the manager's back; the cached entry still answers.
	rec.Enabled = false
	if err := s.UpdateAPIKey(ctx, *rec); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, err := mgr.Verify(ctx, plaintext); err != nil {
		t.Fatalf("expected cached verification, got %v", err)
	}
}

func TestConsumeAndUsage(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	_, rec, err := mgr.Issue(ctx, "user-1", PlanFree)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := mgr.Consume(ctx, rec); err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
	}

	u, err := mgr.Usage(ctx, rec.ID)
	if err != nil {
		t.Fatalf("usage failed: %v", err)
	}
	if u.UsageCount != 3 {
		t.Errorf("usage_count = %d, want 3", u.UsageCount)
	}
	if u.DailyLimit != 100 || u.Remaining != 97 {
		t.Errorf("limit/remaining = %d/%d, want 100/97", u.DailyLimit, u.Remaining)
	}
	if u.LastUsedAt == nil {
		t.Error("expected last_used_at to be set")
	}

	if _, err := mgr.Usage(ctx, "nope"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestDisableExpired(t *testing.T) {
	mgr, s, clk := newTestManager(t)
	ctx := context.Background()
	bus := events.NewBus()
	sub := bus.Subscribe(4)
	defer bus.Unsubscribe(sub)

	_, paid, err := mgr.Issue(ctx, "user-1", PlanEnterprise)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	_, free, err := mgr.Issue(ctx, "user-2", PlanFree)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	n, err := mgr.DisableExpired(ctx, bus, slog.Default())
	if err != nil || n != 0 {
		t.Fatalf("nothing should expire yet: n=%d err=%v", n, err)
	}

	clk.Advance(31 * 24 * time.Hour)
	n, err = mgr.DisableExpired(ctx, bus, slog.Default())
	if err != nil {
		t.Fatalf("disable expired failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 disabled key, got %d", n)
	}

	got, _ := s.GetAPIKey(ctx, paid.ID)
	if got.Enabled {
		t.Error("expected enterprise key to be disabled")
	}
	got, _ = s.GetAPIKey(ctx, free.ID)
	if !got.Enabled {
		t.Error("expected free key to stay enabled")
	}

	select {
	case e := <-sub.C:
		if e.Type != events.EventAPIKeyRevoked || e.KeyID != paid.ID {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("expected apikey_revoked event")
	}

	// Nil bus is fine.
	if _, err := mgr.DisableExpired(ctx, nil, slog.Default()); err != nil {
		t.Fatalf("nil bus: %v", err)
	}
}

func TestParsePlan(t *testing.T) {
	for in, want := range map[string]Plan{"": PlanFree, "free": PlanFree, "pro": PlanPro, "enterprise": PlanEnterprise} {
		got, err := ParsePlan(in)
		if err != nil || got != want {
			t.Errorf("ParsePlan(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePlan("platinum"); err == nil {
		t.Error("expected error for unknown plan")
	}
	if Plan("bogus").DailyLimit() != 100 {
		t.Error("unknown plans get the free allowance")
	}
}
