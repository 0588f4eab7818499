package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func f64(v float64) *float64 { return &v }
func intp(v int) *int         { return &v }

func seedModels(t *testing.T, s *SQLStore) {
	t.Helper()
	ctx := context.Background()
	models := []ModelRecord{
		{
			ID: "1", Slug: "gpt-4o", Name: "GPT-4o", Provider: "openai",
			ContextWindow:   intp(128000),
			Modalities:      []string{"text", "vision"},
			BenchmarkScores: BenchmarkScores{"mmlu": 88.7, "humaneval": 90.2},
			Pricing:         &Pricing{InputPrice: f64(5), OutputPrice: f64(15)},
			Tags:            []string{"flagship"},
		},
		{
			ID: "2", Slug: "claude-3-haiku", Name: "Claude 3 Haiku", Provider: "anthropic",
			ContextWindow:   intp(200000),
			Modalities:      []string{"text"},
			BenchmarkScores: BenchmarkScores{"mmlu": 75.2},
			Pricing:         &Pricing{InputPrice: f64(0.25), OutputPrice: f64(1.25)},
			Tags:            []string{"fast"},
		},
		{
			ID: "3", Slug: "whisper-large", Name: "Whisper Large", Provider: "openai",
			Modalities: []string{"audio"},
		},
	}
	for _, m := range models {
		if err := s.UpsertModel(ctx, m); err != nil {
			t.Fatalf("upsert %s: %v", m.Slug, err)
		}
	}
}

func TestMigrate(t *testing.T) {
	s := newTestStore(t)
	// Running migrate twice should be idempotent.
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestModelsCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := ModelRecord{
		ID: "m1", Slug: "gpt-4", Name: "GPT-4", Provider: "openai",
		ContextWindow:   intp(8192),
		Modalities:      []string{"text"},
		BenchmarkScores: BenchmarkScores{"mmlu": 86.4},
		Pricing:         &Pricing{InputPrice: f64(30), OutputPrice: f64(60)},
		Links:           map[string]string{"docs": "https://example.com"},
	}
	if err := s.CreateModel(ctx, m); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.CreateModel(ctx, m); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate create, got %v", err)
	}

	got, err := s.GetModel(ctx, "gpt-4")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected model, got nil")
	}
	if got.ContextWindow == nil || *got.ContextWindow != 8192 {
		t.Errorf("expected context window 8192, got %v", got.ContextWindow)
	}
	if got.BenchmarkScores["mmlu"] != 86.4 {
		t.Errorf("expected mmlu 86.4, got %v", got.BenchmarkScores["mmlu"])
	}
	if got.Pricing == nil || *got.Pricing.OutputPrice != 60 {
		t.Errorf("unexpected pricing: %+v", got.Pricing)
	}
	if got.Links["docs"] != "https://example.com" {
		t.Errorf("unexpected links: %v", got.Links)
	}
	if got.Metrics != nil {
		t.Errorf("expected no metrics, got %+v", got.Metrics)
	}

	// Update
	m.Name = "GPT-4 Turbo"
	m.ContextWindow = nil
	if err := s.UpsertModel(ctx, m); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	got, _ = s.GetModel(ctx, "gpt-4")
	if got.Name != "GPT-4 Turbo" {
		t.Errorf("expected updated name, got %q", got.Name)
	}
	if got.ContextWindow != nil {
		t.Errorf("expected nil context window, got %d", *got.ContextWindow)
	}

	// Delete
	if err := s.DeleteModel(ctx, "gpt-4"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	got, _ = s.GetModel(ctx, "gpt-4")
	if got != nil {
		t.Error("expected nil after delete")
	}
	if err := s.DeleteModel(ctx, "gpt-4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestGetModelNotFound(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetModel(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestLegacyPricingColumn(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedModels(t, s)

	// Rows written by older importers use "input"/"output".
	if _, err := s.DB().ExecContext(ctx,
		`UPDATE models SET pricing = '{"input": 2.5, "output": 10}' WHERE slug = 'gpt-4o'`); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetModel(ctx, "gpt-4o")
	if err != nil || got == nil {
		t.Fatalf("get: %v", err)
	}
	if got.Pricing == nil || got.Pricing.InputPrice == nil || *got.Pricing.InputPrice != 2.5 {
		t.Fatalf("expected legacy input price 2.5, got %+v", got.Pricing)
	}
	if *got.Pricing.OutputPrice != 10 {
		t.Errorf("expected legacy output price 10, got %v", *got.Pricing.OutputPrice)
	}
}

func TestListModelsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedModels(t, s)

	cases := []struct {
		name string
		q    ModelQuery
		want []string
	}{
		{"default name order", ModelQuery{}, []string{"claude-3-haiku", "gpt-4o", "whisper-large"}},
		{"provider", ModelQuery{Provider: "openai"}, []string{"gpt-4o", "whisper-large"}},
		{"modality", ModelQuery{Modality: "vision"}, []string{"gpt-4o"}},
		{"tag", ModelQuery{Tag: "fast"}, []string{"claude-3-haiku"}},
		{"search", ModelQuery{Search: "WHISPER"}, []string{"whisper-large"}},
		{"min context", ModelQuery{MinContextWindow: intp(150000)}, []string{"claude-3-haiku"}},
		{"max price", ModelQuery{MaxPrice: f64(1)}, []string{"claude-3-haiku"}},
		{"context desc nulls last", ModelQuery{SortBy: "contextWindow", SortOrder: "desc"},
			[]string{"claude-3-haiku", "gpt-4o", "whisper-large"}},
		{"shares provider or modality", ModelQuery{
			SharesProvider: "anthropic", SharesModalities: []string{"vision"}, ExcludeSlug: "claude-3-haiku",
		}, []string{"gpt-4o"}},
		{"limit offset", ModelQuery{Limit: 1, Offset: 1}, []string{"gpt-4o"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ListModels(ctx, tc.q)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d models, got %d", len(tc.want), len(got))
			}
			for i, slug := range tc.want {
				if got[i].Slug != slug {
					t.Errorf("position %d: expected %s, got %s", i, slug, got[i].Slug)
				}
			}
		})
	}

	n, err := s.CountModels(ctx, ModelQuery{Provider: "openai", Limit: 1})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected count 2, got %d", n)
	}
}

func TestModalityFilterMatchesWholeElement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.UpsertModel(ctx, ModelRecord{ID: "x", Slug: "x", Name: "X", Provider: "p", Modalities: []string{"textual"}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.ListModels(ctx, ModelQuery{Modality: "text"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no match for partial modality, got %d", len(got))
	}
}

func TestGetModelsBySlugs(t *testing.T) {
	s := newTestStore(t)
	seedModels(t, s)
	got, err := s.GetModelsBySlugs(context.Background(), []string{"whisper-large", "gpt-4o", "missing"})
	if err != nil {
		t.Fatalf("get by slugs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 models, got %d", len(got))
	}
}

func TestProvidersAndModalities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedModels(t, s)

	providers, err := s.ListProviders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(providers) != 2 || providers[0] != "anthropic" || providers[1] != "openai" {
		t.Errorf("unexpected providers: %v", providers)
	}

	mods, err := s.ListModalities(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"audio", "text", "vision"}
	if len(mods) != len(want) {
		t.Fatalf("expected %v, got %v", want, mods)
	}
	for i := range want {
		if mods[i] != want[i] {
			t.Errorf("expected %v, got %v", want, mods)
		}
	}
}

func TestMarketMetricsAndTrending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedModels(t, s)

	now := time.Now().UTC()
	if err := s.UpsertMarketMetrics(ctx, "gpt-4o", MarketMetrics{Popularity: 90, GrowthRate: 5, LastUpdated: now}); err != nil {
		t.Fatalf("upsert metrics: %v", err)
	}
	if err := s.UpsertMarketMetrics(ctx, "claude-3-haiku", MarketMetrics{Popularity: 40, GrowthRate: 12, LastUpdated: now}); err != nil {
		t.Fatalf("upsert metrics: %v", err)
	}
	if err := s.UpsertMarketMetrics(ctx, "whisper-large", MarketMetrics{Popularity: 99, GrowthRate: 50, LastUpdated: now.Add(-48 * time.Hour)}); err != nil {
		t.Fatalf("upsert metrics: %v", err)
	}
	if err := s.UpsertMarketMetrics(ctx, "missing", MarketMetrics{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing model, got %v", err)
	}

	got, err := s.ListTrending(ctx, now.Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("trending: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 trending models, got %d", len(got))
	}
	if got[0].Slug != "claude-3-haiku" || got[1].Slug != "gpt-4o" {
		t.Errorf("unexpected trending order: %s, %s", got[0].Slug, got[1].Slug)
	}
	if got[1].Metrics == nil || got[1].Metrics.Popularity != 90 {
		t.Errorf("expected joined metrics, got %+v", got[1].Metrics)
	}

	// Deleting a model drops its metrics row too.
	if err := s.DeleteModel(ctx, "gpt-4o"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.ListTrending(ctx, now.Add(-24*time.Hour), 10)
	if len(got) != 1 {
		t.Errorf("expected 1 trending model after delete, got %d", len(got))
	}
}

func TestListUpdatedSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	for i, age := range []time.Duration{time.Hour, 72 * time.Hour, 40 * 24 * time.Hour} {
		slug := []string{"a", "b", "c"}[i]
		if err := s.UpsertModel(ctx, ModelRecord{
			ID: slug, Slug: slug, Name: slug, Provider: "p", LastUpdated: now.Add(-age),
		}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ListUpdatedSince(ctx, now.Add(-7*24*time.Hour), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Slug != "a" || got[1].Slug != "b" {
		t.Errorf("unexpected updated models: %+v", got)
	}
}

func TestAPIKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := APIKeyRecord{
		ID: "k1", KeyHash: "hash", KeyPrefix: "mh_abcd", OwnerID: "acme",
		Plan: "pro", CreatedAt: time.Now().UTC(), Enabled: true,
	}
	if err := s.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("create key: %v", err)
	}

	byPrefix, err := s.GetAPIKeysByPrefix(ctx, "mh_abcd")
	if err != nil || len(byPrefix) != 1 {
		t.Fatalf("by prefix: %v (%d)", err, len(byPrefix))
	}

	at := time.Now().UTC()
	if err := s.IncrementAPIKeyUsage(ctx, "k1", at); err != nil {
		t.Fatal(err)
	}
	if err := s.IncrementAPIKeyUsage(ctx, "k1", at); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetAPIKey(ctx, "k1")
	if err != nil || got == nil {
		t.Fatalf("get key: %v", err)
	}
	if got.UsageCount != 2 {
		t.Errorf("expected usage 2, got %d", got.UsageCount)
	}
	if got.LastUsedAt == nil {
		t.Error("expected last_used_at to be set")
	}

	got.Enabled = false
	if err := s.UpdateAPIKey(ctx, *got); err != nil {
		t.Fatal(err)
	}
	all, _ := s.ListAPIKeys(ctx)
	if len(all) != 1 || all[0].Enabled {
		t.Errorf("expected one disabled key, got %+v", all)
	}
	n, _ := s.CountAPIKeys(ctx)
	if n != 1 {
		t.Errorf("expected 1 key, got %d", n)
	}
	if err := s.UpdateAPIKey(ctx, APIKeyRecord{ID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAuditLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.LogAudit(ctx, AuditEntry{
			Timestamp: time.Now().UTC().Add(time.Duration(i) * time.Second),
			Action:    "model.update",
			Resource:  "gpt-4o",
		}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := s.ListAuditLogs(ctx, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Timestamp.After(entries[1].Timestamp) {
		t.Error("expected newest entry first")
	}
}

func TestRecordSearch(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordSearch(context.Background(), "gpt", 3); err != nil {
		t.Fatalf("record search: %v", err)
	}
}
