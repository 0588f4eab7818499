package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/modelhub/internal/store"
)

// Three models from two providers, scored end to end against a real store.
func newScenarioService(t *testing.T, extra ...store.ModelRecord) *Service {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))

	for i, m := range []store.ModelRecord{
		{
			Slug: "model-a", Name: "Model A", Provider: "x",
			Modalities:      []string{"text"},
			ContextWindow:   intp(1000),
			BenchmarkScores: store.BenchmarkScores{"mmlu": 90},
			Pricing:         &store.Pricing{InputPrice: f64(1), OutputPrice: f64(1)},
		},
		{
			Slug: "model-b", Name: "Model B", Provider: "x",
			Modalities:      []string{"text"},
			ContextWindow:   intp(2000),
			BenchmarkScores: store.BenchmarkScores{"mmlu": 80},
			Pricing:         &store.Pricing{InputPrice: f64(2), OutputPrice: f64(2)},
		},
		{
			Slug: "model-c", Name: "Model C", Provider: "y",
			Modalities:      []string{"text"},
			ContextWindow:   intp(3000),
			BenchmarkScores: store.BenchmarkScores{"mmlu": 70},
			Pricing:         &store.Pricing{InputPrice: f64(3), OutputPrice: f64(3)},
		},
	} {
		m.ID = string(rune('1' + i))
		require.NoError(t, s.CreateModel(ctx, m))
	}
	for _, m := range extra {
		require.NoError(t, s.CreateModel(ctx, m))
	}
	return NewService(s)
}

func TestScenario_RankByPerformance(t *testing.T) {
	svc := newScenarioService(t)
	res, err := svc.Rankings(context.Background(), RankingQuery{SortBy: SortPerformance, Order: Desc, Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Models, 3)

	want := []struct {
		slug  string
		score float64
	}{{"model-a", 1}, {"model-b", 0.5}, {"model-c", 0}}
	for i, w := range want {
		assert.Equal(t, i+1, res.Models[i].Rank)
		assert.Equal(t, w.slug, res.Models[i].Slug)
		assert.InDelta(t, w.score, res.Models[i].Scores.Performance, 1e-9)
	}
}

func TestScenario_RankByPrice(t *testing.T) {
	svc := newScenarioService(t)
	res, err := svc.Rankings(context.Background(), RankingQuery{SortBy: SortPrice, Order: Desc, Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Models, 3)
	assert.Equal(t, "model-a", res.Models[0].Slug, "cheapest first")
	assert.InDelta(t, 1.0, res.Models[0].Scores.Price, 1e-9)
	assert.Equal(t, "model-c", res.Models[2].Slug)
	assert.InDelta(t, 0.0, res.Models[2].Scores.Price, 1e-9)
}

func TestScenario_Compare(t *testing.T) {
	svc := newScenarioService(t)
	got, err := svc.Compare(context.Background(), []string{"model-a", "model-b", "model-c"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.InDelta(t, 1.0, got[0].Normalized.Performance, 1e-9)
	assert.InDelta(t, 0.5, got[1].Normalized.Performance, 1e-9)
	assert.InDelta(t, 0.0, got[2].Normalized.Performance, 1e-9)
	assert.InDelta(t, 0.5, got[1].Normalized.Price, 1e-9)
	assert.InDelta(t, 0.5, got[1].Normalized.Context, 1e-9)

	_, err = svc.Compare(context.Background(), []string{"model-a"})
	assert.ErrorIs(t, err, ErrInvalidModelCount)
}

func TestScenario_CompareFive(t *testing.T) {
	svc := newScenarioService(t,
		store.ModelRecord{ID: "4", Slug: "model-d", Name: "Model D", Provider: "z", Modalities: []string{"text"}},
		store.ModelRecord{ID: "5", Slug: "model-e", Name: "Model E", Provider: "z", Modalities: []string{"text"}},
	)
	ctx := context.Background()

	want := []string{"model-e", "model-c", "model-a", "model-d", "model-b"}
	got, err := svc.Compare(ctx, want)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, slug := range want {
		assert.Equal(t, slug, got[i].Slug)
	}
}

func TestScenario_Similar(t *testing.T) {
	svc := newScenarioService(t)
	got, err := svc.Similar(context.Background(), "model-a", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "model-b", got[0].Slug)
	assert.Equal(t, "model-c", got[1].Slug)
	assert.Greater(t, got[0].SimilarityScore, got[1].SimilarityScore)
}

func TestScenario_Leaderboard(t *testing.T) {
	svc := newScenarioService(t)
	got, err := svc.Leaderboard(context.Background(), "mmlu", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "model-a", got[0].Slug)
	assert.Equal(t, "model-b", got[1].Slug)
}
