package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/modelhub/internal/store"
)

func TestSimilarityWeightsSumToOne(t *testing.T) {
	sum := WeightProviderMatch + WeightModalityOverlap + WeightBenchmarkCloser + WeightPriceCloser
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"both empty", nil, nil, 0},
		{"one empty", []string{"text"}, nil, 0},
		{"identical", []string{"text", "image"}, []string{"image", "text"}, 1},
		{"disjoint", []string{"text"}, []string{"audio"}, 0},
		{"half", []string{"text", "image"}, []string{"text"}, 0.5},
		{"third", []string{"text", "image"}, []string{"text", "audio"}, 1.0 / 3},
		{"duplicates ignored", []string{"text", "text"}, []string{"text"}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Jaccard(tc.a, tc.b)
			assert.InDelta(t, tc.want, got, 1e-12)
			assert.InDelta(t, got, Jaccard(tc.b, tc.a), 1e-12, "symmetric")
		})
	}
}

func TestCloseness(t *testing.T) {
	assert.Equal(t, 0.0, Closeness(nil, f64(1), 0, 10))
	assert.Equal(t, 0.0, Closeness(f64(1), nil, 0, 10))
	assert.Equal(t, 0.5, Closeness(f64(3), f64(3), 3, 3))
	assert.Equal(t, 1.0, Closeness(f64(5), f64(5), 0, 10))
	assert.InDelta(t, 0.75, Closeness(f64(5), f64(7.5), 0, 10), 1e-12)
	assert.Equal(t, 0.0, Closeness(f64(0), f64(10), 0, 10))
}

func TestInSimilarityPool(t *testing.T) {
	anchor := store.ModelRecord{Slug: "a", Provider: "x", Modalities: []string{"text"}}
	assert.False(t, InSimilarityPool(anchor, anchor), "anchor excluded")
	assert.True(t, InSimilarityPool(anchor, store.ModelRecord{Slug: "b", Provider: "x"}))
	assert.True(t, InSimilarityPool(anchor, store.ModelRecord{Slug: "c", Provider: "y", Modalities: []string{"image", "text"}}))
	assert.False(t, InSimilarityPool(anchor, store.ModelRecord{Slug: "d", Provider: "y", Modalities: []string{"audio"}}))
}

func TestScoreSimilar(t *testing.T) {
	models := rankingFixture()
	for i := range models {
		models[i].Modalities = []string{"text"}
	}
	anchor := models[0]

	got := ScoreSimilar(anchor, models, 5)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Slug)
	assert.Equal(t, "c", got[1].Slug)
	assert.InDelta(t, 0.75, got[0].SimilarityScore, 1e-12)
	assert.InDelta(t, 0.30, got[1].SimilarityScore, 1e-12)

	for _, e := range got {
		assert.GreaterOrEqual(t, e.SimilarityScore, 0.0)
		assert.LessOrEqual(t, e.SimilarityScore, 1.0)
		assert.NotEqual(t, anchor.Slug, e.Slug)
	}

	limited := ScoreSimilar(anchor, models, 1)
	require.Len(t, limited, 1)
	assert.Equal(t, "b", limited[0].Slug)
}

func TestScoreSimilar_EmptyPool(t *testing.T) {
	anchor := store.ModelRecord{Slug: "lonely", Provider: "solo", Modalities: []string{"video"}}
	others := []store.ModelRecord{{Slug: "other", Provider: "else", Modalities: []string{"text"}}}

	got := ScoreSimilar(anchor, others, 5)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = ScoreSimilar(anchor, nil, 5)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestParseSimilarLimit(t *testing.T) {
	n, err := ParseSimilarLimit("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSimilarLimit, n)

	n, err = ParseSimilarLimit("10")
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	for _, bad := range []string{"0", "11", "abc", "-1"} {
		_, err := ParseSimilarLimit(bad)
		assert.Error(t, err, bad)
	}
}
