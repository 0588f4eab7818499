package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/modelhub/internal/store"
)

func TestParseSlugs(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a,b", []string{"a", "b"}},
		{" b , a ", []string{"b", "a"}},
		{"a,,b,", []string{"a", "b"}},
		{"a,b,a", []string{"a", "b"}},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ParseSlugs(tc.raw), tc.raw)
	}
}

func TestCheckCompareCount(t *testing.T) {
	tests := []struct {
		n       int
		wantErr bool
	}{
		{0, true}, {1, true}, {2, false}, {3, false}, {5, false}, {6, true},
	}
	for _, tc := range tests {
		slugs := make([]string, tc.n)
		err := CheckCompareCount(slugs)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidModelCount, "n=%d", tc.n)
		} else {
			assert.NoError(t, err, "n=%d", tc.n)
		}
	}
}

func TestCompare_PreservesRequestedOrder(t *testing.T) {
	models := rankingFixture()
	got, err := Compare([]string{"c", "a"}, models)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Slug)
	assert.Equal(t, "a", got[1].Slug)

	// Normalized over exactly {c, a}.
	assert.InDelta(t, 0.0, got[0].Normalized.Performance, 1e-12)
	assert.InDelta(t, 1.0, got[1].Normalized.Performance, 1e-12)
	assert.InDelta(t, 0.0, got[0].Normalized.Price, 1e-12)
	assert.InDelta(t, 1.0, got[1].Normalized.Price, 1e-12)
	assert.InDelta(t, 1.0, got[0].Normalized.Context, 1e-12)
	assert.InDelta(t, 0.0, got[1].Normalized.Context, 1e-12)
}

func TestCompare_MissingSlugs(t *testing.T) {
	_, err := Compare([]string{"a", "ghost", "phantom"}, rankingFixture())
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []string{"ghost", "phantom"}, nf.Slugs)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "ghost")
}

func TestCompare_CountCheckedFirst(t *testing.T) {
	_, err := Compare([]string{"a"}, nil)
	assert.ErrorIs(t, err, ErrInvalidModelCount)

	_, err = Compare([]string{"a", "b", "c", "d", "e", "f"}, nil)
	assert.ErrorIs(t, err, ErrInvalidModelCount)
}

func TestCompare_EqualValues(t *testing.T) {
	models := []store.ModelRecord{
		{Slug: "p", BenchmarkScores: store.BenchmarkScores{"mmlu": 50}},
		{Slug: "q", BenchmarkScores: store.BenchmarkScores{"mmlu": 50}},
	}
	got, err := Compare([]string{"p", "q"}, models)
	require.NoError(t, err)
	for _, e := range got {
		assert.Equal(t, 0.5, e.Normalized.Performance)
		assert.Equal(t, 0.0, e.Normalized.Price)
		assert.Equal(t, 0.0, e.Normalized.Context)
	}
}

func TestCompare_FiveModels(t *testing.T) {
	models := append(rankingFixture(),
		store.ModelRecord{Slug: "d", Name: "D", Provider: "z", ContextWindow: intp(4000)},
		store.ModelRecord{Slug: "e", Name: "E", Provider: "z"},
	)
	want := []string{"e", "b", "d", "a", "c"}
	got, err := Compare(want, models)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, slug := range want {
		assert.Equal(t, slug, got[i].Slug)
	}
	assert.InDelta(t, 1.0, got[2].Normalized.Context, 1e-12, "largest window of the five")
}
