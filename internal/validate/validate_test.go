package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/modelhub/internal/store"
)

const validModel = `{
	"slug": "gpt-4o",
	"name": "GPT-4o",
	"provider": "openai",
	"releaseDate": "2024-05-13T00:00:00Z",
	"contextWindow": 128000,
	"modalities": ["text", "image"],
	"benchmarkScores": {"mmlu": 88.7, "humaneval": 90.2},
	"pricing": {"inputPrice": 5, "outputPrice": 15, "unit": "1M tokens"},
	"tags": ["coding", "multimodal"],
	"links": {"website": "https://openai.com/gpt-4o"},
	"changelog": [{"date": "2024-05-13T00:00:00Z", "title": "Launch"}]
}`

func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	var ve *Error
	require.True(t, errors.As(err, &ve), "expected *Error, got %T: %v", err, err)
	return ve.Errors
}

func TestModel_Valid(t *testing.T) {
	m, err := Model([]byte(validModel))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", m.Slug)
	require.NotNil(t, m.ContextWindow)
	assert.Equal(t, 128000, *m.ContextWindow)
	require.NotNil(t, m.Pricing)
	assert.Equal(t, 5.0, *m.Pricing.InputPrice)
	require.NotNil(t, m.ReleaseDate)
	assert.True(t, m.ReleaseDate.Equal(time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)))
	assert.Len(t, m.Changelog, 1)
}

func TestModel_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad slug", `{"slug":"GPT 4","name":"x","provider":"y"}`, "slug"},
		{"negative price", `{"slug":"a","name":"x","provider":"y","pricing":{"inputPrice":-1}}`, "pricing.inputPrice"},
		{"zero context", `{"slug":"a","name":"x","provider":"y","contextWindow":0}`, "contextWindow"},
		{"fractional context", `{"slug":"a","name":"x","provider":"y","contextWindow":1.5}`, "contextWindow"},
		{"unknown tag", `{"slug":"a","name":"x","provider":"y","tags":["chat"]}`, "tags.0"},
		{"non-numeric score", `{"slug":"a","name":"x","provider":"y","benchmarkScores":{"mmlu":"high"}}`, "benchmarkScores.mmlu"},
		{"bad date", `{"slug":"a","name":"x","provider":"y","releaseDate":"last tuesday"}`, "releaseDate"},
		{"bad url", `{"slug":"a","name":"x","provider":"y","links":{"website":"not a url"}}`, "links.website"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Model([]byte(tc.body))
			errs := fieldErrors(t, err)
			require.NotEmpty(t, errs)
			fields := make([]string, len(errs))
			for i, e := range errs {
				fields[i] = e.Field
				assert.NotEmpty(t, e.Message)
			}
			assert.Contains(t, fields, tc.field)
		})
	}
}

func TestModel_MissingRequired(t *testing.T) {
	_, err := Model([]byte(`{"slug":"a"}`))
	errs := fieldErrors(t, err)
	require.NotEmpty(t, errs)
	assert.Contains(t, err.Error(), "name")
}

func TestModel_MalformedJSON(t *testing.T) {
	_, err := Model([]byte(`{"slug":`))
	errs := fieldErrors(t, err)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "malformed JSON")
}

func TestModel_LegacyPricingKeys(t *testing.T) {
	m, err := Model([]byte(`{"slug":"a","name":"x","provider":"y","pricing":{"input":2.5,"output":10}}`))
	require.NoError(t, err)
	require.NotNil(t, m.Pricing)
	require.NotNil(t, m.Pricing.InputPrice)
	assert.Equal(t, 2.5, *m.Pricing.InputPrice)
	assert.Equal(t, 10.0, *m.Pricing.OutputPrice)
}

func TestModelValue(t *testing.T) {
	doc := map[string]any{"slug": "seeded", "name": "Seeded", "provider": "acme", "contextWindow": 4096}
	assert.NoError(t, ModelValue(doc))

	doc["slug"] = "Not Valid"
	assert.Error(t, ModelValue(doc))
}

func TestPatch(t *testing.T) {
	fields, err := Patch([]byte(`{"name":"Renamed","pricing":null}`))
	require.NoError(t, err)
	assert.Len(t, fields, 2)

	_, err = Patch([]byte(`{"slug":"other"}`))
	assert.Error(t, err, "slug is immutable")

	_, err = Patch([]byte(`{}`))
	assert.Error(t, err, "empty patch")

	_, err = Patch([]byte(`{"contextWindow":-5}`))
	assert.Error(t, err)
}

func TestApplyPatch(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := 1.0
	orig := store.ModelRecord{
		ID: "id-1", Slug: "m", Name: "Old", Provider: "p",
		Pricing:   &store.Pricing{InputPrice: &in},
		Tags:      []string{"coding"},
		CreatedAt: created,
		Metrics:   &store.MarketMetrics{Popularity: 3},
	}
	fields, err := Patch([]byte(`{"name":"New","pricing":null,"tags":["reasoning"]}`))
	require.NoError(t, err)

	got, err := ApplyPatch(orig, fields)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Nil(t, got.Pricing)
	assert.Equal(t, []string{"reasoning"}, got.Tags)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, "m", got.Slug)
	assert.Equal(t, "p", got.Provider)
	assert.True(t, got.CreatedAt.Equal(created))
	require.NotNil(t, got.Metrics)
	assert.Equal(t, 3.0, got.Metrics.Popularity)
}

func TestMetrics(t *testing.T) {
	mm, err := Metrics([]byte(`{"popularity": 12.5, "growthRate": -3, "totalViews": 100, "totalApiCalls": 7}`))
	require.NoError(t, err)
	assert.Equal(t, 12.5, mm.Popularity)
	assert.Equal(t, -3.0, mm.GrowthRate)
	assert.Equal(t, int64(100), mm.TotalViews)

	_, err = Metrics([]byte(`{"popularity": -1}`))
	assert.Error(t, err)
	_, err = Metrics([]byte(`{"views": 1}`))
	assert.Error(t, err, "unknown fields rejected")
}

func TestBulk(t *testing.T) {
	b, err := Bulk([]byte(`{"slugs":["a","b"],"updates":{"tags":["coding"]}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, b.Slugs)
	assert.Contains(t, b.Updates, "tags")

	for _, bad := range []string{
		`{"slugs":[],"updates":{"name":"x"}}`,
		`{"slugs":["a"]}`,
		`{"slugs":["a"],"updates":{"slug":"b"}}`,
		`{"slugs":["a"],"updates":{"name":"x"},"extra":1}`,
	} {
		_, err := Bulk([]byte(bad))
		assert.Error(t, err, bad)
	}
}
