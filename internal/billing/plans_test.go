package billing

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlansOrderedByPrice(t *testing.T) {
	ps := Plans()
	require.Len(t, ps, 4)
	for i := 1; i < len(ps); i++ {
		assert.True(t, ps[i].Price.GreaterThan(ps[i-1].Price), "%s should cost more than %s", ps[i].ID, ps[i-1].ID)
		assert.Greater(t, ps[i].Credits, ps[i-1].Credits)
	}
	for _, p := range ps {
		assert.Equal(t, Currency, p.Currency)
		assert.NotEmpty(t, p.Features)
	}
}

func TestPlansReturnsCopy(t *testing.T) {
	ps := Plans()
	ps[0].Features[0] = "mutated"
	ps[1].Price = decimal.NewFromInt(1)

	again := Plans()
	assert.NotEqual(t, "mutated", again[0].Features[0])
	assert.True(t, again[1].Price.Equal(decimal.RequireFromString("29")))
}

func TestLookup(t *testing.T) {
	p, ok := Lookup("PRO")
	require.True(t, ok)
	assert.Equal(t, "pro", p.ID)
	assert.Equal(t, int64(100000), p.Credits)

	_, ok = Lookup("platinum")
	assert.False(t, ok)
}

func TestCostPerThousand(t *testing.T) {
	free, _ := Lookup("free")
	assert.True(t, free.CostPerThousand().IsZero())

	starter, _ := Lookup("starter")
	assert.Equal(t, "2.9", starter.CostPerThousand().String())

	ent, _ := Lookup("enterprise")
	assert.Equal(t, "0.5", ent.CostPerThousand().String())
}

func TestPlanJSONKeepsExactPrice(t *testing.T) {
	p, _ := Lookup("starter")
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "29", doc["price"])
	assert.Equal(t, "USD", doc["currency"])
	assert.Equal(t, "price_starter", doc["priceId"])
}
