package store

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
)

// BenchmarkScores maps a benchmark name to its score. The key set is open:
// any benchmark name is accepted and no name carries special weight.
type BenchmarkScores map[string]float64

// UnmarshalJSON keeps numeric entries and silently drops anything else, so a
// stray string or null in a stored document never reaches the scorers.
func (b *BenchmarkScores) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*b = nil
		return nil
	}
	out := make(BenchmarkScores, len(raw))
	for k, v := range raw {
		if f, ok := v.(float64); ok {
			out[k] = f
		}
	}
	*b = out
	return nil
}

// Lookup returns the score for name, matching keys case-insensitively.
// An exact match wins; otherwise the first matching key in byte order does.
func (b BenchmarkScores) Lookup(name string) (float64, bool) {
	if v, ok := b[name]; ok {
		return v, true
	}
	for _, k := range slices.Sorted(maps.Keys(b)) {
		if strings.EqualFold(k, name) {
			return b[k], true
		}
	}
	return 0, false
}

// Pricing is the canonical price shape, in currency per million tokens.
// A nil price means the value is unknown.
type Pricing struct {
	InputPrice  *float64 `json:"inputPrice,omitempty"`
	OutputPrice *float64 `json:"outputPrice,omitempty"`
	Unit        string   `json:"unit,omitempty"`
}

// UnmarshalJSON is the ingestion boundary for pricing documents. Older
// records store prices under "input"/"output"; those are mapped onto the
// canonical fields. Canonical keys win when both spellings are present and
// non-numeric values are ignored.
func (p *Pricing) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Pricing{
		InputPrice:  firstNumber(raw, "inputPrice", "input"),
		OutputPrice: firstNumber(raw, "outputPrice", "output"),
	}
	if u, ok := raw["unit"].(string); ok {
		p.Unit = u
	}
	return nil
}

// UnmarshalYAML applies the same legacy-key mapping to seed files.
func (p *Pricing) UnmarshalYAML(unmarshal func(any) error) error {
	var raw map[string]any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	for k, v := range raw {
		if i, ok := v.(int); ok {
			raw[k] = float64(i)
		}
	}
	*p = Pricing{
		InputPrice:  firstNumber(raw, "inputPrice", "input"),
		OutputPrice: firstNumber(raw, "outputPrice", "output"),
	}
	if u, ok := raw["unit"].(string); ok {
		p.Unit = u
	}
	return nil
}

// IsEmpty reports whether no price is known.
func (p *Pricing) IsEmpty() bool {
	return p == nil || (p.InputPrice == nil && p.OutputPrice == nil)
}

func firstNumber(raw map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		if f, ok := raw[k].(float64); ok {
			return &f
		}
	}
	return nil
}
