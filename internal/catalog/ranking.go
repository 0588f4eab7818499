package catalog

import (
	"fmt"
	"sort"

	"github.com/jordanhubbard/modelhub/internal/store"
)

// Composite weights. They sum to 1.
const (
	WeightPopularity  = 0.35
	WeightPerformance = 0.35
	WeightPrice       = 0.20
	WeightContext     = 0.10
)

// SortField names a score a ranking can be ordered by.
type SortField string

const (
	SortPopularity  SortField = "popularity"
	SortPerformance SortField = "performance"
	SortPrice       SortField = "price"
	SortContext     SortField = "context"
	SortComposite   SortField = "composite"
)

// ParseSortField validates a sortBy parameter. Empty selects composite.
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(s); f {
	case "":
		return SortComposite, nil
	case SortPopularity, SortPerformance, SortPrice, SortContext, SortComposite:
		return f, nil
	}
	return "", &ValidationError{
		Field:   "sortBy",
		Message: fmt.Sprintf("sortBy must be one of popularity, performance, price, context, composite; got %q", s),
	}
}

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// ParseOrder validates an order parameter. Empty selects desc.
func ParseOrder(s string) (Order, error) {
	switch o := Order(s); o {
	case "":
		return Desc, nil
	case Asc, Desc:
		return o, nil
	}
	return "", &ValidationError{Field: "order", Message: fmt.Sprintf("order must be asc or desc; got %q", s)}
}

// Scores holds the normalized components of one ranked model.
type Scores struct {
	Popularity  float64 `json:"popularity"`
	Performance float64 `json:"performance"`
	Price       float64 `json:"price"`
	Context     float64 `json:"context"`
	Composite   float64 `json:"composite"`
}

// Get returns the score named by f.
func (s Scores) Get(f SortField) float64 {
	switch f {
	case SortPopularity:
		return s.Popularity
	case SortPerformance:
		return s.Performance
	case SortPrice:
		return s.Price
	case SortContext:
		return s.Context
	default:
		return s.Composite
	}
}

// Scored pairs a record with its ranking scores.
type Scored struct {
	Model  store.ModelRecord
	Scores Scores
}

// ScoreRanking normalizes every feature column over models and computes the
// composite. Results are in input order.
func ScoreRanking(models []store.ModelRecord) []Scored {
	fs := extractAll(models)
	popularity := Normalize(column(fs, func(f Features) *float64 { return f.Popularity }), false)
	performance := Normalize(column(fs, func(f Features) *float64 { return f.Performance }), false)
	price := Normalize(column(fs, func(f Features) *float64 { return f.Price }), true)
	window := Normalize(column(fs, func(f Features) *float64 { return f.Context }), false)

	out := make([]Scored, len(models))
	for i, m := range models {
		out[i] = Scored{
			Model: m,
			Scores: Scores{
				Popularity:  popularity[i],
				Performance: performance[i],
				Price:       price[i],
				Context:     window[i],
				Composite: WeightPopularity*popularity[i] +
					WeightPerformance*performance[i] +
					WeightPrice*price[i] +
					WeightContext*window[i],
			},
		}
	}
	return out
}

// SortScored orders scored in place by the chosen field. Equal scores keep
// their input order in both directions.
func SortScored(scored []Scored, by SortField, order Order) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i].Scores.Get(by), scored[j].Scores.Get(by)
		if order == Asc {
			return a < b
		}
		return a > b
	})
}

// Rank scores, sorts and paginates models in one step.
func Rank(models []store.ModelRecord, by SortField, order Order, offset, limit int) []RankedModel {
	scored := ScoreRanking(models)
	SortScored(scored, by, order)
	return AssembleRanking(scored, offset, limit)
}
