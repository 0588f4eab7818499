// Package billing holds the static subscription plans served by the pricing
// endpoints. Prices are exact decimals in US dollars.
package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is the currency every plan is priced in.
const Currency = "USD"

// Plan is one subscription tier.
type Plan struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Credits     int64           `json:"credits"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	PriceID     string          `json:"priceId,omitempty"`
	Features    []string        `json:"features"`
}

// CostPerThousand is the price of 1000 credits, rounded to cents.
func (p Plan) CostPerThousand() decimal.Decimal {
	if p.Credits <= 0 || p.Price.IsZero() {
		return decimal.Zero
	}
	return p.Price.Mul(decimal.NewFromInt(1000)).Div(decimal.NewFromInt(p.Credits)).Round(2)
}

var plans = []Plan{
	{
		ID:          "free",
		Name:        "Free",
		Description: "Perfect for testing and exploration",
		Credits:     1000,
		Price:       decimal.Zero,
		Features: []string{
			"1,000 API credits/month",
			"Basic model data access",
			"Community support",
		},
	},
	{
		ID:          "starter",
		Name:        "Starter",
		Description: "For hobby projects and small apps",
		Credits:     10000,
		Price:       decimal.RequireFromString("29.00"),
		PriceID:     "price_starter",
		Features: []string{
			"10,000 API credits/month",
			"Full model data access",
			"Higher rate limits",
			"Email support",
		},
	},
	{
		ID:          "pro",
		Name:        "Pro",
		Description: "For production applications",
		Credits:     100000,
		Price:       decimal.RequireFromString("99.00"),
		PriceID:     "price_pro",
		Features: []string{
			"100,000 API credits/month",
			"Full model data access",
			"Highest rate limits",
			"Priority support",
			"Usage analytics",
		},
	},
	{
		ID:          "enterprise",
		Name:        "Enterprise",
		Description: "Custom solutions for large scale",
		Credits:     1000000,
		Price:       decimal.RequireFromString("499.00"),
		PriceID:     "price_enterprise",
		Features: []string{
			"1,000,000 API credits/month",
			"Full model data access",
			"Dedicated rate limits",
			"24/7 support",
			"Custom integrations",
			"SLA guarantee",
		},
	},
}

// Plans returns every plan, cheapest first. The slice is a copy.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	for i, p := range plans {
		p.Currency = Currency
		p.Features = append([]string(nil), p.Features...)
		out[i] = p
	}
	return out
}

// Lookup finds a plan by id, case-insensitively.
func Lookup(id string) (Plan, bool) {
	for _, p := range Plans() {
		if strings.EqualFold(p.ID, id) {
			return p, true
		}
	}
	return Plan{}, false
}
