package apikey

import (
	"fmt"
	"time"
)

// Plan is the tier an API key is issued under.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// paidKeyLifetime is how long keys on paid plans stay valid.
const paidKeyLifetime = 30 * 24 * time.Hour

var dailyRequests = map[Plan]int{
	PlanFree:       100,
	PlanPro:        10000,
	PlanEnterprise: 100000,
}

// ParsePlan validates a plan name. Empty selects free.
func ParsePlan(s string) (Plan, error) {
	if s == "" {
		return PlanFree, nil
	}
	p := Plan(s)
	if _, ok := dailyRequests[p]; !ok {
		return "", fmt.Errorf("unknown plan %q (want free, pro or enterprise)", s)
	}
	return p, nil
}

// DailyLimit is the number of requests the plan allows per day. Unknown
// plans get the free allowance.
func (p Plan) DailyLimit() int {
	if n, ok := dailyRequests[p]; ok {
		return n
	}
	return dailyRequests[PlanFree]
}

// KeyLifetime is how long a freshly issued key is valid; zero means it
// never expires.
func (p Plan) KeyLifetime() time.Duration {
	if p == PlanFree || p == "" {
		return 0
	}
	return paidKeyLifetime
}
