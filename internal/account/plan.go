// AngelaMos | 2026
// plan.go

package account

import (
	"fmt"

	"github.com/carterperez-dev/creator-outreach/internal/core"
)

// Unlimited is returned by Remaining for the unlimited tier.
const Unlimited = -1

const (
	PlanFree       = "free"
	PlanBasic      = "basic"
	PlanPro        = "pro"
	PlanGrowth     = "growth"
	PlanScale      = "scale"
	PlanEnterprise = "enterprise"
)

var dailyQuotas = map[string]int{
	PlanFree:       10,
	PlanBasic:      50,
	PlanPro:        150,
	PlanGrowth:     300,
	PlanScale:      750,
	PlanEnterprise: 0,
}

func IsUnlimitedPlan(plan string) bool {
	return plan == PlanEnterprise
}

// DailyQuotaFor returns the email_quota_daily a plan grants. The unlimited
// tier stores 0 and is never checked against it.
func DailyQuotaFor(plan string) (int, error) {
	q, ok := dailyQuotas[plan]
	if !ok {
		return 0, fmt.Errorf("plan %q: %w", plan, core.ErrInvalidInput)
	}
	return q, nil
}
