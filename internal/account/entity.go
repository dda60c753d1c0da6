// AngelaMos | 2026
// entity.go

package account

import (
	"time"
)

type Account struct {
	ID                string     `db:"id"`
	Email             string     `db:"email"`
	PasswordHash      string     `db:"password_hash"`
	Name              string     `db:"name"`
	Role              string     `db:"role"`
	Plan              string     `db:"plan"`
	EmailQuotaDaily   int        `db:"email_quota_daily"`
	EmailUsedToday    int        `db:"email_used_today"`
	EmailUsedMonth    int        `db:"email_used_month"`
	BusinessHoursOnly bool       `db:"business_hours_only"`
	Timezone          string     `db:"timezone"`
	QuotaResetOn      time.Time  `db:"quota_reset_on"`
	MonthResetOn      time.Time  `db:"month_reset_on"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
	DeletedAt         *time.Time `db:"deleted_at"`
}

func (a *Account) IsUnlimited() bool {
	return IsUnlimitedPlan(a.Plan)
}

// Remaining is the number of sends the account may still enqueue today,
// or Unlimited for the unlimited tier. It never goes negative even if a
// plan downgrade left used above quota.
func (a *Account) Remaining() int {
	if a.IsUnlimited() {
		return Unlimited
	}
	if left := a.EmailQuotaDaily - a.EmailUsedToday; left > 0 {
		return left
	}
	return 0
}

// Location falls back to UTC for unset or unknown zones.
func (a *Account) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
