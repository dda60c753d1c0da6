// AngelaMos | 2026
// dto.go

package account

import (
	"time"
)

type UpdateAccountRequest struct {
	Name              *string `json:"name,omitempty"                validate:"omitempty,min=1,max=100"`
	BusinessHoursOnly *bool   `json:"business_hours_only,omitempty"`
	Timezone          *string `json:"timezone,omitempty"            validate:"omitempty,timezone"`
}

type UpdatePlanRequest struct {
	Plan string `json:"plan" validate:"required,oneof=free basic pro growth scale enterprise"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type QuotaResponse struct {
	Plan       string `json:"plan"`
	DailyLimit int    `json:"daily_limit"`
	UsedToday  int    `json:"used_today"`
	UsedMonth  int    `json:"used_month"`
	Remaining  int    `json:"remaining"`
	Unlimited  bool   `json:"unlimited"`
}

type AccountResponse struct {
	ID                string        `json:"id"`
	Email             string        `json:"email"`
	Name              string        `json:"name"`
	Role              string        `json:"role"`
	BusinessHoursOnly bool          `json:"business_hours_only"`
	Timezone          string        `json:"timezone"`
	Quota             QuotaResponse `json:"quota"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

type ListAccountsParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
	Plan     string `json:"plan"`
}

func (p *ListAccountsParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListAccountsParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToQuotaResponse(a *Account) QuotaResponse {
	return QuotaResponse{
		Plan:       a.Plan,
		DailyLimit: a.EmailQuotaDaily,
		UsedToday:  a.EmailUsedToday,
		UsedMonth:  a.EmailUsedMonth,
		Remaining:  a.Remaining(),
		Unlimited:  a.IsUnlimited(),
	}
}

func ToAccountResponse(a *Account) AccountResponse {
	return AccountResponse{
		ID:                a.ID,
		Email:             a.Email,
		Name:              a.Name,
		Role:              a.Role,
		BusinessHoursOnly: a.BusinessHoursOnly,
		Timezone:          a.Timezone,
		Quota:             ToQuotaResponse(a),
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func ToAccountResponseList(accounts []Account) []AccountResponse {
	responses := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		responses = append(responses, ToAccountResponse(&accounts[i]))
	}
	return responses
}
