// AngelaMos | 2026
// dto.go

package mailbox

import (
	"time"
)

type ConnectRequest struct {
	Email          string     `json:"email"            validate:"required,email,max=255"`
	DisplayName    string     `json:"display_name"     validate:"omitempty,max=100"`
	Provider       string     `json:"provider"         validate:"required,oneof=gmail smtp"`
	AccessToken    string     `json:"access_token"     validate:"required,max=4096"`
	RefreshToken   string     `json:"refresh_token"    validate:"omitempty,max=4096"`
	TokenExpiresAt *time.Time `json:"token_expires_at"`
	DailyLimit     int        `json:"daily_limit"      validate:"omitempty,min=1,max=2000"`
}

type UpdateRequest struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=100"`
	DailyLimit  *int    `json:"daily_limit,omitempty"  validate:"omitempty,min=1,max=2000"`
	Status      *Status `json:"status,omitempty"       validate:"omitempty,oneof=active disabled"`
}

type Response struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	DisplayName    string     `json:"display_name"`
	Provider       string     `json:"provider"`
	Status         Status     `json:"status"`
	DailyLimit     int        `json:"daily_limit"`
	SentToday      int        `json:"sent_today"`
	Remaining      int        `json:"remaining"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func ToResponse(m *Mailbox) Response {
	return Response{
		ID:             m.ID,
		Email:          m.Email,
		DisplayName:    m.DisplayName,
		Provider:       m.Provider,
		Status:         m.Status,
		DailyLimit:     m.DailyLimit,
		SentToday:      m.SentToday,
		Remaining:      m.Headroom(),
		TokenExpiresAt: m.TokenExpiresAt,
		LastError:      m.LastError,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func ToResponseList(mailboxes []Mailbox) []Response {
	out := make([]Response, 0, len(mailboxes))
	for i := range mailboxes {
		out = append(out, ToResponse(&mailboxes[i]))
	}
	return out
}
