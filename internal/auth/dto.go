// AngelaMos | 2026
// dto.go

package auth

import "time"

// RegisterRequest opens a free-plan account. Timezone decides where the
// account's sending window and daily quota boundary fall.
type RegisterRequest struct {
	Email             string `json:"email"               validate:"required,email,max=255"`
	Password          string `json:"password"            validate:"required,min=8,max=128"`
	Name              string `json:"name"                validate:"required,min=1,max=100"`
	Timezone          string `json:"timezone"            validate:"omitempty,timezone"`
	BusinessHoursOnly *bool  `json:"business_hours_only"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type SessionToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type AccountResponse struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	Role              string `json:"role"`
	Plan              string `json:"plan"`
	Timezone          string `json:"timezone"`
	BusinessHoursOnly bool   `json:"business_hours_only"`
}

type SessionResponse struct {
	Account AccountResponse `json:"account"`
	Token   SessionToken    `json:"token"`
}
