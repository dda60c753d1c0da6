// AngelaMos | 2026
// entity.go

package mailbox

import (
	"errors"
	"time"
)

// ErrNoMailbox is returned by Select when the user has no active mailbox
// with headroom left today.
var ErrNoMailbox = errors.New("no sendable mailbox")

type Status string

const (
	StatusActive            Status = "active"
	StatusReconnectRequired Status = "reconnect_required"
	StatusDisabled          Status = "disabled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusReconnectRequired, StatusDisabled:
		return true
	}
	return false
}

// Mailbox is a connected sending account. Tokens are stored sealed and are
// only opened by Service.Credentials right before a send.
type Mailbox struct {
	ID              string     `db:"id"`
	UserID          string     `db:"user_id"`
	Email           string     `db:"email"`
	DisplayName     string     `db:"display_name"`
	Provider        string     `db:"provider"`
	AccessTokenEnc  string     `db:"access_token_enc"`
	RefreshTokenEnc string     `db:"refresh_token_enc"`
	TokenExpiresAt  *time.Time `db:"token_expires_at"`
	DailyLimit      int        `db:"daily_limit"`
	SentToday       int        `db:"sent_today"`
	SentResetOn     time.Time  `db:"sent_reset_on"`
	Status          Status     `db:"status"`
	LastError       string     `db:"last_error"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func (m *Mailbox) Headroom() int {
	if left := m.DailyLimit - m.SentToday; left > 0 {
		return left
	}
	return 0
}

func (m *Mailbox) CanSend() bool {
	return m.Status == StatusActive && m.Headroom() > 0
}
