// AngelaMos | 2026
// entity.go

package queue

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusReplied   Status = "replied"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusSent, StatusFailed, StatusReplied:
		return true
	}
	return false
}

// Active statuses still expect a send. At most one active item may exist
// per (user, creator email).
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusFailed
}

// itemNamespace seeds the deterministic item ids.
var itemNamespace = uuid.MustParse("6c1f3a52-8d0e-4b7e-9a43-2f5d0c9e7b11")

// ItemID derives the queue row id from (user, creator), so a second
// enqueue of the same pair collides instead of duplicating.
func ItemID(userID, creatorID string) string {
	return uuid.NewSHA1(itemNamespace, []byte(userID+"|"+creatorID)).String()
}

type Item struct {
	ID                string     `db:"id"                  json:"id"`
	UserID            string     `db:"user_id"             json:"user_id"`
	CreatorID         string     `db:"creator_id"          json:"creator_id"`
	CreatorEmail      string     `db:"creator_email"       json:"creator_email"`
	CampaignID        string     `db:"campaign_id"         json:"campaign_id,omitempty"`
	Status            Status     `db:"status"              json:"status"`
	ScheduledSendTime time.Time  `db:"scheduled_send_time" json:"scheduled_send_time"`
	RetryCount        int        `db:"retry_count"         json:"retry_count"`
	LastError         string     `db:"last_error"          json:"last_error,omitempty"`
	NextRetryAt       *time.Time `db:"next_retry_at"       json:"next_retry_at,omitempty"`
	LeaseOwner        string     `db:"lease_owner"         json:"-"`
	LeaseExpiresAt    *time.Time `db:"lease_expires_at"    json:"-"`
	MailboxID         string     `db:"mailbox_id"          json:"mailbox_id,omitempty"`
	ProviderMessageID string     `db:"provider_message_id" json:"provider_message_id,omitempty"`
	ProviderThreadID  string     `db:"provider_thread_id"  json:"provider_thread_id,omitempty"`
	SentAt            *time.Time `db:"sent_at"             json:"sent_at,omitempty"`
	RepliedAt         *time.Time `db:"replied_at"          json:"replied_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at"          json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"          json:"updated_at"`
}

// Due reports whether a worker may claim the item at now.
func (it *Item) Due(now time.Time, maxRetries int) bool {
	if it.LeaseExpiresAt != nil && !it.LeaseExpiresAt.Before(now) {
		return false
	}
	switch it.Status {
	case StatusScheduled:
		return !it.ScheduledSendTime.After(now)
	case StatusFailed:
		return it.NextRetryAt != nil && !it.NextRetryAt.After(now) && it.RetryCount < maxRetries
	}
	return false
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SentInfo is what a successful delivery records on the item.
type SentInfo struct {
	MailboxID         string
	ProviderMessageID string
	ProviderThreadID  string
	SentAt            time.Time
}

// ReplyRef identifies a replied item by id or by provider thread.
type ReplyRef struct {
	ItemID   string `json:"queue_item_id"`
	ThreadID string `json:"thread_id"`
}

type Stats struct {
	Scheduled int `json:"scheduled"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Replied   int `json:"replied"`
	Total     int `json:"total"`
}

// Add counts n items in status.
func (s *Stats) Add(status Status, n int) {
	switch status {
	case StatusScheduled:
		s.Scheduled += n
	case StatusSent:
		s.Sent += n
	case StatusFailed:
		s.Failed += n
	case StatusReplied:
		s.Replied += n
	}
	s.Total += n
}
