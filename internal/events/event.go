// AngelaMos | 2026
// event.go

package events

import (
	"context"
	"sync"
	"time"
)

const (
	TypeEnqueued  = "outreach.enqueued"
	TypeSent      = "outreach.sent"
	TypeFailed    = "outreach.failed"
	TypeReplied   = "outreach.replied"
	TypeReconnect = "mailbox.reconnect_required"
)

type Event struct {
	Type       string         `json:"type"`
	UserID     string         `json:"user_id"`
	ItemID     string         `json:"item_id,omitempty"`
	CreatorID  string         `json:"creator_id,omitempty"`
	CampaignID string         `json:"campaign_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Publisher fans queue lifecycle events out to downstream consumers.
// Implementations never fail the caller's operation: a publish error is
// returned for logging only.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// MemoryPublisher keeps published events in order. It stands in for the
// broker in tests and in local runs without AMQP.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *MemoryPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// OfType returns the recorded events whose Type matches.
func (p *MemoryPublisher) OfType(eventType string) []Event {
	var out []Event
	for _, e := range p.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
