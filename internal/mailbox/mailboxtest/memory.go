// AngelaMos | 2026
// memory.go

package mailboxtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/mailbox"
)

// MemoryRepository keeps mailboxes in a map. Conditional updates hold the
// lock for the whole check-and-write, like the single-statement SQL.
type MemoryRepository struct {
	mu    sync.Mutex
	boxes map[string]*mailbox.Mailbox
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{boxes: make(map[string]*mailbox.Mailbox), now: time.Now}
}

func (r *MemoryRepository) Create(_ context.Context, m *mailbox.Mailbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.boxes {
		if b.UserID == m.UserID && strings.EqualFold(b.Email, m.Email) {
			return fmt.Errorf("create mailbox: %w", core.ErrDuplicateKey)
		}
	}

	now := r.now()
	m.CreatedAt, m.UpdatedAt = now, now
	if m.SentResetOn.IsZero() {
		m.SentResetOn = startOfDay(now)
	}
	cp := *m
	r.boxes[m.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*mailbox.Mailbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.boxes[id]
	if !ok {
		return nil, fmt.Errorf("get mailbox: %w", core.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, userID, email string) (*mailbox.Mailbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.boxes {
		if b.UserID == userID && strings.EqualFold(b.Email, email) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get mailbox by email: %w", core.ErrNotFound)
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID string) ([]mailbox.Mailbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []mailbox.Mailbox
	for _, b := range r.boxes {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) Update(_ context.Context, m *mailbox.Mailbox) error {
	return r.mutate("update mailbox", m.ID, func(b *mailbox.Mailbox) {
		b.DisplayName = m.DisplayName
		b.DailyLimit = m.DailyLimit
		b.Status = m.Status
	})
}

func (r *MemoryRepository) UpdateTokens(_ context.Context, m *mailbox.Mailbox) error {
	err := r.mutate("update mailbox tokens", m.ID, func(b *mailbox.Mailbox) {
		b.AccessTokenEnc = m.AccessTokenEnc
		b.RefreshTokenEnc = m.RefreshTokenEnc
		b.TokenExpiresAt = m.TokenExpiresAt
		b.DisplayName = m.DisplayName
		b.Status = mailbox.StatusActive
		b.LastError = ""
	})
	if err == nil {
		m.Status = mailbox.StatusActive
		m.LastError = ""
	}
	return err
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.boxes[id]; !ok {
		return fmt.Errorf("delete mailbox: %w", core.ErrNotFound)
	}
	delete(r.boxes, id)
	return nil
}

func (r *MemoryRepository) SelectForSend(_ context.Context, userID string) (*mailbox.Mailbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *mailbox.Mailbox
	for _, b := range r.boxes {
		if b.UserID != userID || !b.CanSend() {
			continue
		}
		if best == nil || b.Headroom() > best.Headroom() ||
			(b.Headroom() == best.Headroom() && b.CreatedAt.Before(best.CreatedAt)) {
			best = b
		}
	}
	if best == nil {
		return nil, fmt.Errorf("select mailbox: %w", core.ErrNotFound)
	}
	cp := *best
	return &cp, nil
}

func (r *MemoryRepository) ReserveSend(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.boxes[id]
	if !ok || !b.CanSend() {
		return false, nil
	}
	b.SentToday++
	return true, nil
}

func (r *MemoryRepository) ReleaseSend(_ context.Context, id string) error {
	return r.mutate("release send", id, func(b *mailbox.Mailbox) {
		if b.SentToday > 0 {
			b.SentToday--
		}
	})
}

func (r *MemoryRepository) MarkReconnectRequired(_ context.Context, id, reason string) error {
	return r.mutate("mark reconnect required", id, func(b *mailbox.Mailbox) {
		b.Status = mailbox.StatusReconnectRequired
		b.LastError = reason
	})
}

func (r *MemoryRepository) ResetDailyBatch(_ context.Context, today time.Time, limit int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, b := range r.boxes {
		if n >= int64(limit) {
			break
		}
		if b.SentResetOn.Before(today) {
			b.SentToday = 0
			b.SentResetOn = today
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) mutate(op, id string, fn func(*mailbox.Mailbox)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.boxes[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	fn(b)
	b.UpdatedAt = r.now()
	return nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var _ mailbox.Repository = (*MemoryRepository)(nil)
