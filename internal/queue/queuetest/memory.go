// AngelaMos | 2026
// memory.go

package queuetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carterperez-dev/creator-outreach/internal/account"
	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/queue"
)

// MemoryStore is a queue.Store over maps that keeps the same guarantees as the
// Postgres store: one lock per user for enqueue, unique item ids, at most
// one active item per (user, email), and exclusive leases.
type MemoryStore struct {
	mu       sync.Mutex
	userMu   map[string]*sync.Mutex
	accounts map[string]*account.Account
	items    map[string]*queue.Item
}

func NewMemoryStore(accounts ...*account.Account) *MemoryStore {
	m := &MemoryStore{
		userMu:   make(map[string]*sync.Mutex),
		accounts: make(map[string]*account.Account),
		items:    make(map[string]*queue.Item),
	}
	for _, a := range accounts {
		m.PutAccount(a)
	}
	return m
}

func (m *MemoryStore) PutAccount(a *account.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.accounts[a.ID] = &cp
}

func (m *MemoryStore) Account(id string) (*account.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

func (m *MemoryStore) Items() []queue.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]queue.Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledSendTime.Before(out[j].ScheduledSendTime)
	})
	return out
}

func (m *MemoryStore) lockFor(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.userMu[userID]
	if !ok {
		l = &sync.Mutex{}
		m.userMu[userID] = l
	}
	return l
}

func (m *MemoryStore) WithinUserLock(
	ctx context.Context,
	userID string,
	fn func(tx queue.TxStore, acct *account.Account) error,
) error {
	l := m.lockFor(userID)
	l.Lock()
	defer l.Unlock()

	acct, ok := m.Account(userID)
	if !ok {
		return fmt.Errorf("lock account: %w", core.ErrNotFound)
	}

	tx := &memoryTx{store: m}
	if err := fn(tx, acct); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// memoryTx buffers writes until the callback returns without error.
type memoryTx struct {
	store   *MemoryStore
	pending []queue.Item
	charged map[string]int
}

func (t *memoryTx) Queued(
	_ context.Context,
	userID string,
	creatorIDs, emails []string,
) (map[string]struct{}, map[string]struct{}, error) {
	wantCreator := make(map[string]struct{}, len(creatorIDs))
	for _, id := range creatorIDs {
		wantCreator[id] = struct{}{}
	}
	wantEmail := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		wantEmail[e] = struct{}{}
	}

	byCreator := make(map[string]struct{})
	byEmail := make(map[string]struct{})

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, it := range t.store.items {
		if it.UserID != userID {
			continue
		}
		if _, ok := wantCreator[it.CreatorID]; ok {
			byCreator[it.CreatorID] = struct{}{}
		}
		email := queue.NormalizeEmail(it.CreatorEmail)
		if _, ok := wantEmail[email]; ok && it.Status.Active() {
			byEmail[email] = struct{}{}
		}
	}
	return byCreator, byEmail, nil
}

func (t *memoryTx) Insert(_ context.Context, items []queue.Item) ([]string, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	inserted := make([]string, 0, len(items))
	for _, it := range items {
		if t.store.conflicts(it, t.pending) {
			continue
		}
		t.pending = append(t.pending, it)
		inserted = append(inserted, it.ID)
	}
	return inserted, nil
}

func (m *MemoryStore) conflicts(it queue.Item, pending []queue.Item) bool {
	if _, ok := m.items[it.ID]; ok {
		return true
	}
	email := queue.NormalizeEmail(it.CreatorEmail)
	collides := func(other *queue.Item) bool {
		return other.ID == it.ID ||
			(other.UserID == it.UserID && other.Status.Active() &&
				queue.NormalizeEmail(other.CreatorEmail) == email)
	}
	for _, other := range m.items {
		if collides(other) {
			return true
		}
	}
	for i := range pending {
		if collides(&pending[i]) {
			return true
		}
	}
	return false
}

func (t *memoryTx) Charge(_ context.Context, userID string, amount int) error {
	if amount <= 0 {
		return nil
	}
	if t.charged == nil {
		t.charged = make(map[string]int)
	}
	t.charged[userID] += amount
	return nil
}

func (t *memoryTx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	now := time.Now()
	for _, it := range t.pending {
		it.CreatedAt = now
		it.UpdatedAt = now
		stored := it
		t.store.items[it.ID] = &stored
	}
	for userID, amount := range t.charged {
		if a, ok := t.store.accounts[userID]; ok {
			a.EmailUsedToday += amount
			a.EmailUsedMonth += amount
		}
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*queue.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("get queue item: %w", core.ErrNotFound)
	}
	cp := *it
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, params queue.ListParams) ([]queue.Item, int, error) {
	params.Normalize()

	var matched []queue.Item
	for _, it := range m.Items() {
		if it.UserID != params.UserID {
			continue
		}
		if params.Status != "" && it.Status != params.Status {
			continue
		}
		if params.CampaignID != "" && it.CampaignID != params.CampaignID {
			continue
		}
		matched = append(matched, it)
	}

	total := len(matched)
	start := min(params.Offset(), total)
	end := min(start+params.PageSize, total)
	return matched[start:end], total, nil
}

func (m *MemoryStore) Stats(_ context.Context, userID string) (queue.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats queue.Stats
	for _, it := range m.items {
		if userID == "" || it.UserID == userID {
			stats.Add(it.Status, 1)
		}
	}
	return stats, nil
}

func (m *MemoryStore) CreatorIDs(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for _, it := range m.items {
		if it.UserID == userID {
			ids = append(ids, it.CreatorID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) ResetFailed(_ context.Context, userID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, it := range m.items {
		if it.UserID == userID && it.Status == queue.StatusFailed {
			it.Status = queue.StatusScheduled
			it.ScheduledSendTime = now
			it.NextRetryAt = nil
			it.LeaseOwner = ""
			it.LeaseExpiresAt = nil
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) MarkReplied(_ context.Context, ref queue.ReplyRef, at time.Time) (*queue.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var target *queue.Item
	for _, it := range m.items {
		if (ref.ItemID != "" && it.ID == ref.ItemID) ||
			(ref.ItemID == "" && ref.ThreadID != "" && it.ProviderThreadID == ref.ThreadID) {
			target = it
			break
		}
	}
	if ref.ItemID == "" && ref.ThreadID == "" {
		return nil, fmt.Errorf("mark replied: %w", core.ErrInvalidInput)
	}
	if target == nil {
		return nil, fmt.Errorf("mark replied: %w", core.ErrNotFound)
	}

	target.Status = queue.StatusReplied
	if target.RepliedAt == nil {
		t := at
		target.RepliedAt = &t
	}
	target.LeaseOwner = ""
	target.LeaseExpiresAt = nil
	target.NextRetryAt = nil
	cp := *target
	return &cp, nil
}

func (m *MemoryStore) ClaimDue(_ context.Context, p queue.ClaimParams) ([]queue.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*queue.Item
	for _, it := range m.items {
		if it.Due(p.Now, p.MaxRetries) {
			due = append(due, it)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return claimOrder(due[i]).Before(claimOrder(due[j]))
	})
	if p.Limit > 0 && len(due) > p.Limit {
		due = due[:p.Limit]
	}

	expires := p.Now.Add(p.LeaseTTL)
	out := make([]queue.Item, 0, len(due))
	for _, it := range due {
		it.LeaseOwner = p.Owner
		e := expires
		it.LeaseExpiresAt = &e
		out = append(out, *it)
	}
	return out, nil
}

func claimOrder(it *queue.Item) time.Time {
	if it.NextRetryAt != nil {
		return *it.NextRetryAt
	}
	return it.ScheduledSendTime
}

func (m *MemoryStore) leased(op, id, owner string) (*queue.Item, error) {
	it, ok := m.items[id]
	if !ok || it.LeaseOwner != owner {
		return nil, fmt.Errorf("%s: %w", op, queue.ErrLeaseLost)
	}
	return it, nil
}

func (m *MemoryStore) MarkSent(_ context.Context, id, owner string, info queue.SentInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, err := m.leased("mark sent", id, owner)
	if err != nil {
		return err
	}
	sentAt := info.SentAt
	it.Status = queue.StatusSent
	it.SentAt = &sentAt
	it.MailboxID = info.MailboxID
	it.ProviderMessageID = info.ProviderMessageID
	it.ProviderThreadID = info.ProviderThreadID
	it.LastError = ""
	it.NextRetryAt = nil
	it.LeaseOwner = ""
	it.LeaseExpiresAt = nil
	return nil
}

func (m *MemoryStore) MarkFailed(
	_ context.Context,
	id, owner, lastError string,
	nextRetryAt *time.Time,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, err := m.leased("mark failed", id, owner)
	if err != nil {
		return err
	}
	it.Status = queue.StatusFailed
	it.RetryCount++
	it.LastError = lastError
	it.NextRetryAt = nextRetryAt
	it.LeaseOwner = ""
	it.LeaseExpiresAt = nil
	return nil
}

func (m *MemoryStore) Release(_ context.Context, id, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, err := m.leased("release", id, owner)
	if err != nil {
		return err
	}
	it.LeaseOwner = ""
	it.LeaseExpiresAt = nil
	return nil
}

var _ queue.Store = (*MemoryStore)(nil)
