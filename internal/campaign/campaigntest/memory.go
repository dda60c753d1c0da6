// AngelaMos | 2026
// memory.go

package campaigntest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carterperez-dev/creator-outreach/internal/campaign"
	"github.com/carterperez-dev/creator-outreach/internal/core"
)

// MemoryRepository is a campaign.Repository over a map.
type MemoryRepository struct {
	mu        sync.Mutex
	campaigns map[string]*campaign.Campaign
	seq       int
	now       func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{campaigns: make(map[string]*campaign.Campaign), now: time.Now}
}

func clone(c *campaign.Campaign) campaign.Campaign {
	out := *c
	out.CreatorIDs = append([]string(nil), c.CreatorIDs...)
	return out
}

func (r *MemoryRepository) Create(_ context.Context, c *campaign.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// created_at must be strictly ordered for ActiveForUser.
	r.seq++
	now := r.now().Add(time.Duration(r.seq) * time.Microsecond)
	c.CreatedAt, c.UpdatedAt = now, now
	c.ResultsCount = len(c.CreatorIDs)
	stored := clone(c)
	r.campaigns[c.ID] = &stored
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*campaign.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("get campaign: %w", core.ErrNotFound)
	}
	out := clone(c)
	return &out, nil
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID string) ([]campaign.Campaign, error) {
	out := r.filter(func(c *campaign.Campaign) bool { return c.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) Update(_ context.Context, c *campaign.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.campaigns[c.ID]
	if !ok {
		return fmt.Errorf("update campaign: %w", core.ErrNotFound)
	}
	stored.Name = c.Name
	stored.Filters = c.Filters
	stored.RequestedCount = c.RequestedCount
	stored.Recurring = c.Recurring
	stored.Active = c.Active
	stored.NextRunAt = c.NextRunAt
	stored.UpdatedAt = r.now()
	c.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.campaigns[id]; !ok {
		return fmt.Errorf("delete campaign: %w", core.ErrNotFound)
	}
	delete(r.campaigns, id)
	return nil
}

func (r *MemoryRepository) ListDue(_ context.Context, now time.Time, limit int) ([]campaign.Campaign, error) {
	out := r.filter(func(c *campaign.Campaign) bool {
		return c.Active && c.NextRunAt != nil && !c.NextRunAt.After(now)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Before(*out[j].NextRunAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) AppendCreators(_ context.Context, id string, creatorIDs []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return 0, fmt.Errorf("append campaign creators: %w", core.ErrNotFound)
	}
	have := c.IDSet()
	for _, cid := range creatorIDs {
		if _, dup := have[cid]; dup {
			continue
		}
		have[cid] = struct{}{}
		c.CreatorIDs = append(c.CreatorIDs, cid)
	}
	c.ResultsCount = len(c.CreatorIDs)
	c.UpdatedAt = r.now()
	return c.ResultsCount, nil
}

func (r *MemoryRepository) RecordRun(_ context.Context, id string, run campaign.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return fmt.Errorf("record campaign run: %w", core.ErrNotFound)
	}
	last := run.LastRunAt
	c.LastRunAt = &last
	c.NextRunAt = run.NextRunAt
	c.LastError = run.LastError
	c.Active = run.Active
	c.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) ActiveForUser(_ context.Context, userID string) ([]campaign.Campaign, error) {
	out := r.filter(func(c *campaign.Campaign) bool { return c.UserID == userID && c.Active })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) UsersWithActive(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, c := range r.filter(func(c *campaign.Campaign) bool { return c.Active }) {
		seen[c.UserID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepository) filter(keep func(*campaign.Campaign) bool) []campaign.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []campaign.Campaign
	for _, c := range r.campaigns {
		if keep(c) {
			out = append(out, clone(c))
		}
	}
	return out
}

var _ campaign.Repository = (*MemoryRepository)(nil)
