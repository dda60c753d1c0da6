// AngelaMos | 2026
// memory.go

package creatortest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/creator"
)

// MemoryRepository is a creator.Repository backed by a map. It enforces
// the same (platform, handle) uniqueness as the creators table.
type MemoryRepository struct {
	mu       sync.Mutex
	byID     map[string]*creator.Creator
	byHandle map[string]string
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:     make(map[string]*creator.Creator),
		byHandle: make(map[string]string),
		now:      time.Now,
	}
}

func identityKey(platform, handle string) string {
	return platform + "\x00" + handle
}

func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*creator.Creator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("get creator: %w", core.ErrNotFound)
	}
	out := *c
	return &out, nil
}

func (m *MemoryRepository) GetByIDs(_ context.Context, ids []string) ([]creator.Creator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]creator.Creator, 0, len(ids))
	for _, id := range ids {
		if c, ok := m.byID[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *MemoryRepository) FindByHandles(
	_ context.Context,
	platform string,
	handles []string,
) ([]creator.Creator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]creator.Creator, 0, len(handles))
	for _, h := range handles {
		if id, ok := m.byHandle[identityKey(platform, h)]; ok {
			out = append(out, *m.byID[id])
		}
	}
	return out, nil
}

func (m *MemoryRepository) InsertNew(_ context.Context, creators []creator.Creator) ([]creator.Creator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]creator.Creator, 0, len(creators))
	for _, c := range creators {
		key := identityKey(c.Platform, c.Handle)
		if id, ok := m.byHandle[key]; ok {
			out = append(out, *m.byID[id])
			continue
		}

		now := m.now()
		c.CreatedAt = now
		c.UpdatedAt = now
		stored := c
		m.byID[c.ID] = &stored
		m.byHandle[key] = c.ID
		out = append(out, c)
	}
	return out, nil
}

func (m *MemoryRepository) SetEmail(_ context.Context, id, email string, found bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("set creator email: %w", core.ErrNotFound)
	}
	c.Email = email
	c.EmailFound = &found
	c.UpdatedAt = m.now()
	return nil
}

var _ creator.Repository = (*MemoryRepository)(nil)
