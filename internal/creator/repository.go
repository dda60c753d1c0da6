// AngelaMos | 2026
// repository.go

package creator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/carterperez-dev/creator-outreach/internal/core"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Creator, error)
	GetByIDs(ctx context.Context, ids []string) ([]Creator, error)
	FindByHandles(ctx context.Context, platform string, handles []string) ([]Creator, error)
	InsertNew(ctx context.Context, creators []Creator) ([]Creator, error)
	SetEmail(ctx context.Context, id, email string, found bool) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const creatorColumns = `
	id, platform, handle, display_name, followers, niche, profile_url,
	COALESCE(email, '') AS email, email_found, has_basic_profile,
	has_detailed_profile, created_at, updated_at`

func (r *repository) GetByID(ctx context.Context, id string) (*Creator, error) {
	query := `SELECT` + creatorColumns + ` FROM creators WHERE id = $1`

	var c Creator
	err := r.db.GetContext(ctx, &c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get creator: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get creator: %w", err)
	}

	return &c, nil
}

func (r *repository) GetByIDs(ctx context.Context, ids []string) ([]Creator, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT` + creatorColumns + `
		FROM creators
		WHERE id = ANY($1)`

	var creators []Creator
	if err := r.db.SelectContext(ctx, &creators, query, pq.StringArray(ids)); err != nil {
		return nil, fmt.Errorf("get creators: %w", err)
	}

	return creators, nil
}

func (r *repository) FindByHandles(
	ctx context.Context,
	platform string,
	handles []string,
) ([]Creator, error) {
	if len(handles) == 0 {
		return nil, nil
	}

	query := `SELECT` + creatorColumns + `
		FROM creators
		WHERE platform = $1 AND handle = ANY($2)`

	var creators []Creator
	err := r.db.SelectContext(ctx, &creators, query, platform, pq.StringArray(handles))
	if err != nil {
		return nil, fmt.Errorf("find creators by handle: %w", err)
	}

	return creators, nil
}

// InsertNew writes creators that do not exist yet. A row that loses a race
// with a concurrent insert is re-read, so the returned slice always holds
// the stored record for each input identity, in input order. All creators
// in one call share a platform.
func (r *repository) InsertNew(ctx context.Context, creators []Creator) ([]Creator, error) {
	query := `
		INSERT INTO creators (
			id, platform, handle, display_name, followers, niche, profile_url,
			has_basic_profile, has_detailed_profile
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (platform, handle) DO NOTHING
		RETURNING` + creatorColumns

	stored := make([]Creator, 0, len(creators))
	var lost []string
	platform := ""

	for i := range creators {
		c := creators[i]
		platform = c.Platform

		var out Creator
		err := r.db.GetContext(ctx, &out, query,
			c.ID,
			c.Platform,
			c.Handle,
			c.DisplayName,
			c.Followers,
			c.Niche,
			c.ProfileURL,
			c.HasBasicProfile,
			c.HasDetailedProfile,
		)
		if errors.Is(err, sql.ErrNoRows) {
			lost = append(lost, c.Handle)
			stored = append(stored, Creator{Platform: c.Platform, Handle: c.Handle})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert creator %s: %w", c.Handle, err)
		}
		stored = append(stored, out)
	}

	if len(lost) == 0 {
		return stored, nil
	}

	existing, err := r.FindByHandles(ctx, platform, lost)
	if err != nil {
		return nil, err
	}
	byHandle := make(map[string]Creator, len(existing))
	for _, c := range existing {
		byHandle[c.Handle] = c
	}
	resolved := stored[:0]
	for _, c := range stored {
		if c.ID == "" {
			found, ok := byHandle[c.Handle]
			if !ok {
				continue
			}
			c = found
		}
		resolved = append(resolved, c)
	}

	return resolved, nil
}

func (r *repository) SetEmail(ctx context.Context, id, email string, found bool) error {
	query := `
		UPDATE creators
		SET email = NULLIF($2, ''), email_found = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, email, found)
	if err != nil {
		return fmt.Errorf("set creator email: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set creator email: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("set creator email: %w", core.ErrNotFound)
	}

	return nil
}
