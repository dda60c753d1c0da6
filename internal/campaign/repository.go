// AngelaMos | 2026
// repository.go

package campaign

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/carterperez-dev/creator-outreach/internal/core"
)

type Repository interface {
	Create(ctx context.Context, c *Campaign) error
	GetByID(ctx context.Context, id string) (*Campaign, error)
	ListByUser(ctx context.Context, userID string) ([]Campaign, error)
	Update(ctx context.Context, c *Campaign) error
	Delete(ctx context.Context, id string) error

	// ListDue returns active campaigns with next_run_at <= now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]Campaign, error)
	// AppendCreators unions ids into creator_ids and returns the new
	// results_count.
	AppendCreators(ctx context.Context, id string, creatorIDs []string) (int, error)
	RecordRun(ctx context.Context, id string, run RunRecord) error

	// ActiveForUser returns the user's active campaigns, oldest first.
	ActiveForUser(ctx context.Context, userID string) ([]Campaign, error)
	UsersWithActive(ctx context.Context) ([]string, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const campaignColumns = `
	id, user_id, name, platform, filters, requested_count, recurring, active,
	creator_ids, results_count, last_run_at, next_run_at,
	COALESCE(last_error, '') AS last_error, created_at, updated_at`

func (r *repository) Create(ctx context.Context, c *Campaign) error {
	query := `
		INSERT INTO campaigns (
			id, user_id, name, platform, filters, requested_count,
			recurring, active, next_run_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING creator_ids, results_count, created_at, updated_at`

	err := r.db.GetContext(ctx, c, query,
		c.ID,
		c.UserID,
		c.Name,
		c.Platform,
		c.Filters,
		c.RequestedCount,
		c.Recurring,
		c.Active,
		c.NextRunAt,
	)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Campaign, error) {
	query := `SELECT` + campaignColumns + `
		FROM campaigns
		WHERE id = $1`

	var c Campaign
	err := r.db.GetContext(ctx, &c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get campaign: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}

	return &c, nil
}

func (r *repository) ListByUser(ctx context.Context, userID string) ([]Campaign, error) {
	query := `SELECT` + campaignColumns + `
		FROM campaigns
		WHERE user_id = $1
		ORDER BY created_at DESC`

	return r.selectMany(ctx, "list campaigns", query, userID)
}

func (r *repository) Update(ctx context.Context, c *Campaign) error {
	query := `
		UPDATE campaigns
		SET name = $2, filters = $3, requested_count = $4, recurring = $5,
		    active = $6, next_run_at = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &c.UpdatedAt, query,
		c.ID,
		c.Name,
		c.Filters,
		c.RequestedCount,
		c.Recurring,
		c.Active,
		c.NextRunAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update campaign: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}

	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete campaign: %w", core.ErrNotFound)
	}
	return nil
}

func (r *repository) ListDue(ctx context.Context, now time.Time, limit int) ([]Campaign, error) {
	query := `SELECT` + campaignColumns + `
		FROM campaigns
		WHERE active AND next_run_at IS NOT NULL AND next_run_at <= $1
		ORDER BY next_run_at
		LIMIT $2`

	return r.selectMany(ctx, "list due campaigns", query, now, limit)
}

// AppendCreators keeps existing order and appends ids not already present.
// results_count is generated from cardinality(creator_ids).
func (r *repository) AppendCreators(
	ctx context.Context,
	id string,
	creatorIDs []string,
) (int, error) {
	query := `
		UPDATE campaigns AS c
		SET creator_ids = c.creator_ids || ARRAY(
		        SELECT x
		        FROM unnest($2::text[]) WITH ORDINALITY AS t(x, n)
		        WHERE NOT (x = ANY(c.creator_ids))
		        ORDER BY n
		    ),
		    updated_at = NOW()
		WHERE c.id = $1
		RETURNING c.results_count`

	var count int
	err := r.db.GetContext(ctx, &count, query, id, pq.StringArray(creatorIDs))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("append campaign creators: %w", core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("append campaign creators: %w", err)
	}

	return count, nil
}

func (r *repository) RecordRun(ctx context.Context, id string, run RunRecord) error {
	query := `
		UPDATE campaigns
		SET last_run_at = $2, next_run_at = $3, last_error = NULLIF($4, ''),
		    active = $5, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		id, run.LastRunAt, run.NextRunAt, run.LastError, run.Active)
	if err != nil {
		return fmt.Errorf("record campaign run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record campaign run: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("record campaign run: %w", core.ErrNotFound)
	}
	return nil
}

func (r *repository) ActiveForUser(ctx context.Context, userID string) ([]Campaign, error) {
	query := `SELECT` + campaignColumns + `
		FROM campaigns
		WHERE user_id = $1 AND active
		ORDER BY created_at, id`

	return r.selectMany(ctx, "list active campaigns", query, userID)
}

func (r *repository) UsersWithActive(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT user_id
		FROM campaigns
		WHERE active
		ORDER BY user_id`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list campaign users: %w", err)
	}
	return ids, nil
}

func (r *repository) selectMany(
	ctx context.Context,
	op, query string,
	args ...any,
) ([]Campaign, error) {
	var out []Campaign
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
