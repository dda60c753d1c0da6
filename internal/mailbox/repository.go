// AngelaMos | 2026
// repository.go

package mailbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/creator-outreach/internal/core"
)

type Repository interface {
	Create(ctx context.Context, m *Mailbox) error
	GetByID(ctx context.Context, id string) (*Mailbox, error)
	GetByEmail(ctx context.Context, userID, email string) (*Mailbox, error)
	ListByUser(ctx context.Context, userID string) ([]Mailbox, error)
	Update(ctx context.Context, m *Mailbox) error
	UpdateTokens(ctx context.Context, m *Mailbox) error
	Delete(ctx context.Context, id string) error

	SelectForSend(ctx context.Context, userID string) (*Mailbox, error)
	ReserveSend(ctx context.Context, id string) (bool, error)
	ReleaseSend(ctx context.Context, id string) error
	MarkReconnectRequired(ctx context.Context, id, reason string) error
	ResetDailyBatch(ctx context.Context, today time.Time, limit int) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const mailboxColumns = `
	id, user_id, email, display_name, provider, access_token_enc,
	refresh_token_enc, token_expires_at, daily_limit, sent_today,
	sent_reset_on, status, COALESCE(last_error, '') AS last_error,
	created_at, updated_at`

func (r *repository) Create(ctx context.Context, m *Mailbox) error {
	query := `
		INSERT INTO mailboxes (
			id, user_id, email, display_name, provider, access_token_enc,
			refresh_token_enc, token_expires_at, daily_limit, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING sent_reset_on, created_at, updated_at`

	err := r.db.GetContext(ctx, m, query,
		m.ID,
		m.UserID,
		m.Email,
		m.DisplayName,
		m.Provider,
		m.AccessTokenEnc,
		m.RefreshTokenEnc,
		m.TokenExpiresAt,
		m.DailyLimit,
		m.Status,
	)
	if err != nil {
		if core.IsDuplicateKey(err) {
			return fmt.Errorf("create mailbox: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create mailbox: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Mailbox, error) {
	query := `SELECT` + mailboxColumns + `
		FROM mailboxes
		WHERE id = $1`

	return r.getOne(ctx, "get mailbox", query, id)
}

func (r *repository) GetByEmail(ctx context.Context, userID, email string) (*Mailbox, error) {
	query := `SELECT` + mailboxColumns + `
		FROM mailboxes
		WHERE user_id = $1 AND lower(email) = lower($2)`

	return r.getOne(ctx, "get mailbox by email", query, userID, email)
}

func (r *repository) ListByUser(ctx context.Context, userID string) ([]Mailbox, error) {
	query := `SELECT` + mailboxColumns + `
		FROM mailboxes
		WHERE user_id = $1
		ORDER BY created_at`

	var out []Mailbox
	if err := r.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, fmt.Errorf("list mailboxes: %w", err)
	}
	return out, nil
}

func (r *repository) Update(ctx context.Context, m *Mailbox) error {
	query := `
		UPDATE mailboxes
		SET display_name = $2, daily_limit = $3, status = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &m.UpdatedAt, query,
		m.ID,
		m.DisplayName,
		m.DailyLimit,
		m.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update mailbox: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update mailbox: %w", err)
	}

	return nil
}

// UpdateTokens stores a fresh credential and reactivates the mailbox.
func (r *repository) UpdateTokens(ctx context.Context, m *Mailbox) error {
	query := `
		UPDATE mailboxes
		SET access_token_enc = $2,
		    refresh_token_enc = $3,
		    token_expires_at = $4,
		    display_name = $5,
		    status = 'active',
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING status, updated_at`

	err := r.db.GetContext(ctx, m, query,
		m.ID,
		m.AccessTokenEnc,
		m.RefreshTokenEnc,
		m.TokenExpiresAt,
		m.DisplayName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update mailbox tokens: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update mailbox tokens: %w", err)
	}
	m.LastError = ""

	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "delete mailbox", `DELETE FROM mailboxes WHERE id = $1`, id)
}

// SelectForSend picks the active mailbox with the most headroom. The
// reservation itself happens in ReserveSend.
func (r *repository) SelectForSend(ctx context.Context, userID string) (*Mailbox, error) {
	query := `SELECT` + mailboxColumns + `
		FROM mailboxes
		WHERE user_id = $1
		  AND status = 'active'
		  AND sent_today < daily_limit
		ORDER BY daily_limit - sent_today DESC, created_at
		LIMIT 1`

	return r.getOne(ctx, "select mailbox", query, userID)
}

func (r *repository) ReserveSend(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE mailboxes
		SET sent_today = sent_today + 1, updated_at = NOW()
		WHERE id = $1
		  AND status = 'active'
		  AND sent_today < daily_limit`

	n, err := r.execCount(ctx, "reserve send", query, id)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *repository) ReleaseSend(ctx context.Context, id string) error {
	query := `
		UPDATE mailboxes
		SET sent_today = GREATEST(sent_today - 1, 0), updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "release send", query, id)
}

func (r *repository) MarkReconnectRequired(ctx context.Context, id, reason string) error {
	query := `
		UPDATE mailboxes
		SET status = 'reconnect_required', last_error = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "mark reconnect required", query, id, reason)
}

func (r *repository) ResetDailyBatch(
	ctx context.Context,
	today time.Time,
	limit int,
) (int64, error) {
	query := `
		UPDATE mailboxes
		SET sent_today = 0, sent_reset_on = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM mailboxes
			WHERE sent_reset_on < $1
			ORDER BY id
			LIMIT $2
			FOR UPDATE
		)`

	return r.execCount(ctx, "reset mailbox counters", query, today, limit)
}

func (r *repository) getOne(
	ctx context.Context,
	op, query string,
	args ...any,
) (*Mailbox, error) {
	var m Mailbox
	err := r.db.GetContext(ctx, &m, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &m, nil
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	rows, err := r.execCount(ctx, op, query, args...)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

func (r *repository) execCount(
	ctx context.Context,
	op, query string,
	args ...any,
) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return rows, nil
}
