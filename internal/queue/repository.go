// AngelaMos | 2026
// repository.go

package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/carterperez-dev/creator-outreach/internal/account"
	"github.com/carterperez-dev/creator-outreach/internal/core"
)

var ErrLeaseLost = errors.New("queue item lease lost")

type pgStore struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) Store {
	return &pgStore{db: db}
}

func itemColumns(prefix string) string {
	cols := []string{
		"id", "user_id", "creator_id", "creator_email",
		"COALESCE(%scampaign_id, '') AS campaign_id",
		"status", "scheduled_send_time", "retry_count",
		"COALESCE(%slast_error, '') AS last_error",
		"next_retry_at",
		"COALESCE(%slease_owner, '') AS lease_owner",
		"lease_expires_at",
		"COALESCE(%smailbox_id, '') AS mailbox_id",
		"COALESCE(%sprovider_message_id, '') AS provider_message_id",
		"COALESCE(%sprovider_thread_id, '') AS provider_thread_id",
		"sent_at", "replied_at", "created_at", "updated_at",
	}
	for i, c := range cols {
		if strings.Contains(c, "%s") {
			cols[i] = fmt.Sprintf(c, prefix)
		} else {
			cols[i] = prefix + c
		}
	}
	return " " + strings.Join(cols, ", ")
}

var (
	plainColumns   = itemColumns("")
	aliasedColumns = itemColumns("q.")
)

func (s *pgStore) WithinUserLock(
	ctx context.Context,
	userID string,
	fn func(tx TxStore, acct *account.Account) error,
) error {
	return core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		accounts := account.NewRepository(tx)

		acct, err := accounts.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		return fn(&pgTx{tx: tx, accounts: accounts}, acct)
	})
}

type pgTx struct {
	tx       *sqlx.Tx
	accounts account.Repository
}

func (t *pgTx) Queued(
	ctx context.Context,
	userID string,
	creatorIDs, emails []string,
) (map[string]struct{}, map[string]struct{}, error) {
	byCreator := make(map[string]struct{})
	byEmail := make(map[string]struct{})

	var rows []struct {
		CreatorID string `db:"creator_id"`
		Email     string `db:"email"`
		Status    Status `db:"status"`
	}
	query := `
		SELECT creator_id, lower(creator_email) AS email, status
		FROM outreach_queue
		WHERE user_id = $1
		  AND (creator_id = ANY($2) OR lower(creator_email) = ANY($3))`

	err := t.tx.SelectContext(ctx, &rows, query,
		userID, pq.StringArray(creatorIDs), pq.StringArray(emails))
	if err != nil {
		return nil, nil, fmt.Errorf("find queued: %w", err)
	}

	for _, r := range rows {
		byCreator[r.CreatorID] = struct{}{}
		if r.Status.Active() {
			byEmail[r.Email] = struct{}{}
		}
	}

	return byCreator, byEmail, nil
}

func (t *pgTx) Insert(ctx context.Context, items []Item) ([]string, error) {
	query := `
		INSERT INTO outreach_queue (
			id, user_id, creator_id, creator_email, campaign_id, status,
			scheduled_send_time
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		ON CONFLICT DO NOTHING
		RETURNING id`

	inserted := make([]string, 0, len(items))
	for _, it := range items {
		var id string
		err := t.tx.GetContext(ctx, &id, query,
			it.ID,
			it.UserID,
			it.CreatorID,
			it.CreatorEmail,
			it.CampaignID,
			it.Status,
			it.ScheduledSendTime,
		)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert queue item: %w", err)
		}
		inserted = append(inserted, id)
	}

	return inserted, nil
}

func (t *pgTx) Charge(ctx context.Context, userID string, amount int) error {
	ok, err := account.NewLedger(t.accounts, nil).Increment(ctx, userID, amount)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("charge %d sends: %w", amount, account.ErrQuotaExceeded)
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, id string) (*Item, error) {
	query := `SELECT` + plainColumns + ` FROM outreach_queue WHERE id = $1`

	var it Item
	err := s.db.GetContext(ctx, &it, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get queue item: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return &it, nil
}

func (s *pgStore) List(ctx context.Context, params ListParams) ([]Item, int, error) {
	params.Normalize()

	conditions := []string{"user_id = $1"}
	args := []any{params.UserID}

	if params.Status != "" {
		args = append(args, params.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.CampaignID != "" {
		args = append(args, params.CampaignID)
		conditions = append(conditions, fmt.Sprintf("campaign_id = $%d", len(args)))
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM outreach_queue WHERE " + whereClause
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count queue items: %w", err)
	}

	query := fmt.Sprintf(`SELECT`+plainColumns+`
		FROM outreach_queue
		WHERE %s
		ORDER BY scheduled_send_time ASC
		LIMIT $%d OFFSET $%d`,
		whereClause, len(args)+1, len(args)+2)

	args = append(args, params.PageSize, params.Offset())

	var items []Item
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list queue items: %w", err)
	}

	return items, total, nil
}

// Stats counts items by status. An empty userID counts the whole queue.
func (s *pgStore) Stats(ctx context.Context, userID string) (Stats, error) {
	query := `
		SELECT status, COUNT(*) AS n
		FROM outreach_queue
		WHERE ($1 = '' OR user_id = $1)
		GROUP BY status`

	var rows []struct {
		Status Status `db:"status"`
		N      int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}

	var stats Stats
	for _, r := range rows {
		stats.Add(r.Status, r.N)
	}
	return stats, nil
}

func (s *pgStore) CreatorIDs(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT creator_id FROM outreach_queue WHERE user_id = $1`

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("queued creator ids: %w", err)
	}
	return ids, nil
}

func (s *pgStore) ResetFailed(ctx context.Context, userID string, now time.Time) (int64, error) {
	query := `
		UPDATE outreach_queue
		SET status = 'scheduled', scheduled_send_time = $2, next_retry_at = NULL,
		    lease_owner = NULL, lease_expires_at = NULL, updated_at = NOW()
		WHERE user_id = $1 AND status = 'failed'`

	result, err := s.db.ExecContext(ctx, query, userID, now)
	if err != nil {
		return 0, fmt.Errorf("reset failed items: %w", err)
	}
	return result.RowsAffected()
}

func (s *pgStore) MarkReplied(ctx context.Context, ref ReplyRef, at time.Time) (*Item, error) {
	var (
		key  string
		arg  string
		item Item
	)
	switch {
	case ref.ItemID != "":
		key, arg = "id", ref.ItemID
	case ref.ThreadID != "":
		key, arg = "provider_thread_id", ref.ThreadID
	default:
		return nil, fmt.Errorf("mark replied: %w", core.ErrInvalidInput)
	}

	query := fmt.Sprintf(`
		UPDATE outreach_queue
		SET status = 'replied',
		    replied_at = COALESCE(replied_at, $2),
		    lease_owner = NULL, lease_expires_at = NULL, next_retry_at = NULL,
		    updated_at = NOW()
		WHERE %s = $1
		RETURNING`+plainColumns, key)

	err := s.db.GetContext(ctx, &item, query, arg, at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mark replied: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mark replied: %w", err)
	}
	return &item, nil
}

func (s *pgStore) ClaimDue(ctx context.Context, p ClaimParams) ([]Item, error) {
	query := `
		WITH due AS (
			SELECT id FROM outreach_queue
			WHERE (
				(status = 'scheduled' AND scheduled_send_time <= $1)
				OR (status = 'failed' AND next_retry_at <= $1 AND retry_count < $4)
			)
			AND (lease_expires_at IS NULL OR lease_expires_at < $1)
			ORDER BY COALESCE(next_retry_at, scheduled_send_time)
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outreach_queue AS q
		SET lease_owner = $2, lease_expires_at = $3, updated_at = NOW()
		FROM due
		WHERE q.id = due.id
		RETURNING` + aliasedColumns

	var items []Item
	err := s.db.SelectContext(ctx, &items, query,
		p.Now, p.Owner, p.Now.Add(p.LeaseTTL), p.MaxRetries, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("claim due items: %w", err)
	}
	return items, nil
}

func (s *pgStore) MarkSent(ctx context.Context, id, owner string, info SentInfo) error {
	query := `
		UPDATE outreach_queue
		SET status = 'sent', sent_at = $3, mailbox_id = NULLIF($4, ''),
		    provider_message_id = $5, provider_thread_id = $6,
		    last_error = NULL, next_retry_at = NULL,
		    lease_owner = NULL, lease_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND lease_owner = $2`

	return s.execLeased(ctx, "mark sent", query,
		id, owner, info.SentAt, info.MailboxID, info.ProviderMessageID, info.ProviderThreadID)
}

func (s *pgStore) MarkFailed(
	ctx context.Context,
	id, owner, lastError string,
	nextRetryAt *time.Time,
) error {
	query := `
		UPDATE outreach_queue
		SET status = 'failed', retry_count = retry_count + 1, last_error = $3,
		    next_retry_at = $4, lease_owner = NULL, lease_expires_at = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND lease_owner = $2`

	return s.execLeased(ctx, "mark failed", query, id, owner, lastError, nextRetryAt)
}

func (s *pgStore) Release(ctx context.Context, id, owner string) error {
	query := `
		UPDATE outreach_queue
		SET lease_owner = NULL, lease_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND lease_owner = $2`

	return s.execLeased(ctx, "release", query, id, owner)
}

func (s *pgStore) execLeased(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, ErrLeaseLost)
	}
	return nil
}

var _ Store = (*pgStore)(nil)
