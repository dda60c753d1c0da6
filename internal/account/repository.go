// AngelaMos | 2026
// repository.go

package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/creator-outreach/internal/core"
)

type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Update(ctx context.Context, account *Account) error
	UpdatePlan(ctx context.Context, id, plan string, quotaDaily int) error
	UpdateRole(ctx context.Context, id, role string) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, params ListAccountsParams) ([]Account, int, error)

	GetForUpdate(ctx context.Context, id string) (*Account, error)
	AddUsage(ctx context.Context, id string, amount int) (bool, error)
	ResetDailyBatch(ctx context.Context, today time.Time, limit int) (int64, error)
	ResetMonthlyBatch(ctx context.Context, monthStart time.Time, limit int) (int64, error)
}

type repository struct {
	db core.DBTX
}

// NewRepository accepts either the pool or an open transaction. The
// enqueue path builds one over its transaction to lock and charge the
// account in the same unit of work as the queue inserts.
func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const accountColumns = `
	id, email, password_hash, name, role, plan, email_quota_daily,
	email_used_today, email_used_month, business_hours_only, timezone,
	quota_reset_on, month_reset_on, created_at, updated_at, deleted_at`

func (r *repository) Create(ctx context.Context, a *Account) error {
	query := `
		INSERT INTO accounts (
			id, email, password_hash, name, role, plan, email_quota_daily,
			business_hours_only, timezone
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING quota_reset_on, month_reset_on, created_at, updated_at`

	err := r.db.GetContext(ctx, a, query,
		a.ID,
		a.Email,
		a.PasswordHash,
		a.Name,
		a.Role,
		a.Plan,
		a.EmailQuotaDaily,
		a.BusinessHoursOnly,
		a.Timezone,
	)
	if err != nil {
		if core.IsDuplicateKey(err) {
			return fmt.Errorf("create account: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create account: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Account, error) {
	query := `SELECT` + accountColumns + `
		FROM accounts
		WHERE id = $1 AND deleted_at IS NULL`

	var a Account
	err := r.db.GetContext(ctx, &a, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &a, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	query := `SELECT` + accountColumns + `
		FROM accounts
		WHERE email = $1 AND deleted_at IS NULL`

	var a Account
	err := r.db.GetContext(ctx, &a, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}

	return &a, nil
}

func (r *repository) Update(ctx context.Context, a *Account) error {
	query := `
		UPDATE accounts
		SET name = $2, business_hours_only = $3, timezone = $4, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &a.UpdatedAt, query,
		a.ID,
		a.Name,
		a.BusinessHoursOnly,
		a.Timezone,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update account: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	return nil
}

func (r *repository) UpdatePlan(
	ctx context.Context,
	id, plan string,
	quotaDaily int,
) error {
	query := `
		UPDATE accounts
		SET plan = $2, email_quota_daily = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "update plan", query, id, plan, quotaDaily)
}

func (r *repository) UpdateRole(ctx context.Context, id, role string) error {
	query := `
		UPDATE accounts
		SET role = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "update role", query, id, role)
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "delete account", query, id)
}

func (r *repository) List(
	ctx context.Context,
	params ListAccountsParams,
) ([]Account, int, error) {
	params.Normalize()

	conditions := []string{"deleted_at IS NULL"}
	var args []any
	argIdx := 1

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d OR name ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Plan != "" {
		conditions = append(conditions, fmt.Sprintf("plan = $%d", argIdx))
		args = append(args, params.Plan)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM accounts WHERE " + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	query := fmt.Sprintf(`SELECT`+accountColumns+`
		FROM accounts
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var accounts []Account
	if err := r.db.SelectContext(ctx, &accounts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	return accounts, total, nil
}

// GetForUpdate row-locks the account until the surrounding transaction
// ends. Every enqueue for the same user serialises on this lock.
func (r *repository) GetForUpdate(ctx context.Context, id string) (*Account, error) {
	query := `SELECT` + accountColumns + `
		FROM accounts
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE`

	var a Account
	err := r.db.GetContext(ctx, &a, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lock account: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock account: %w", err)
	}

	return &a, nil
}

// AddUsage charges amount against the account only if it still fits the
// daily quota, in one conditional UPDATE. It reports false when the
// account is over quota or gone.
func (r *repository) AddUsage(ctx context.Context, id string, amount int) (bool, error) {
	if amount <= 0 {
		return true, nil
	}

	query := `
		UPDATE accounts
		SET email_used_today = email_used_today + $2,
		    email_used_month = email_used_month + $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND deleted_at IS NULL
		  AND (plan = $3 OR email_used_today + $2 <= email_quota_daily)`

	rows, err := r.execCount(ctx, "add usage", query, id, amount, PlanEnterprise)
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *repository) ResetDailyBatch(
	ctx context.Context,
	today time.Time,
	limit int,
) (int64, error) {
	query := `
		UPDATE accounts
		SET email_used_today = 0, quota_reset_on = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM accounts
			WHERE quota_reset_on < $1
			ORDER BY id
			LIMIT $2
			FOR UPDATE
		)`

	return r.execCount(ctx, "reset daily usage", query, today, limit)
}

func (r *repository) ResetMonthlyBatch(
	ctx context.Context,
	monthStart time.Time,
	limit int,
) (int64, error) {
	query := `
		UPDATE accounts
		SET email_used_month = 0, month_reset_on = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM accounts
			WHERE month_reset_on < $1
			ORDER BY id
			LIMIT $2
			FOR UPDATE
		)`

	return r.execCount(ctx, "reset monthly usage", query, monthStart, limit)
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

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
