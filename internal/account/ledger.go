// AngelaMos | 2026
// ledger.go

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const resetBatchSize = 500

var ErrQuotaExceeded = errors.New("daily send quota exceeded")

// Ledger is the only writer of per-user send usage. Built over a
// transaction-scoped Repository, its charges commit with the caller's
// unit of work.
type Ledger struct {
	repo   Repository
	logger *slog.Logger
}

func NewLedger(repo Repository, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{repo: repo, logger: logger}
}

// Remaining reads the account's unspent daily budget, or Unlimited.
func (l *Ledger) Remaining(ctx context.Context, userID string) (int, error) {
	a, err := l.repo.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return a.Remaining(), nil
}

// Increment charges amount in a single conditional write. It returns
// false, and charges nothing, when amount does not fit the quota.
func (l *Ledger) Increment(ctx context.Context, userID string, amount int) (bool, error) {
	ok, err := l.repo.AddUsage(ctx, userID, amount)
	if err != nil {
		return false, fmt.Errorf("increment usage: %w", err)
	}
	if !ok {
		l.logger.Warn("quota increment refused", "user_id", userID, "amount", amount)
	}
	return ok, nil
}

// Grant is how many of requested sends the account may take right now.
func Grant(a *Account, requested int) int {
	if requested <= 0 {
		return 0
	}
	remaining := a.Remaining()
	if remaining == Unlimited || remaining >= requested {
		return requested
	}
	return remaining
}

type ResetSummary struct {
	Accounts       int64 `json:"accounts_reset"`
	MonthlyResets  int64 `json:"monthly_resets"`
	MonthlyApplied bool  `json:"monthly_applied"`
}

// ResetDaily zeroes email_used_today for every account not yet reset for
// the given day. It works in batches until no stale account is left and
// is safe to re-run after a partial failure: accounts already stamped
// with today are skipped.
func (l *Ledger) ResetDaily(ctx context.Context, now time.Time) (ResetSummary, error) {
	var summary ResetSummary

	today := truncateDay(now)
	n, err := l.drain(ctx, func(ctx context.Context) (int64, error) {
		return l.repo.ResetDailyBatch(ctx, today, resetBatchSize)
	})
	summary.Accounts = n
	if err != nil {
		return summary, fmt.Errorf("reset daily: %w", err)
	}

	m, err := l.ResetMonthly(ctx, now)
	summary.MonthlyResets = m
	summary.MonthlyApplied = m > 0
	if err != nil {
		return summary, err
	}

	l.logger.Info("quota reset complete",
		"accounts", summary.Accounts,
		"monthly", summary.MonthlyResets,
		"day", today.Format(time.DateOnly),
	)

	return summary, nil
}

// ResetMonthly zeroes email_used_month for accounts last reset before the
// first of the current month. Repeat calls within a month are no-ops.
func (l *Ledger) ResetMonthly(ctx context.Context, now time.Time) (int64, error) {
	today := truncateDay(now)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	n, err := l.drain(ctx, func(ctx context.Context) (int64, error) {
		return l.repo.ResetMonthlyBatch(ctx, monthStart, resetBatchSize)
	})
	if err != nil {
		return n, fmt.Errorf("reset monthly: %w", err)
	}
	return n, nil
}

func (l *Ledger) drain(
	ctx context.Context,
	batch func(context.Context) (int64, error),
) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := batch(ctx)
		if err != nil {
			return total, err
		}
		total += n
		// A short batch is not the end: a row locked by an enqueue
		// may have been passed over.
		if n == 0 {
			return total, nil
		}
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
