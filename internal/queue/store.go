// AngelaMos | 2026
// store.go

package queue

import (
	"context"
	"time"

	"github.com/carterperez-dev/creator-outreach/internal/account"
)

// TxStore is the view of the store inside an enqueue transaction. The
// account row is locked for the lifetime of the transaction.
type TxStore interface {
	// Queued reports which of creatorIDs already have an item for the user
	// in any status, and which of emails already have an active item.
	Queued(
		ctx context.Context,
		userID string,
		creatorIDs, emails []string,
	) (map[string]struct{}, map[string]struct{}, error)

	// Insert writes items, skipping any that collide on id or on the active
	// email index, and returns the ids actually written.
	Insert(ctx context.Context, items []Item) ([]string, error)

	// Charge adds amount to the account's daily and monthly usage.
	Charge(ctx context.Context, userID string, amount int) error
}

type ListParams struct {
	UserID     string
	Status     Status
	CampaignID string
	Page       int
	PageSize   int
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type ClaimParams struct {
	Owner      string
	Now        time.Time
	LeaseTTL   time.Duration
	Limit      int
	MaxRetries int
}

type Store interface {
	// WithinUserLock runs fn in one transaction holding the user's account
	// row lock. fn receives the locked account.
	WithinUserLock(
		ctx context.Context,
		userID string,
		fn func(tx TxStore, acct *account.Account) error,
	) error

	Get(ctx context.Context, id string) (*Item, error)
	List(ctx context.Context, params ListParams) ([]Item, int, error)
	Stats(ctx context.Context, userID string) (Stats, error)
	CreatorIDs(ctx context.Context, userID string) ([]string, error)
	ResetFailed(ctx context.Context, userID string, now time.Time) (int64, error)
	MarkReplied(ctx context.Context, ref ReplyRef, at time.Time) (*Item, error)

	// ClaimDue leases up to Limit due items to Owner. A claimed item is
	// invisible to other workers until its lease expires or is cleared.
	ClaimDue(ctx context.Context, params ClaimParams) ([]Item, error)
	MarkSent(ctx context.Context, id, owner string, info SentInfo) error
	MarkFailed(ctx context.Context, id, owner, lastError string, nextRetryAt *time.Time) error
	Release(ctx context.Context, id, owner string) error
}
