// AngelaMos | 2026
// entity.go

package campaign

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Filters is the provider search payload, stored as JSONB.
type Filters map[string]any

func (f Filters) Value() (driver.Value, error) {
	if f == nil {
		return "{}", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode filters: %w", err)
	}
	return string(b), nil
}

func (f *Filters) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*f = Filters{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan filters: unsupported type %T", src)
	}

	out := Filters{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan filters: %w", err)
	}
	*f = out
	return nil
}

// Campaign is a saved search. CreatorIDs only grows: every run unions the
// creators it found into it, and ResultsCount is its length.
type Campaign struct {
	ID             string         `db:"id"`
	UserID         string         `db:"user_id"`
	Name           string         `db:"name"`
	Platform       string         `db:"platform"`
	Filters        Filters        `db:"filters"`
	RequestedCount int            `db:"requested_count"`
	Recurring      bool           `db:"recurring"`
	Active         bool           `db:"active"`
	CreatorIDs     pq.StringArray `db:"creator_ids"`
	ResultsCount   int            `db:"results_count"`
	LastRunAt      *time.Time     `db:"last_run_at"`
	NextRunAt      *time.Time     `db:"next_run_at"`
	LastError      string         `db:"last_error"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (c *Campaign) IDSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.CreatorIDs))
	for _, id := range c.CreatorIDs {
		set[id] = struct{}{}
	}
	return set
}

// RunRecord is what a finished run writes back.
type RunRecord struct {
	LastRunAt time.Time
	NextRunAt *time.Time
	LastError string
	Active    bool
}
