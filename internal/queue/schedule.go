// AngelaMos | 2026
// schedule.go

package queue

import (
	"time"

	"github.com/carterperez-dev/creator-outreach/internal/account"
	"github.com/carterperez-dev/creator-outreach/internal/config"
)

// Distribute returns count send times spread evenly over the daily window
// [startHour, endHour) in now's location.
//
// The spacing is max(minGapMinutes, windowMinutes/count), so a batch that
// fits the window lands in one day. The first slot is the window start when
// now is before it, tomorrow's start when now is past it, and now plus one
// minute when inside it. A slot that would reach the window close moves to
// the next day's start instead of piling up at the boundary. A 0-24 window
// has no close, so slots run on continuously.
func Distribute(now time.Time, count, minGapMinutes, startHour, endHour int) []time.Time {
	if count <= 0 {
		return nil
	}
	if startHour < 0 || endHour > 24 || endHour <= startHour {
		startHour, endHour = 0, 24
	}

	windowMinutes := (endHour - startHour) * 60
	intervalMinutes := max(minGapMinutes, windowMinutes/count, 1)
	interval := time.Duration(intervalMinutes) * time.Minute

	w := window{start: startHour, end: endHour, loc: now.Location()}

	var cursor time.Time
	switch opens, closes := w.bounds(now); {
	case now.Before(opens):
		cursor = opens
	case !now.Before(closes):
		cursor = w.nextOpen(now)
	default:
		cursor = now.Add(time.Minute)
	}

	out := make([]time.Time, 0, count)
	for range count {
		cursor = w.fit(cursor)
		out = append(out, cursor)
		cursor = cursor.Add(interval)
	}
	return out
}

type window struct {
	start, end int
	loc        *time.Location
}

// bounds returns the window that opens on t's calendar day.
func (w window) bounds(t time.Time) (time.Time, time.Time) {
	t = t.In(w.loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, w.start, 0, 0, 0, w.loc),
		time.Date(y, m, d, w.end, 0, 0, 0, w.loc)
}

func (w window) nextOpen(t time.Time) time.Time {
	t = t.In(w.loc)
	y, m, d := t.Date()
	return time.Date(y, m, d+1, w.start, 0, 0, 0, w.loc)
}

// fit moves t forward to the nearest instant inside a window.
func (w window) fit(t time.Time) time.Time {
	opens, closes := w.bounds(t)
	switch {
	case t.Before(opens):
		return opens
	case !t.Before(closes):
		return w.nextOpen(t)
	}
	return t
}

// Scheduler binds Distribute to the configured window and an account's
// own timezone and hours policy.
type Scheduler struct {
	cfg config.OutreachConfig
	now func() time.Time
}

func NewScheduler(cfg config.OutreachConfig) *Scheduler {
	return &Scheduler{cfg: cfg, now: time.Now}
}

func (s *Scheduler) Schedule(acct *account.Account, count int) []time.Time {
	start, end := 0, 24
	if acct.BusinessHoursOnly {
		start, end = s.cfg.WindowStartHour, s.cfg.WindowEndHour
	}
	return Distribute(s.now().In(acct.Location()), count, s.cfg.MinGapMinutes, start, end)
}
