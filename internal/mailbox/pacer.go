// AngelaMos | 2026
// pacer.go

package mailbox

import (
	"context"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Pacer spaces sends from one mailbox so a burst of due items does not hit
// the provider all at once. The window is shared through Redis by every
// worker; if Redis is unreachable each process falls back to its own
// token bucket.
type Pacer struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func NewPacer(rdb redis.UniversalClient, perMinute int) *Pacer {
	p := &Pacer{
		limit: redis_rate.Limit{
			Rate:   perMinute,
			Burst:  perMinute,
			Period: time.Minute,
		},
		local: make(map[string]*rate.Limiter),
	}
	if rdb != nil {
		p.limiter = redis_rate.NewLimiter(rdb)
	}
	return p
}

// Allow consumes one send slot for the mailbox. A non-positive per-minute
// setting disables pacing.
func (p *Pacer) Allow(ctx context.Context, mailboxID string) (bool, time.Duration) {
	if p.limit.Rate <= 0 {
		return true, 0
	}

	if p.limiter != nil {
		res, err := p.limiter.Allow(ctx, "outreach:pace:mailbox:"+mailboxID, p.limit)
		if err == nil {
			return res.Allowed > 0, res.RetryAfter
		}
	}

	return p.allowLocal(mailboxID)
}

func (p *Pacer) allowLocal(mailboxID string) (bool, time.Duration) {
	p.mu.Lock()
	lim, ok := p.local[mailboxID]
	if !ok {
		perSec := float64(p.limit.Rate) / p.limit.Period.Seconds()
		lim = rate.NewLimiter(rate.Limit(perSec), p.limit.Burst)
		p.local[mailboxID] = lim
	}
	p.mu.Unlock()

	if lim.Allow() {
		return true, 0
	}
	return false, p.limit.Period / time.Duration(p.limit.Rate)
}
