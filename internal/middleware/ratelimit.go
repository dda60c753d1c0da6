// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/creator-outreach/internal/core"
)

const rateLimitPrefix = "outreach:ratelimit:"

var rateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "outreach_http_rate_limited_total",
		Help: "Requests rejected by the API rate limiter",
	},
	[]string{"scope"},
)

type RateLimitConfig struct {
	Limit    redis_rate.Limit
	KeyFunc  func(*http.Request) string
	FailOpen bool
}

// RateLimiter is the per-client limit applied to every route. Redis is
// authoritative; when it errors, an in-process token bucket takes over.
type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	config   RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	return &RateLimiter{
		limiter:  redis_rate.NewLimiter(rdb),
		fallback: newLocalLimiter(),
		config:   cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.config.KeyFunc(r)
		res, err := allow(r.Context(), rl.limiter, rl.fallback, key, rl.config.Limit)
		if err != nil {
			if rl.config.FailOpen {
				slog.Warn("rate limiter unavailable, allowing request", "error", err, "key", key)
				next.ServeHTTP(w, r)
				return
			}
			core.ServiceUnavailable(w, "rate limiter unavailable")
			return
		}

		setRateLimitHeaders(w, res, rl.config.Limit)
		if res.Allowed == 0 {
			rateLimitedTotal.WithLabelValues("client").Inc()
			writeRateLimited(w, res)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func allow(
	ctx context.Context,
	limiter *redis_rate.Limiter,
	fallback *localLimiter,
	key string,
	limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	res, err := limiter.Allow(ctx, key, limit)
	if err == nil {
		return res, nil
	}
	return fallback.allow(key, limit, time.Now())
}

// KeyByIP trusts the last X-Forwarded-For hop, which is the one our own
// proxy appended.
func KeyByIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return rateLimitPrefix + "ip:" + strings.TrimSpace(hops[len(hops)-1])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return rateLimitPrefix + "ip:" + xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return rateLimitPrefix + "ip:" + ip
}

func KeyByUser(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return rateLimitPrefix + "user:" + userID
	}
	return KeyByIP(r)
}

func setRateLimitHeaders(w http.ResponseWriter, res *redis_rate.Result, limit redis_rate.Limit) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
}

func writeRateLimited(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := max(int(res.RetryAfter.Seconds()), 1)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	core.JSON(w, http.StatusTooManyRequests, core.Response{
		Success: false,
		Error: &core.ErrorBody{
			Code:    "RATE_LIMITED",
			Message: fmt.Sprintf("rate limit exceeded, retry after %d seconds", retryAfter),
		},
	})
}

// localLimiter keeps one token bucket per key. Idle buckets are swept
// lazily on access instead of by a background goroutine.
type localLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	lastSweep time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const localBucketTTL = 10 * time.Minute

func newLocalLimiter() *localLimiter {
	return &localLimiter{buckets: make(map[string]*localBucket)}
}

func (l *localLimiter) allow(
	key string,
	limit redis_rate.Limit,
	now time.Time,
) (*redis_rate.Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("local rate limit: invalid limit %s", limit)
	}
	perSecond := float64(limit.Rate) / limit.Period.Seconds()
	interval := time.Duration(float64(time.Second) / perSecond)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > localBucketTTL {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > localBucketTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(rate.Limit(perSecond), max(limit.Burst, 1))}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := &redis_rate.Result{Limit: limit, RetryAfter: -1, ResetAfter: interval}
	if b.limiter.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.RetryAfter = interval
	}
	res.Remaining = max(int(b.limiter.TokensAt(now)), 0)
	return res, nil
}

type PlanLimit struct {
	RequestsPerMinute int
	BurstSize         int
}

// DefaultPlanLimits mirror the sending plans: accounts that may queue more
// outreach also get more API headroom.
var DefaultPlanLimits = map[string]PlanLimit{
	"free":       {RequestsPerMinute: 60, BurstSize: 10},
	"basic":      {RequestsPerMinute: 120, BurstSize: 20},
	"pro":        {RequestsPerMinute: 300, BurstSize: 50},
	"growth":     {RequestsPerMinute: 600, BurstSize: 100},
	"scale":      {RequestsPerMinute: 1200, BurstSize: 200},
	"enterprise": {RequestsPerMinute: 6000, BurstSize: 1000},
}

// PlanRateLimiter must run after Authenticator so the plan claim is set.
// Unknown plans fall back to the free limit.
func PlanRateLimiter(
	rdb *redis.Client,
	plans map[string]PlanLimit,
) func(http.Handler) http.Handler {
	limiter := redis_rate.NewLimiter(rdb)
	fallback := newLocalLimiter()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			plan := GetUserPlan(r.Context())
			cfg, ok := plans[plan]
			if !ok {
				plan = "free"
				cfg = plans[plan]
			}

			limit := PerMinute(cfg.RequestsPerMinute, cfg.BurstSize)
			res, err := allow(r.Context(), limiter, fallback, KeyByUser(r), limit)
			if err != nil {
				slog.Warn("plan rate limiter unavailable, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Plan", plan)
			setRateLimitHeaders(w, res, limit)
			if res.Allowed == 0 {
				rateLimitedTotal.WithLabelValues("plan").Inc()
				writeRateLimited(w, res)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func PerMinute(requests, burst int) redis_rate.Limit {
	return PerWindow(requests, burst, time.Minute)
}

func PerWindow(requests, burst int, window time.Duration) redis_rate.Limit {
	if window <= 0 {
		window = time.Minute
	}
	return redis_rate.Limit{Rate: requests, Burst: burst, Period: window}
}
