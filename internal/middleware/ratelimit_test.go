// AngelaMos | 2026
// ratelimit_test.go

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterRejectsOverBurst(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rl := NewRateLimiter(rdb, RateLimitConfig{Limit: PerMinute(2, 2)})
	h := rl.Handler(okHandler())

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/v1/queue", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
			assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestLocalLimiter(t *testing.T) {
	l := newLocalLimiter()
	limit := PerMinute(60, 1)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	res, err := l.allow("k", limit, now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Allowed)

	res, err = l.allow("k", limit, now)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)

	res, err = l.allow("other", limit, now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Allowed, "buckets are per key")

	res, err = l.allow("k", limit, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Allowed, "one token refills per second")

	_, err = l.allow("k", PerMinute(0, 1), now)
	assert.Error(t, err)
}

func TestLocalLimiterSweepsIdleBuckets(t *testing.T) {
	l := newLocalLimiter()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	_, err := l.allow("idle", PerMinute(60, 1), now)
	require.NoError(t, err)
	_, err = l.allow("fresh", PerMinute(60, 1), now.Add(2*localBucketTTL))
	require.NoError(t, err)

	assert.NotContains(t, l.buckets, "idle")
	assert.Contains(t, l.buckets, "fresh")
}

func TestKeys(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	assert.Equal(t, "outreach:ratelimit:ip:192.0.2.7", KeyByIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.1, 198.51.100.2")
	assert.Equal(t, "outreach:ratelimit:ip:198.51.100.2", KeyByIP(req))

	ctx := context.WithValue(req.Context(), UserIDKey, "u-1")
	assert.Equal(t, "outreach:ratelimit:user:u-1", KeyByUser(req.WithContext(ctx)))
}

func TestCollapseIDs(t *testing.T) {
	assert.Equal(t,
		"/v1/campaigns/{id}/run",
		collapseIDs("/v1/campaigns/0b8f5c9e-6c1a-4a3e-9f61-0d1e2c3b4a59/run"),
	)
	assert.Equal(t, "/v1/queue/{id}", collapseIDs("/v1/queue/42"))
	assert.Equal(t, "/healthz", collapseIDs("/healthz"))
}
