// AngelaMos | 2026
// pacer_test.go

package mailbox

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close() //nolint:errcheck // test cleanup

	p := NewPacer(rdb, 3)
	ctx := context.Background()

	for range 3 {
		ok, _ := p.Allow(ctx, "mb-1")
		assert.True(t, ok)
	}
	ok, wait := p.Allow(ctx, "mb-1")
	assert.False(t, ok)
	assert.Positive(t, wait)

	ok, _ = p.Allow(ctx, "mb-2")
	assert.True(t, ok)
}

func TestPacerFallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close() //nolint:errcheck // test cleanup
	mr.Close()

	p := NewPacer(rdb, 2)
	ctx := context.Background()

	ok, _ := p.Allow(ctx, "mb-1")
	assert.True(t, ok)
	ok, _ = p.Allow(ctx, "mb-1")
	assert.True(t, ok)
	ok, _ = p.Allow(ctx, "mb-1")
	assert.False(t, ok)
}

func TestPacerDisabled(t *testing.T) {
	p := NewPacer(nil, 0)
	for range 100 {
		ok, _ := p.Allow(context.Background(), "mb")
		require.True(t, ok)
	}
}
