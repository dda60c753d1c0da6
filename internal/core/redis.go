// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/creator-outreach/internal/config"
)

type Redis struct {
	Client *redis.Client
}

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = 30 * time.Second
	opts.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // never became usable
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Redis{Client: client}, nil
}

func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.Client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	return nil
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.Client.PoolStats()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// JobLock is a single-holder lease in Redis. Cron endpoints and the worker
// binary take the same key, so overlapping invocations of one job back off
// instead of double-processing.
type JobLock struct {
	client redis.UniversalClient
	prefix string
}

func NewJobLock(client redis.UniversalClient) *JobLock {
	return &JobLock{client: client, prefix: "outreach:lock:"}
}

// Acquire returns a token to pass to Release, or ErrLockContended when
// another runner holds the key.
func (l *JobLock) Acquire(
	ctx context.Context,
	name string,
	ttl time.Duration,
) (string, error) {
	token, err := GenerateToken(16)
	if err != nil {
		return "", err
	}

	ok, err := l.client.SetNX(ctx, l.prefix+name, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return "", fmt.Errorf("acquire lock %s: %w", name, ErrLockContended)
	}

	return token, nil
}

func (l *JobLock) Release(ctx context.Context, name, token string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.prefix + name}, token).Int()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("release lock %s: %w", name, ErrLockNotHeld)
	}
	return nil
}
