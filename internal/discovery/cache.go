// AngelaMos | 2026
// cache.go

package discovery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "outreach:discovery:page:"

// CachedProvider memoises provider pages in Redis for a short TTL so a
// campaign retried within the same tick does not pay for the same page
// twice. Cache failures fall through to the provider.
type CachedProvider struct {
	next   Provider
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedProvider(
	next Provider,
	client redis.UniversalClient,
	ttl time.Duration,
	logger *slog.Logger,
) *CachedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *CachedProvider) Search(ctx context.Context, req SearchRequest) (SearchPage, error) {
	if c.ttl <= 0 {
		return c.next.Search(ctx, req)
	}

	key, err := cacheKey(req)
	if err != nil {
		return c.next.Search(ctx, req)
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var page SearchPage
		if jsonErr := json.Unmarshal(raw, &page); jsonErr == nil {
			return page, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("discovery cache read failed", "error", err)
	}

	page, err := c.next.Search(ctx, req)
	if err != nil {
		return SearchPage{}, err
	}

	if encoded, jsonErr := json.Marshal(page); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
			c.logger.Warn("discovery cache write failed", "error", setErr)
		}
	}

	return page, nil
}

// cacheKey hashes the canonical JSON of the request. encoding/json sorts
// map keys, so equal filters always hash the same.
func cacheKey(req SearchRequest) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	sum := sha256.Sum256(b)
	return cacheKeyPrefix + hex.EncodeToString(sum[:]), nil
}

var _ Provider = (*CachedProvider)(nil)
