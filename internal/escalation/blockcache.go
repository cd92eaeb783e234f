package escalation

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// activeBlocklistKey is the Redis set holding every actively blocked IP.
// Enforcement points read this set instead of querying Postgres on the
// hot path.
const activeBlocklistKey = "soclite:blocklist:active"

// BlockCache mirrors the active blocklist into a Redis set.
type BlockCache struct {
	client *redis.Client
}

// NewBlockCache creates a BlockCache from a Redis URL.
func NewBlockCache(url string) (*BlockCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &BlockCache{client: client}, nil
}

// NewBlockCacheWithClient wraps an existing client. Used by tests.
func NewBlockCacheWithClient(client *redis.Client) *BlockCache {
	return &BlockCache{client: client}
}

// Add puts an IP into the active set.
func (c *BlockCache) Add(ctx context.Context, ip string) error {
	if err := c.client.SAdd(ctx, activeBlocklistKey, ip).Err(); err != nil {
		return fmt.Errorf("failed to cache blocked ip: %w", err)
	}
	return nil
}

// Remove takes an IP out of the active set.
func (c *BlockCache) Remove(ctx context.Context, ip string) error {
	if err := c.client.SRem(ctx, activeBlocklistKey, ip).Err(); err != nil {
		return fmt.Errorf("failed to uncache blocked ip: %w", err)
	}
	return nil
}

// Contains reports whether an IP is in the active set.
func (c *BlockCache) Contains(ctx context.Context, ip string) (bool, error) {
	ok, err := c.client.SIsMember(ctx, activeBlocklistKey, ip).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blocked ip: %w", err)
	}
	return ok, nil
}

// Close releases the Redis connection.
func (c *BlockCache) Close() error {
	return c.client.Close()
}
