package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// IndexCache stores built indexes by catalog version. Get returns nil, nil on a miss.
type IndexCache interface {
	Get(ctx context.Context, version string) (*Index, error)
	Set(ctx context.Context, version string, ix *Index, ttl time.Duration) error
}

const indexKeyPrefix = "recommend:index:"

// RedisIndexCache keeps JSON index snapshots in Redis.
type RedisIndexCache struct {
	rdb redis.UniversalClient
}

// NewRedisIndexCache creates a cache on an existing client.
func NewRedisIndexCache(rdb redis.UniversalClient) *RedisIndexCache {
	return &RedisIndexCache{rdb: rdb}
}

// Get loads the index cached for version.
func (c *RedisIndexCache) Get(ctx context.Context, version string) (*Index, error) {
	data, err := c.rdb.Get(ctx, indexKeyPrefix+version).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached index: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode cached index: %w", err)
	}
	return FromSnapshot(snap)
}

// Set stores ix under version for ttl.
func (c *RedisIndexCache) Set(ctx context.Context, version string, ix *Index, ttl time.Duration) error {
	data, err := json.Marshal(ix.Snapshot())
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := c.rdb.Set(ctx, indexKeyPrefix+version, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache index: %w", err)
	}
	return nil
}
