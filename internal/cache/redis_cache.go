package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "twilio:cb:"

// RedisReplayCache implements ReplayCache with SET NX and a TTL.
type RedisReplayCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisReplayCache returns a cache whose marks expire after ttl.
func NewRedisReplayCache(rdb *redis.Client, ttl time.Duration) *RedisReplayCache {
	return &RedisReplayCache{rdb: rdb, ttl: ttl}
}

// Seen marks (sid, status) and reports whether it was already marked.
func (c *RedisReplayCache) Seen(ctx context.Context, sid, status string) (bool, error) {
	set, err := c.rdb.SetNX(ctx, key(sid, status), time.Now().UTC().Unix(), c.ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Forget removes the mark for (sid, status).
func (c *RedisReplayCache) Forget(ctx context.Context, sid, status string) error {
	return c.rdb.Del(ctx, key(sid, status)).Err()
}

func key(sid, status string) string {
	return keyPrefix + sid + ":" + status
}
