// Package cache stores opaque byte values in Redis with an expiry.  A nil
// client turns every call into a miss or a no-op, so the service keeps
// working when Redis is down.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/evently/internal/logging"
)

const opTimeout = 500 * time.Millisecond

// Redis implements service.Cache.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// New returns a cache whose keys are namespaced by prefix.  rdb may be nil.
func New(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (c *Redis) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *Redis) enabled() bool { return c != nil && c.rdb != nil }

// Get returns the value for key.  Misses and Redis errors both report false.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.enabled() {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	val, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		return nil, false
	}
	return val, true
}

// Set stores val under key for ttl.
func (c *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if !c.enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := c.rdb.Set(ctx, c.key(key), val, ttl).Err(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// Delete removes keys.
func (c *Redis) Delete(ctx context.Context, keys ...string) {
	if !c.enabled() || len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := c.rdb.Del(ctx, full...).Err(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Strs("keys", keys).Msg("cache delete failed")
	}
}
