package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	LeaderboardCacheTTL    = 10 * time.Minute
	LeaderboardCachePrefix = "cache:leaderboard"
	LockTTL                = 2 * time.Minute
	LockKeyPrefix          = "lock:leaderboard"
)

// LeaderboardCache stores rendered leaderboard responses per viewer class.
type LeaderboardCache struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewLeaderboardCache(rdb *redis.Client) *LeaderboardCache {
	return &LeaderboardCache{RDB: rdb, TTL: LeaderboardCacheTTL}
}

func (c *LeaderboardCache) key(leaderboardID uint64, view string) string {
	return fmt.Sprintf("%s:%d:%s", LeaderboardCachePrefix, leaderboardID, view)
}

// Get returns (payload, hit, err). A disabled cache always misses.
func (c *LeaderboardCache) Get(ctx context.Context, leaderboardID uint64, view string) ([]byte, bool, error) {
	if c == nil || c.RDB == nil {
		return nil, false, nil
	}
	b, err := c.RDB.Get(ctx, c.key(leaderboardID, view)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *LeaderboardCache) Set(ctx context.Context, leaderboardID uint64, view string, payload []byte) error {
	if c == nil || c.RDB == nil {
		return nil
	}
	return c.RDB.Set(ctx, c.key(leaderboardID, view), payload, c.TTL).Err()
}

// Invalidate drops every cached view of a leaderboard.
func (c *LeaderboardCache) Invalidate(ctx context.Context, leaderboardID uint64) error {
	if c == nil || c.RDB == nil {
		return nil
	}
	pattern := fmt.Sprintf("%s:%d:*", LeaderboardCachePrefix, leaderboardID)
	iter := c.RDB.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.RDB.Del(ctx, keys...).Err()
}

// DistLock serializes leaderboard recomputation across processes.
type DistLock struct {
	RDB *redis.Client
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// Acquire always succeeds when redis is disabled.
func (l *DistLock) Acquire(ctx context.Context, leaderboardID uint64, token string) (bool, error) {
	if l == nil || l.RDB == nil {
		return true, nil
	}
	key := fmt.Sprintf("%s:%d", LockKeyPrefix, leaderboardID)
	return l.RDB.SetNX(ctx, key, token, LockTTL).Result()
}

// Release deletes the lock only if token still owns it.
func (l *DistLock) Release(ctx context.Context, leaderboardID uint64, token string) error {
	if l == nil || l.RDB == nil {
		return nil
	}
	key := fmt.Sprintf("%s:%d", LockKeyPrefix, leaderboardID)
	return releaseScript.Run(ctx, l.RDB, []string{key}, token).Err()
}
