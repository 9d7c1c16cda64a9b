package replay

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGuard shares one replay guard across processes, for test grids where
// several workers drive the same application. Keys live under a common
// prefix and may carry a TTL so stale runs age out.
type RedisGuard struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis returns a guard on the given Redis options. A zero ttl means
// recorded keys never expire.
func NewRedis(redisOpts *redis.Options, prefix string, ttl time.Duration) *RedisGuard {
	if prefix == "" {
		prefix = "hydrate:replay:"
	}
	return &RedisGuard{rdb: redis.NewClient(redisOpts), prefix: prefix, ttl: ttl}
}

func (g *RedisGuard) Seen(ctx context.Context, key string) (bool, error) {
	n, err := g.rdb.Exists(ctx, g.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to query replay guard: %w", err)
	}
	return n > 0, nil
}

func (g *RedisGuard) Record(ctx context.Context, key string) error {
	at := time.Now().UTC().Format(time.RFC3339Nano)
	if err := g.rdb.Set(ctx, g.prefix+key, at, g.ttl).Err(); err != nil {
		return fmt.Errorf("failed to record replay key: %w", err)
	}
	return nil
}

func (g *RedisGuard) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := g.rdb.Scan(ctx, 0, g.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan replay guard: %w", err)
	}
	return keys, nil
}

// List returns all recorded completions, newest first.
func (g *RedisGuard) List(ctx context.Context) ([]Entry, error) {
	keys, err := g.keys(ctx)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, full := range keys {
		val, err := g.rdb.Get(ctx, full).Result()
		if err == redis.Nil {
			continue // expired between scan and read
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read replay entry: %w", err)
		}
		at, _ := time.Parse(time.RFC3339Nano, val)
		entries = append(entries, Entry{Key: strings.TrimPrefix(full, g.prefix), CompletedAt: at})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CompletedAt.After(entries[j].CompletedAt)
	})
	return entries, nil
}

// Clear deletes every recorded completion and reports how many were
// removed.
func (g *RedisGuard) Clear(ctx context.Context) (int64, error) {
	keys, err := g.keys(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := g.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to clear replay guard: %w", err)
	}
	return n, nil
}

// Close releases the Redis connection.
func (g *RedisGuard) Close() error {
	return g.rdb.Close()
}
