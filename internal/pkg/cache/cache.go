// Package cache holds small helpers around go-redis for read-through JSON
// caching. A nil client turns every call into a miss or a no-op.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"rentcore/internal/logging"
)

func GetJSON(ctx context.Context, rdb *redis.Client, key string, dest interface{}) bool {
	if rdb == nil {
		return false
	}
	cached, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).Warn("cache read failed", "key", key, "error", err)
		}
		return false
	}
	return json.Unmarshal([]byte(cached), dest) == nil
}

func SetJSON(ctx context.Context, rdb *redis.Client, key string, value interface{}, ttl time.Duration) {
	if rdb == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		logging.FromContext(ctx).Warn("cache write failed", "key", key, "error", err)
	}
}

func Delete(ctx context.Context, rdb *redis.Client, keys ...string) {
	if rdb == nil || len(keys) == 0 {
		return
	}
	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		logging.FromContext(ctx).Warn("cache delete failed", "keys", keys, "error", err)
	}
}

const (
	// CalendarPrefix namespaces cached calendar views. Any write that can
	// change an approved window bumps its generation.
	CalendarPrefix = "reservations:calendar"
	// PendingCountsKey holds the admin pending-request counters.
	PendingCountsKey = "admin:requests:count"
)

// Generation namespaces a family of keys under a counter. Bumping the
// counter orphans every key built from the previous value; they expire by TTL.
type Generation struct {
	rdb    *redis.Client
	prefix string
}

func NewGeneration(rdb *redis.Client, prefix string) *Generation {
	return &Generation{rdb: rdb, prefix: prefix}
}

func (g *Generation) counterKey() string {
	return g.prefix + ":gen"
}

// Key returns prefix:v<gen>:<parts...>.
func (g *Generation) Key(ctx context.Context, parts ...string) string {
	var gen int64
	if g.rdb != nil {
		n, err := g.rdb.Get(ctx, g.counterKey()).Int64()
		if err == nil {
			gen = n
		}
	}
	return fmt.Sprintf("%s:v%d:%s", g.prefix, gen, strings.Join(parts, ":"))
}

func (g *Generation) Bump(ctx context.Context) {
	if g.rdb == nil {
		return
	}
	if err := g.rdb.Incr(ctx, g.counterKey()).Err(); err != nil {
		logging.FromContext(ctx).Warn("cache invalidation failed", "prefix", g.prefix, "error", err)
	}
}
