package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/table-reservation/internal/logger"
)

// fixedWindowScript increments the counter for the current window and sets
// its expiry on first use.  Returns {count, ttl_seconds}.
var fixedWindowScript = redis.NewScript(`
    local key = KEYS[1]
    local ttl_seconds = tonumber(ARGV[1])

    local count = redis.call('INCR', key)
    if count == 1 then
        redis.call('EXPIRE', key, ttl_seconds)
    end
    local ttl = redis.call('TTL', key)

    return { count, ttl }
`)

// RedisFixedWindow shares fixed-window counters across server instances.
// Window ids are embedded in the key so boundaries stay aligned to wall
// clock time on every instance.  Redis failures fail open.
type RedisFixedWindow struct {
	rdb     *redis.Client
	prefix  string
	seconds int64
	max     int
	now     func() time.Time
}

// NewRedisFixedWindow builds a Redis-backed limiter with the same semantics
// as FixedWindow.
func NewRedisFixedWindow(rdb *redis.Client, prefix string, length time.Duration, max int) *RedisFixedWindow {
	secs := int64(length / time.Second)
	if secs < 1 {
		secs = 1
	}
	if max < 1 {
		max = 1
	}
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisFixedWindow{rdb: rdb, prefix: prefix, seconds: secs, max: max, now: time.Now}
}

func (r *RedisFixedWindow) key(identity string, id int64) string {
	return strings.Join([]string{r.prefix, "fw", identity, strconv.FormatInt(id, 10)}, ":")
}

// Take implements Limiter.
func (r *RedisFixedWindow) Take(ctx context.Context, identity string) Decision {
	now := r.now()
	id := now.Unix() / r.seconds
	key := r.key(identity, id)

	vals, err := fixedWindowScript.Run(ctx, r.rdb, []string{key}, r.seconds+1).Int64Slice()
	if err != nil || len(vals) != 2 {
		if err == nil {
			err = fmt.Errorf("unexpected script result length %d", len(vals))
		}
		logger.WarnContext(ctx, "ratelimit: redis unavailable, admitting request", "key", key, "error", err)
		return Decision{Allowed: true, Limit: r.max, Remaining: r.max}
	}

	count := int(vals[0])
	d := Decision{Allowed: count <= r.max, Limit: r.max, Remaining: r.max - count}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = time.Unix((id+1)*r.seconds, 0).Sub(now)
	}
	return d
}
