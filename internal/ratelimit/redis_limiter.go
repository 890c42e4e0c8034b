package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// slidingWindow admits a request when fewer than limit members scored within the
// window remain. Rejected requests are never stored, so they do not extend the window.
// Returns {allowed, count, resetAtMillis}.
var slidingWindow = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. (now - window))

local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window * 2)

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// RedisLimiter keeps one sorted set per key scored by Unix milliseconds.
type RedisLimiter struct {
	client *redis.Client
	log    *slog.Logger
	now    func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, log *slog.Logger) Limiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{client: client, log: log, now: time.Now}
}

func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("ratelimit: redis client is not configured")
	}

	now := l.now()
	if limit <= 0 {
		return &Result{ResetAt: now.Add(window)}, nil
	}

	reply, err := slidingWindow.Run(ctx, l.client,
		[]string{keyPrefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		l.log.DebugContext(ctx, "sliding window script failed", slog.String("key", key), slog.Any("error", err))
		return nil, fmt.Errorf("ratelimit %s: %w", key, err)
	}
	if len(reply) != 3 {
		return nil, fmt.Errorf("ratelimit %s: unexpected reply %v", key, reply)
	}

	return &Result{
		Allowed:   reply[0] == 1,
		Remaining: max(limit-int(reply[1]), 0),
		ResetAt:   time.UnixMilli(reply[2]),
	}, nil
}
