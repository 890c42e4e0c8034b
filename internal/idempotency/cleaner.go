package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cleanerBatch = 100

// Cleaner deletes idempotency keys that lost their TTL or carry one longer than maxTTL.
type Cleaner struct {
	client   *redis.Client
	log      *slog.Logger
	interval time.Duration
	maxTTL   time.Duration
}

func NewCleaner(client *redis.Client, log *slog.Logger, interval, maxTTL time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		client:   client,
		log:      log,
		interval: interval,
		maxTTL:   maxTTL,
	}
}

// Run sweeps every interval until ctx ends. Used when no job queue is configured.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.client == nil || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Cleanup(ctx)
		}
	}
}

// Cleanup sweeps with the configured maxTTL.
func (c *Cleaner) Cleanup(ctx context.Context) int {
	return c.Sweep(ctx, c.maxTTL)
}

// Sweep runs one pass and returns the number of deleted keys. A non-positive
// maxTTL falls back to the configured one.
func (c *Cleaner) Sweep(ctx context.Context, maxTTL time.Duration) int {
	if maxTTL <= 0 {
		maxTTL = c.maxTTL
	}

	deleted := 0
	batch := make([]string, 0, cleanerBatch)

	iter := c.client.Scan(ctx, 0, keyPrefix+"*", cleanerBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cleanerBatch {
			deleted += c.sweepBatch(ctx, batch, maxTTL)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		deleted += c.sweepBatch(ctx, batch, maxTTL)
	}

	if err := iter.Err(); err != nil {
		c.log.Error("idempotency scan failed", slog.Any("error", err))
	}
	if deleted > 0 {
		c.log.Info("idempotency keys removed", slog.Int("count", deleted))
	}
	return deleted
}

func (c *Cleaner) sweepBatch(ctx context.Context, keys []string, maxTTL time.Duration) int {
	pipe := c.client.Pipeline()
	ttls := make([]*redis.DurationCmd, len(keys))
	for i, key := range keys {
		ttls[i] = pipe.TTL(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("idempotency ttl lookup failed", slog.Any("error", err))
		return 0
	}

	var stale []string
	for i, cmd := range ttls {
		ttl := cmd.Val()
		// -2 is a key that expired after the scan
		if ttl == -2 {
			continue
		}
		if ttl < 0 || ttl > maxTTL {
			stale = append(stale, keys[i])
		}
	}
	if len(stale) == 0 {
		return 0
	}

	n, err := c.client.Del(ctx, stale...).Result()
	if err != nil {
		c.log.Warn("idempotency delete failed", slog.Any("error", err))
		return 0
	}
	return int(n)
}
