package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cleanerScanCount  = 200
	defaultCleanerAge = 5 * time.Minute
)

// Cleaner drops stale limiter state. Redis sets lose members older than maxAge and
// vanish once empty. maxAge must cover the widest configured window.
type Cleaner struct {
	client   *redis.Client
	memory   *MemoryLimiter
	interval time.Duration
	maxAge   time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// NewCleaner sweeps Redis and, when memory is set, the in-process fallback windows.
func NewCleaner(client *redis.Client, memory *MemoryLimiter, log *slog.Logger, interval, maxAge time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	if maxAge <= 0 {
		maxAge = defaultCleanerAge
	}

	return &Cleaner{
		client:   client,
		memory:   memory,
		interval: interval,
		maxAge:   maxAge,
		log:      log,
		now:      time.Now,
	}
}

func (c *Cleaner) Run(ctx context.Context) {
	if c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := c.Cleanup(ctx)
			if c.memory != nil {
				removed += c.memory.Prune()
			}
			if removed > 0 {
				c.log.Debug("rate limit state cleaned", slog.Int("removed", removed))
			}
		}
	}
}

// Cleanup sweeps Redis once and returns how many keys it emptied.
func (c *Cleaner) Cleanup(ctx context.Context) int {
	if c.client == nil {
		return 0
	}

	cutoff := fmt.Sprintf("(%d", c.now().Add(-c.maxAge).UnixMilli())
	removed := 0

	iter := c.client.Scan(ctx, 0, keyPrefix+"*", cleanerScanCount).Iterator()
	var batch []string
	flush := func() {
		if len(batch) == 0 {
			return
		}
		removed += c.sweep(ctx, batch, cutoff)
		batch = batch[:0]
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cleanerScanCount {
			flush()
		}
	}
	flush()

	if err := iter.Err(); err != nil {
		c.log.Warn("rate limit scan stopped", slog.Any("error", err))
	}
	return removed
}

// sweep trims a batch of keys in one pipeline. Redis drops a sorted set once its
// last member goes, so a key counts as removed when the trim emptied it.
func (c *Cleaner) sweep(ctx context.Context, keys []string, cutoff string) int {
	pipe := c.client.Pipeline()
	trims := make([]*redis.IntCmd, len(keys))
	cards := make([]*redis.IntCmd, len(keys))
	for i, key := range keys {
		trims[i] = pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
		cards[i] = pipe.ZCard(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("rate limit sweep failed", slog.Int("keys", len(keys)), slog.Any("error", err))
		return 0
	}

	removed := 0
	for i := range keys {
		if trims[i].Val() > 0 && cards[i].Val() == 0 {
			removed++
		}
	}
	return removed
}
