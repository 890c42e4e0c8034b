// Package query caches backend reads per viewer and applies the retry policy.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/sohaeng-web/pkg/metrics"
)

// DefaultStaleTime is how long a cached read counts as fresh.
const DefaultStaleTime = 5 * time.Minute

// Key identifies a cached read: whose view, which resource, which parameters.
type Key struct {
	Scope    string
	Resource string
	Params   []string
}

// String length-prefixes every part so a ":" inside a part cannot make two keys collide.
func (k Key) String() string {
	return "query:" + joinParts(append([]string{k.Scope, k.Resource}, k.Params...))
}

func indexKey(scope, resource string) string {
	return "query:idx:" + joinParts([]string{scope, resource})
}

func joinParts(parts []string) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte('.')
		b.WriteString(p)
	}
	return b.String()
}

// Cache keeps fresh reads in Redis. A zero Cache or one without a client fetches every time.
type Cache struct {
	client    *redis.Client
	staleTime time.Duration
	retry     RetryPolicy
	log       *slog.Logger
}

func NewCache(client *redis.Client, staleTime time.Duration, retry RetryPolicy, log *slog.Logger) *Cache {
	if staleTime <= 0 {
		staleTime = DefaultStaleTime
	}
	if log == nil {
		log = slog.Default()
	}

	return &Cache{client: client, staleTime: staleTime, retry: retry, log: log}
}

// Fetch returns the cached value for key while fresh, otherwise calls fn under the retry policy and caches
// the result. Cache failures are logged and never fail the read.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if c != nil && c.client != nil {
		if cached, ok := c.get(ctx, key); ok {
			var value T
			if err := json.Unmarshal(cached, &value); err == nil {
				metrics.RecordCacheLookup(key.Resource, true)
				return value, nil
			}
		}
		metrics.RecordCacheLookup(key.Resource, false)
	}

	policy := DefaultRetryPolicy()
	if c != nil {
		policy = c.retry
	}

	var value T
	retries, err := Retry(ctx, policy, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		if c != nil && retries > 0 {
			c.log.WarnContext(ctx, "query failed after retries",
				slog.String("key", key.String()),
				slog.Int("retries", retries),
				slog.Any("error", err),
			)
		}
		return zero, err
	}

	if c != nil && c.client != nil {
		c.set(ctx, key, value)
	}

	return value, nil
}

// Invalidate drops every cached read of resource for scope, e.g. all "matches" reads of one viewer.
func (c *Cache) Invalidate(ctx context.Context, scope, resource string) error {
	if c == nil || c.client == nil {
		return nil
	}

	idx := indexKey(scope, resource)
	keys, err := c.client.SMembers(ctx, idx).Result()
	if err != nil {
		return fmt.Errorf("list cached %s: %w", resource, err)
	}

	keys = append(keys, idx)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate cached %s: %w", resource, err)
	}

	return nil
}

func (c *Cache) get(ctx context.Context, key Key) ([]byte, bool) {
	data, err := c.client.Get(ctx, key.String()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WarnContext(ctx, "query cache read failed", slog.String("key", key.String()), slog.Any("error", err))
		}
		return nil, false
	}

	return data, true
}

func (c *Cache) set(ctx context.Context, key Key, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		c.log.WarnContext(ctx, "query cache encode failed", slog.String("key", key.String()), slog.Any("error", err))
		return
	}

	idx := indexKey(key.Scope, key.Resource)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key.String(), payload, c.staleTime)
	pipe.SAdd(ctx, idx, key.String())
	pipe.Expire(ctx, idx, c.staleTime)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.WarnContext(ctx, "query cache write failed", slog.String("key", key.String()), slog.Any("error", err))
	}
}
