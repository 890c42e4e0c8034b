package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_ExecuteOnce(t *testing.T) {
	client, _ := setupTestRedis(t)
	m := NewManager(NewRedisStore(client, testLogger()), testLogger())
	ctx := context.Background()
	key := LikeKey("u-1", "2025-W37", "u-2")

	calls := 0
	op := func(context.Context) (any, error) {
		calls++
		return map[string]string{"status": "sent"}, nil
	}

	first, err := m.Execute(ctx, key, time.Hour, op)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := m.Execute(ctx, key, time.Hour, op)
	require.NoError(t, err)
	assert.True(t, second.FromCache)

	var decoded map[string]string
	require.NoError(t, second.Decode(&decoded))
	assert.Equal(t, "sent", decoded["status"])
	assert.Equal(t, 1, calls)
}

func TestManager_FailureAllowsRetry(t *testing.T) {
	client, _ := setupTestRedis(t)
	m := NewManager(NewRedisStore(client, testLogger()), testLogger())
	ctx := context.Background()

	_, err := m.Execute(ctx, "k", time.Hour, func(context.Context) (any, error) {
		return nil, errors.New("backend down")
	})
	require.Error(t, err)

	res, err := m.Execute(ctx, "k", time.Hour, func(context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
}

func TestManager_InProgress(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRedisStore(client, testLogger())
	m := NewManager(store, testLogger())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "busy", &Record{Status: StatusProcessing}, time.Minute))
	locked, err := store.Lock(ctx, "busy", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	_, err = m.Execute(ctx, "busy", time.Hour, func(context.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrRequestInProgress)
}

func TestLikeKey_Deterministic(t *testing.T) {
	assert.Equal(t, LikeKey("a", "2025-W01", "b"), LikeKey("a", "2025-W01", "b"))
	assert.NotEqual(t, LikeKey("a", "2025-W01", "b"), LikeKey("a", "2025-W02", "b"))
}

func TestCleaner_RemovesKeysWithoutTTL(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.HSet(ctx, keyPrefix+"orphan", "status", StatusCompleted).Err())
	require.NoError(t, client.Set(ctx, keyPrefix+"fresh", "1", time.Hour).Err())

	c := NewCleaner(client, testLogger(), time.Minute, 25*time.Hour)
	assert.Equal(t, 1, c.Cleanup(ctx))

	exists, err := client.Exists(ctx, keyPrefix+"fresh").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestRedisStore_UnreadableRecordIsAbsent(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRedisStore(client, testLogger())
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, keyPrefix+"broken", "{", time.Hour).Err())

	record, err := store.Get(ctx, "broken")
	require.NoError(t, err)
	assert.Nil(t, record)

	exists, err := client.Exists(ctx, keyPrefix+"broken").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestCleaner_SweepWithShorterTTL(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, keyPrefix+"day", "1", 24*time.Hour).Err())
	require.NoError(t, client.Set(ctx, keyPrefix+"minute", "1", time.Minute).Err())

	c := NewCleaner(client, testLogger(), time.Minute, 25*time.Hour)
	assert.Equal(t, 0, c.Cleanup(ctx))
	assert.Equal(t, 1, c.Sweep(ctx, time.Hour))
}

func TestFormKey_PartsAreDelimited(t *testing.T) {
	assert.NotEqual(t, FormKey("ab", "/c", "t"), FormKey("a", "b/c", "t"))
	assert.Len(t, FormKey("u", "/discover", "t"), len("form:")+32)
}
