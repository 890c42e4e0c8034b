package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/sohaeng-web/internal/api"
	apperrors "github.com/Proton-105/sohaeng-web/internal/errors"
)

func instantPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(client, DefaultStaleTime, instantPolicy(), slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func TestRetry(t *testing.T) {
	testCases := []struct {
		name        string
		err         error
		wantRetries int
		wantCalls   int
	}{
		{"unauthorized is never retried", &api.APIError{Status: http.StatusUnauthorized}, 0, 1},
		{"forbidden is never retried", &api.APIError{Status: http.StatusForbidden}, 0, 1},
		{"validation is never retried", apperrors.NewValidationError("ageMax"), 0, 1},
		{"open circuit fails fast", fmt.Errorf("GET /matches: %w", apperrors.ErrCircuitOpen), 0, 1},
		{"server error retried three times", &api.APIError{Status: http.StatusInternalServerError}, 3, 4},
		{"not found retried like any other failure", &api.APIError{Status: http.StatusNotFound}, 3, 4},
		{"transport error retried", errors.New("connection reset"), 3, 4},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			retries, err := Retry(context.Background(), instantPolicy(), func(context.Context) error {
				calls++
				return tc.err
			})

			assert.Error(t, err)
			assert.Equal(t, tc.wantRetries, retries)
			assert.Equal(t, tc.wantCalls, calls)
		})
	}
}

func TestRetry_SucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	retries, err := Retry(context.Background(), instantPolicy(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &api.APIError{Status: http.StatusBadGateway}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, retries)
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := DefaultRetryPolicy()
	p.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	calls := 0
	_, err := Retry(ctx, p, func(context.Context) error {
		calls++
		return errors.New("flaky")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, time.Second, p.backoff(0))
	assert.Equal(t, 2*time.Second, p.backoff(1))
	assert.Equal(t, 4*time.Second, p.backoff(2))
	assert.Equal(t, MaxBackoff, p.backoff(10))
}

func TestFetch_CachesWhileFresh(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := Key{Scope: "u-1", Resource: "matches"}

	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"m-1"}, nil
	}

	got, err := Fetch(ctx, c, key, load)
	require.NoError(t, err)
	assert.Equal(t, []string{"m-1"}, got)

	_, err = Fetch(ctx, c, key, load)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	mr.FastForward(DefaultStaleTime + time.Second)

	_, err = Fetch(ctx, c, key, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestFetch_KeysByParams(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	a, _ := Fetch(ctx, c, Key{Scope: "u-1", Resource: "recommendations", Params: []string{"2025-W01"}}, load)
	b, _ := Fetch(ctx, c, Key{Scope: "u-1", Resource: "recommendations", Params: []string{"2025-W02"}}, load)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestFetch_DoesNotCacheErrors(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	key := Key{Scope: "u-1", Resource: "me"}

	calls := 0
	_, err := Fetch(ctx, c, key, func(context.Context) (string, error) {
		calls++
		return "", &api.APIError{Status: http.StatusUnauthorized}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	got, err := Fetch(ctx, c, key, func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	matches := Key{Scope: "u-1", Resource: "matches"}
	me := Key{Scope: "u-1", Resource: "me"}
	_, _ = Fetch(ctx, c, matches, load)
	_, _ = Fetch(ctx, c, me, load)

	require.NoError(t, c.Invalidate(ctx, "u-1", "matches"))

	_, _ = Fetch(ctx, c, matches, load)
	_, _ = Fetch(ctx, c, me, load)
	assert.Equal(t, 3, calls)
}

func TestFetch_NilCache(t *testing.T) {
	got, err := Fetch(context.Background(), nil, Key{Resource: "x"}, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestKey_PartsDoNotCollide(t *testing.T) {
	joined := Key{Scope: "u-1", Resource: "recommendations", Params: []string{"a:b"}}
	split := Key{Scope: "u-1", Resource: "recommendations", Params: []string{"a", "b"}}
	assert.NotEqual(t, joined.String(), split.String())

	assert.NotEqual(t, indexKey("u:1", "matches"), indexKey("u", "1:matches"))
}

func TestFetch_ColonInParamsKeepsReadsApart(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	a, err := Fetch(ctx, c, Key{Scope: "u-1", Resource: "recommendations", Params: []string{"a:b"}}, load)
	require.NoError(t, err)
	b, err := Fetch(ctx, c, Key{Scope: "u-1", Resource: "recommendations", Params: []string{"a", "b"}}, load)
	require.NoError(t, err)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}
