package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PingsAndRecordsMetrics(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := New(ctx, Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	before := testutil.ToFloat64(redisRequestsTotal.WithLabelValues("set"))
	require.NoError(t, client.Set(ctx, "k", "v", time.Minute).Err())
	after := testutil.ToFloat64(redisRequestsTotal.WithLabelValues("set"))

	assert.Equal(t, before+1, after)
	assert.NoError(t, client.Ping(ctx))
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := New(ctx, Config{Addr: "127.0.0.1:1", MaxRetries: -1})
	assert.Error(t, err)
}
