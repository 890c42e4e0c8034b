package metrics

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCursorSource map[string]int

func (f fakeCursorSource) CountByPhase(context.Context) (map[string]int, error) {
	out := make(map[string]int, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out, nil
}

func TestRecordSwipeTransition_DefaultsLabels(t *testing.T) {
	before := testutil.ToFloat64(swipeTransitionsTotal.WithLabelValues("unknown", "exhausted"))
	RecordSwipeTransition("", "exhausted")
	after := testutil.ToFloat64(swipeTransitionsTotal.WithLabelValues("unknown", "exhausted"))

	assert.Equal(t, before+1, after)
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/discover", "GET", "200"))
	RecordHTTPRequest("/discover", "GET", 200, 15*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/discover", "GET", "200")))
}

func TestCursorCollector_Collect(t *testing.T) {
	c := NewCursorCollector(fakeCursorSource{"browsing": 3, "exhausted": 1}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, c.collect(context.Background()))

	assert.Equal(t, 3.0, testutil.ToFloat64(cursorsByPhase.WithLabelValues("browsing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(cursorsByPhase.WithLabelValues("exhausted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(cursorsByPhase.WithLabelValues("empty")))
}
