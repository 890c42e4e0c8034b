// Package metrics exposes Prometheus collectors for pages, backend calls and the swipe flow.
package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests labeled by route pattern, method and status",
		},
		[]string{"route", "method", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total number of matching backend calls labeled by endpoint and status code",
		},
		[]string{"endpoint", "status"},
	)
	backendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Latency of matching backend calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	swipeTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swipe_transitions_total",
			Help: "Total number of swipe flow transitions",
		},
		[]string{"from", "to"},
	)
	likesDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "likes_dispatched_total",
			Help: "Outbound likes by delivery mode and outcome",
		},
		[]string{"mode", "outcome"},
	)
	jobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Background tasks handled by the worker, by task type and outcome",
		},
		[]string{"task", "outcome"},
	)
	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Time spent handling one background task",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"},
	)
	queryCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_total",
			Help: "Query cache lookups by resource and result",
		},
		[]string{"resource", "result"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by code and severity",
		},
		[]string{"code", "severity"},
	)
	cursorsByPhase = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swipe_cursors_by_phase",
			Help: "Number of stored swipe cursors per phase",
		},
		[]string{"phase"},
	)
)

var trackedPhases = []string{"empty", "browsing", "exhausted"}

// RecordHTTPRequest tracks one handled page or endpoint request.
func RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}

	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordBackendRequest tracks a call to the matching backend. status 0 means a transport failure.
func RecordBackendRequest(endpoint string, status int, duration time.Duration) {
	if endpoint == "" {
		endpoint = "unknown"
	}

	backendRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	backendRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordSwipeTransition tracks swipe flow phase changes.
func RecordSwipeTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	swipeTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordLike tracks a like delivery attempt.
func RecordLike(mode, outcome string) {
	likesDispatchedTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordJob tracks one processed background task.
func RecordJob(task, outcome string, duration time.Duration) {
	jobsProcessedTotal.WithLabelValues(task, outcome).Inc()
	jobDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// RecordCacheLookup tracks hits and misses of the query cache.
func RecordCacheLookup(resource string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}

	queryCacheTotal.WithLabelValues(resource, result).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(code, severity string) {
	if code == "" {
		code = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(code, severity).Inc()
}

// CursorSource counts stored swipe cursors per phase.
type CursorSource interface {
	CountByPhase(ctx context.Context) (map[string]int, error)
}

// CursorCollector periodically gathers swipe cursor phases and emits gauge metrics.
type CursorCollector struct {
	source   CursorSource
	log      *slog.Logger
	interval time.Duration
}

// NewCursorCollector builds a collector bound to the provided cursor store.
func NewCursorCollector(source CursorSource, log *slog.Logger) *CursorCollector {
	if log == nil {
		log = slog.Default()
	}

	return &CursorCollector{source: source, log: log, interval: 30 * time.Second}
}

// Run polls the cursor store until ctx is cancelled.
func (c *CursorCollector) Run(ctx context.Context) {
	if c == nil || c.source == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.collect(ctx); err != nil {
			c.log.Warn("cursor metrics collection failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *CursorCollector) collect(ctx context.Context) error {
	counts, err := c.source.CountByPhase(ctx)
	if err != nil {
		return err
	}

	for _, phase := range trackedPhases {
		cursorsByPhase.WithLabelValues(phase).Set(float64(counts[phase]))
		delete(counts, phase)
	}
	for phase, n := range counts {
		cursorsByPhase.WithLabelValues(phase).Set(float64(n))
	}

	return nil
}
