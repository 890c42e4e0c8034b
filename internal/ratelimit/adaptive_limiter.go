package ratelimit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_checks_total",
		Help: "Rate limit decisions by backend and result.",
	}, []string{"backend", "result"})

	degradedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ratelimit_degraded",
		Help: "1 while limits are enforced from process memory because Redis fails.",
	})
)

// AdaptiveLimiter asks Redis first. While Redis fails it counts in memory at half
// the configured limit, since every replica then keeps its own window.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	degraded atomic.Bool
	log      *slog.Logger
}

func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) *AdaptiveLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{primary: primary, fallback: fallback, log: log}
}

// Check returns ErrLimitExceeded together with the result when the request is rejected.
func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	result, err := a.primary.Check(ctx, key, limit, window)
	if err == nil {
		a.setDegraded(false, nil)
		return decide("redis", result)
	}

	a.setDegraded(true, err)

	result, err = a.fallback.Check(ctx, key, max(limit/2, 1), window)
	if err != nil {
		return result, err
	}
	return decide("memory", result)
}

// Degraded reports whether the last decision came from memory.
func (a *AdaptiveLimiter) Degraded() bool {
	return a.degraded.Load()
}

// setDegraded logs only on transitions.
func (a *AdaptiveLimiter) setDegraded(on bool, cause error) {
	if a.degraded.Swap(on) == on {
		return
	}

	if on {
		degradedGauge.Set(1)
		a.log.Warn("rate limits fall back to process memory", slog.Any("error", cause))
		return
	}
	degradedGauge.Set(0)
	a.log.Info("rate limits are back on redis")
}

func decide(backend string, result *Result) (*Result, error) {
	if result.Allowed {
		checksTotal.WithLabelValues(backend, "allowed").Inc()
		return result, nil
	}
	checksTotal.WithLabelValues(backend, "rejected").Inc()
	return result, ErrLimitExceeded
}
