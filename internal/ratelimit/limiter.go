// Package ratelimit implements the sliding window limits of the login, like and admin routes.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrLimitExceeded is returned by limiters that report a rejection as an error.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Result is one sliding window decision.
type Result struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the oldest counted request leaves the window.
	ResetAt time.Time
}

// RetryAfter is the Retry-After value in whole seconds, never below one.
func (r *Result) RetryAfter(now time.Time) int {
	if r == nil || r.ResetAt.IsZero() {
		return 1
	}
	secs := int(math.Ceil(r.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter counts requests of key within window.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
