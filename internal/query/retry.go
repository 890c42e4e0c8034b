package query

import (
	"context"
	"errors"
	"math"
	"time"

	apperrors "github.com/Proton-105/sohaeng-web/internal/errors"
)

const (
	MaxRetries        = 3
	InitialBackoff    = time.Second
	MaxBackoff        = 30 * time.Second
	BackoffMultiplier = 2.0
)

// RetryPolicy decides how failed backend reads are repeated.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// ShouldRetry defaults to ShouldRetry.
	ShouldRetry func(err error) bool

	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries up to three times with 1s, 2s, 4s pauses.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     MaxRetries,
		InitialBackoff: InitialBackoff,
		MaxBackoff:     MaxBackoff,
		Multiplier:     BackoffMultiplier,
	}
}

// ShouldRetry retries every failure except authorization (401/403), local validation,
// cancellation and an open circuit breaker.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, apperrors.ErrCircuitOpen) {
		return false
	}
	if apperrors.IsAuth(err) {
		return false
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code == apperrors.CodeValidation {
		return false
	}

	return true
}

// Retry runs fn until it succeeds, the policy gives up or ctx ends. It returns how many retries happened.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) (int, error) {
	if fn == nil {
		return 0, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = ShouldRetry
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return attempt, err
		}

		err = fn(ctx)
		if err == nil {
			return attempt, nil
		}

		if !shouldRetry(err) || attempt == p.MaxRetries {
			return attempt, err
		}

		if sleepErr := sleep(ctx, p.backoff(attempt)); sleepErr != nil {
			return attempt, err
		}
	}

	return p.MaxRetries, err
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = BackoffMultiplier
	}

	delay := float64(p.InitialBackoff) * math.Pow(multiplier, float64(attempt))
	backoff := time.Duration(delay)
	if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
		return p.MaxBackoff
	}

	return backoff
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
