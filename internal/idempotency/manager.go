// Package idempotency makes repeated submissions of the same action run once.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

var ErrRequestInProgress = errors.New("request with this key is already in progress")

const (
	lockTTL      = 30 * time.Second
	pollInterval = 100 * time.Millisecond
)

type Operation func(ctx context.Context) (any, error)

type Result struct {
	Response  json.RawMessage
	FromCache bool
}

// Decode unmarshals the stored or fresh response into v.
func (r *Result) Decode(v any) error {
	if r == nil || len(r.Response) == 0 {
		return nil
	}
	return json.Unmarshal(r.Response, v)
}

type Manager interface {
	// Execute runs fn once per key within ttl. Later calls replay the first result.
	// A failed fn leaves no record, so the action may be retried.
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error)
}

type manager struct {
	store Store
	log   *slog.Logger
}

func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store: store,
		log:   log,
	}
}

func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	for {
		record, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if record != nil && record.Status == StatusCompleted {
			return &Result{Response: record.Response, FromCache: true}, nil
		}

		locked, err := m.store.Lock(ctx, key, lockTTL)
		if err != nil {
			return nil, err
		}

		if !locked {
			if record != nil && record.Status == StatusProcessing {
				return nil, ErrRequestInProgress
			}

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(pollInterval):
				continue
			}
		}

		return m.run(ctx, key, ttl, fn)
	}
}

func (m *manager) run(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	defer func() {
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
			m.log.Warn("idempotency lock release failed", slog.String("key", key), slog.Any("error", err))
		}
	}()

	if err := m.store.Set(ctx, key, &Record{Status: StatusProcessing}, lockTTL); err != nil {
		return nil, err
	}

	result, err := fn(ctx)
	if err != nil {
		if delErr := m.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			m.log.Warn("idempotency record cleanup failed", slog.String("key", key), slog.Any("error", delErr))
		}
		return nil, err
	}

	responseBytes, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	if err := m.store.Set(ctx, key, &Record{
		Status:   StatusCompleted,
		Response: responseBytes,
	}, ttl); err != nil {
		return nil, err
	}

	return &Result{
		Response:  responseBytes,
		FromCache: false,
	}, nil
}
