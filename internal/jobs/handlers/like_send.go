package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	apperrors "github.com/Proton-105/sohaeng-web/internal/errors"
	"github.com/Proton-105/sohaeng-web/internal/jobs"
	"github.com/Proton-105/sohaeng-web/internal/swipe"
	"github.com/Proton-105/sohaeng-web/pkg/metrics"
)

// LikeDeliverer performs the backend call for a like and reports final failures.
type LikeDeliverer interface {
	Deliver(ctx context.Context, job swipe.LikeJob) error
	Fail(ctx context.Context, job swipe.LikeJob, cause error)
}

type LikeSendHandler struct {
	deliverer LikeDeliverer
	log       *slog.Logger
}

func NewLikeSendHandler(deliverer LikeDeliverer, log *slog.Logger) *LikeSendHandler {
	if log == nil {
		log = slog.Default()
	}
	return &LikeSendHandler{deliverer: deliverer, log: log}
}

func (h *LikeSendHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.LikeSendPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "like send: failed to decode payload", slog.String("task_type", t.Type()), slog.String("error", err.Error()))
		return fmt.Errorf("decode payload: %w", asynq.SkipRetry)
	}

	job := payload.Job()

	err := h.deliverer.Deliver(ctx, job)
	if err == nil {
		metrics.RecordLike("queue", "sent")
		return nil
	}

	// an expired or revoked token will not get better
	if apperrors.IsAuth(err) {
		metrics.RecordLike("queue", "failed")
		h.deliverer.Fail(ctx, job, err)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	if lastAttempt(ctx) {
		metrics.RecordLike("queue", "failed")
		h.deliverer.Fail(ctx, job, err)
		return err
	}

	metrics.RecordLike("queue", "retry")
	h.log.WarnContext(ctx, "like send failed, will retry", slog.String("user_id", job.UserID), slog.Any("error", err))
	return err
}

func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}
