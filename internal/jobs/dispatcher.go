package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Proton-105/sohaeng-web/internal/swipe"
	"github.com/Proton-105/sohaeng-web/pkg/logger"
	"github.com/Proton-105/sohaeng-web/pkg/metrics"
)

// LikeDispatcher hands likes to the queue. The worker delivers them with retries.
type LikeDispatcher struct {
	manager Manager
	log     *slog.Logger
}

var _ swipe.Dispatcher = (*LikeDispatcher)(nil)

func NewLikeDispatcher(manager Manager, log *slog.Logger) *LikeDispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &LikeDispatcher{manager: manager, log: log}
}

func (d *LikeDispatcher) Dispatch(ctx context.Context, job swipe.LikeJob) error {
	if job.CorrelationID == "" {
		job.CorrelationID = logger.CorrelationIDFromContext(ctx)
	}

	task, err := NewLikeSendTask(job)
	if err != nil {
		return fmt.Errorf("build like task: %w", err)
	}

	info, err := d.manager.Enqueue(ctx, task)
	if errors.Is(err, ErrAlreadyQueued) {
		metrics.RecordLike("queue", "duplicate")
		d.log.DebugContext(ctx, "like already queued", slog.String("user_id", job.UserID))
		return nil
	}
	if err != nil {
		metrics.RecordLike("queue", "enqueue_failed")
		return fmt.Errorf("enqueue like: %w", err)
	}

	metrics.RecordLike("queue", "enqueued")
	d.log.DebugContext(ctx, "like enqueued", slog.String("task_id", info.ID), slog.String("user_id", job.UserID))
	return nil
}
