package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// ErrAlreadyQueued reports that a task with the same id is still waiting in the queue.
var ErrAlreadyQueued = errors.New("jobs: task already queued")

// Manager enqueues background tasks.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager on an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log.With(slog.String("component", "jobs")),
	}
}

// Enqueue maps asynq's duplicate errors to ErrAlreadyQueued so callers can treat a
// second like on the same card as delivered.
func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := m.client.EnqueueContext(ctx, task, opts...)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict), errors.Is(err, asynq.ErrDuplicateTask):
		m.log.DebugContext(ctx, "task already queued", slog.String("task_type", task.Type()))
		return nil, ErrAlreadyQueued
	case err != nil:
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}

	m.log.DebugContext(ctx, "task enqueued",
		slog.String("task_type", task.Type()),
		slog.String("task_id", info.ID),
		slog.String("queue", info.Queue),
	)
	return info, nil
}

func (m *manager) Close() error {
	return m.client.Close()
}
