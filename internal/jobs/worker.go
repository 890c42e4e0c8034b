package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/sohaeng-web/pkg/metrics"
)

// Worker processes queued likes and maintenance tasks.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Start() error
	Shutdown()
}

// taskServer is the part of *asynq.Server the worker drives.
type taskServer interface {
	Start(handler asynq.Handler) error
	Shutdown()
}

type worker struct {
	server taskServer
	mux    *asynq.ServeMux
	log    *slog.Logger
}

var _ Worker = (*worker)(nil)

// NewWorker serves the weighted queues with the given concurrency.
func NewWorker(redisOpt asynq.RedisConnOpt, queues map[string]int, concurrency int, log *slog.Logger) Worker {
	if log == nil {
		log = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}

	asynqLog := newAsynqLogger(log)
	log = log.With(slog.String("component", "jobs"))

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:          queues,
		Concurrency:     concurrency,
		RetryDelayFunc:  asynq.DefaultRetryDelayFunc,
		ErrorHandler:    taskErrorHandler(log),
		Logger:          asynqLog,
		ShutdownTimeout: 10 * time.Second,
	})

	mux := asynq.NewServeMux()
	mux.Use(observeTask(log))

	return &worker{
		server: server,
		mux:    mux,
		log:    log,
	}
}

func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Start begins processing in the background. Unlike asynq's Run it installs no
// signal handler, so Shutdown stays with the caller's shutdown sequence.
func (w *worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	w.log.Info("worker started")
	return nil
}

// Shutdown waits for running tasks up to the server's shutdown timeout.
func (w *worker) Shutdown() {
	w.log.Info("worker stopping")
	w.server.Shutdown()
}

// observeTask records the outcome and duration of every task.
func observeTask(log *slog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			start := time.Now()
			err := next.ProcessTask(ctx, t)
			elapsed := time.Since(start)

			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			metrics.RecordJob(t.Type(), outcome, elapsed)

			log.DebugContext(ctx, "task processed",
				slog.String("task_type", t.Type()),
				slog.String("outcome", outcome),
				slog.Duration("elapsed", elapsed),
			)
			return err
		})
	}
}

// taskErrorHandler logs failures once, with the attempt number asynq tracks.
func taskErrorHandler(log *slog.Logger) asynq.ErrorHandler {
	return asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		taskID, _ := asynq.GetTaskID(ctx)

		level := slog.LevelWarn
		if retried >= maxRetry {
			level = slog.LevelError
		}

		log.Log(ctx, level, "task failed",
			slog.String("task_type", t.Type()),
			slog.String("task_id", taskID),
			slog.Int("retried", retried),
			slog.Int("max_retry", maxRetry),
			slog.Any("error", err),
		)
	})
}
