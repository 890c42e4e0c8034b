package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/sohaeng-web/internal/week"
)

// cleanupCron runs at quarter past every hour, Seoul time.
const cleanupCron = "15 * * * *"

type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type periodicTask struct {
	cronspec string
	task     *asynq.Task
}

type scheduler struct {
	inner        *asynq.Scheduler
	cleanupAfter time.Duration
	log          *slog.Logger
}

// NewScheduler enqueues periodic maintenance. cleanupAfter is the age past which idempotency records are dropped.
func NewScheduler(redisOpt asynq.RedisConnOpt, cleanupAfter time.Duration, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "scheduler"))

	inner := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: week.Seoul,
		Logger:   newAsynqLogger(log),
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Error("periodic task not enqueued", slog.Any("error", err))
				return
			}
			log.Debug("periodic task enqueued", slog.String("task_type", info.Type), slog.String("task_id", info.ID))
		},
	})

	return &scheduler{inner: inner, cleanupAfter: cleanupAfter, log: log}
}

func (s *scheduler) periodicTasks() ([]periodicTask, error) {
	cleanup, err := NewCleanupDataTask(s.cleanupAfter)
	if err != nil {
		return nil, err
	}

	return []periodicTask{{cronspec: cleanupCron, task: cleanup}}, nil
}

func (s *scheduler) RegisterTasks() error {
	tasks, err := s.periodicTasks()
	if err != nil {
		return err
	}

	for _, p := range tasks {
		entryID, err := s.inner.Register(p.cronspec, p.task)
		if err != nil {
			return fmt.Errorf("register %s: %w", p.task.Type(), err)
		}
		s.log.Info("periodic task registered",
			slog.String("task_type", p.task.Type()),
			slog.String("cronspec", p.cronspec),
			slog.String("entry_id", entryID),
		)
	}

	return nil
}

// Run starts the scheduler loop in the background. Stopping is left to Shutdown.
func (s *scheduler) Run() {
	if err := s.inner.Start(); err != nil {
		s.log.Error("scheduler not started", slog.Any("error", err))
	}
}

func (s *scheduler) Shutdown() {
	s.inner.Shutdown()
}
