package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Stage orders shutdown work. Lower stages finish before higher ones start.
type Stage int

const (
	// StageProducers stops everything that can still emit likes or jobs.
	StageProducers Stage = iota
	// StageWorkers drains in-flight deliveries.
	StageWorkers
	// StageStores closes shared clients once nobody uses them.
	StageStores
)

func (s Stage) String() string {
	switch s {
	case StageProducers:
		return "producers"
	case StageWorkers:
		return "workers"
	case StageStores:
		return "stores"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

type hook struct {
	stage Stage
	name  string
	fn    func(context.Context) error
}

// Shutdown runs registered hooks stage by stage under one deadline.
type Shutdown struct {
	mu      sync.Mutex
	hooks   []hook
	log     *slog.Logger
	timeout time.Duration
}

// NewShutdown builds a coordinator. A zero timeout relies on the caller's context deadline.
func NewShutdown(log *slog.Logger, timeout time.Duration) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log, timeout: timeout}
}

// Register adds a hook to a stage. Nil functions are ignored.
func (s *Shutdown) Register(stage Stage, name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, hook{stage: stage, name: name, fn: fn})
}

// Execute runs each stage in order. Hooks of a stage run concurrently and a stage
// cut off by the deadline reports its unfinished hooks; later stages still get a
// short grace period so stores are closed.
func (s *Shutdown) Execute(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.mu.Lock()
	byStage := make(map[Stage][]hook)
	for _, h := range s.hooks {
		byStage[h.stage] = append(byStage[h.stage], h)
	}
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("shutdown started", slog.Int("hooks", len(s.hooks)))

	var errs []error
	for _, stage := range []Stage{StageProducers, StageWorkers, StageStores} {
		hooks := byStage[stage]
		if len(hooks) == 0 {
			continue
		}

		stageCtx := ctx
		if ctx.Err() != nil {
			var cancel context.CancelFunc
			stageCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			defer cancel()
		}

		errs = append(errs, s.runStage(stageCtx, stage, hooks)...)
	}

	s.log.Info("shutdown finished", slog.Duration("elapsed", time.Since(start)), slog.Int("failed", len(errs)))

	return errors.Join(errs...)
}

func (s *Shutdown) runStage(ctx context.Context, stage Stage, hooks []hook) []error {
	log := s.log.With(slog.String("stage", stage.String()))

	results := make(chan error, len(hooks))
	var mu sync.Mutex
	running := make(map[string]struct{}, len(hooks))

	for _, h := range hooks {
		mu.Lock()
		running[h.name] = struct{}{}
		mu.Unlock()

		go func(h hook) {
			err := h.fn(ctx)

			mu.Lock()
			delete(running, h.name)
			mu.Unlock()

			if err != nil {
				log.Error("shutdown hook failed", slog.String("hook", h.name), slog.Any("error", err))
				results <- fmt.Errorf("%s: %w", h.name, err)
				return
			}
			log.Debug("shutdown hook done", slog.String("hook", h.name))
			results <- nil
		}(h)
	}

	var errs []error
	for range hooks {
		select {
		case err := <-results:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			mu.Lock()
			for name := range running {
				errs = append(errs, fmt.Errorf("%s: %w", name, ctx.Err()))
			}
			mu.Unlock()
			return errs
		}
	}

	return errs
}
