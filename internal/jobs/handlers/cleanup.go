package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/sohaeng-web/internal/jobs"
)

// Sweeper drops records whose TTL exceeds maxTTL and reports how many went.
type Sweeper interface {
	Sweep(ctx context.Context, maxTTL time.Duration) int
}

type CleanupHandler struct {
	cleaner Sweeper
	log     *slog.Logger
}

func NewCleanupHandler(cleaner Sweeper, log *slog.Logger) *CleanupHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CleanupHandler{cleaner: cleaner, log: log}
}

func (h *CleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.CleanupDataPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", asynq.SkipRetry)
	}

	removed := h.cleaner.Sweep(ctx, payload.OlderThan)
	h.log.InfoContext(ctx, "cleanup finished", slog.Int("removed", removed), slog.Duration("older_than", payload.OlderThan))
	return nil
}
