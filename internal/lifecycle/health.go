package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/Proton-105/sohaeng-web/internal/health"
)

var (
	ErrNotStarted = errors.New("server has not started yet")
	ErrDraining   = errors.New("server is draining")
)

// HealthChecker exposes liveness and readiness checks.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) (health.Report, error)
}

// HealthEndpoints reports liveness once the listener is up and readiness while dependencies answer and the server is not draining.
type HealthEndpoints struct {
	checker  *health.Checker
	log      *slog.Logger
	started  atomic.Bool
	draining atomic.Bool
}

var _ HealthChecker = (*HealthEndpoints)(nil)

// NewHealthEndpoints creates a new HealthEndpoints instance.
func NewHealthEndpoints(checker *health.Checker, log *slog.Logger) *HealthEndpoints {
	if log == nil {
		log = slog.Default()
	}
	return &HealthEndpoints{checker: checker, log: log}
}

// MarkStarted is the graceful server's ready hook.
func (p *HealthEndpoints) MarkStarted() { p.started.Store(true) }

// MarkDraining is the graceful server's draining hook.
func (p *HealthEndpoints) MarkDraining() { p.draining.Store(true) }

// Liveness succeeds once the server has started.
func (p *HealthEndpoints) Liveness(ctx context.Context) error {
	if !p.started.Load() {
		return ErrNotStarted
	}
	return nil
}

// Readiness runs the dependency checks.
func (p *HealthEndpoints) Readiness(ctx context.Context) (health.Report, error) {
	if p.draining.Load() {
		return health.Report{}, ErrDraining
	}
	if !p.started.Load() {
		return health.Report{}, ErrNotStarted
	}
	if p.checker == nil {
		return health.Report{OK: true}, nil
	}

	report := p.checker.Check(ctx)
	if !report.OK {
		p.log.Debug("readiness check failed")
		return report, errors.New("dependency check failed")
	}
	return report, nil
}

// LivenessHandler serves /healthz.
func (p *HealthEndpoints) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	if err := p.Liveness(r.Context()); err != nil {
		writeHealth(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeHealth(w, http.StatusOK, map[string]any{"ok": true})
}

// ReadinessHandler serves /readyz.
func (p *HealthEndpoints) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	report, err := p.Readiness(r.Context())
	if err != nil {
		writeHealth(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error(), "components": report.Components})
		return
	}
	writeHealth(w, http.StatusOK, report)
}

func writeHealth(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
