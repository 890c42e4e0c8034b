// Package health runs dependency checks for the readiness endpoint.
package health

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const defaultCheckTimeout = 2 * time.Second

// Checkable represents a component that can report its health status.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to Checkable.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Status is the outcome of one component check.
type Status struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

// Report is the outcome of all checks.
type Report struct {
	OK         bool     `json:"ok"`
	Components []Status `json:"components"`
}

// Checker aggregates health checks for multiple components.
type Checker struct {
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]Checkable
}

// NewChecker instantiates a Checker with the provided logger.
func NewChecker(log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		log:     log,
		timeout: defaultCheckTimeout,
		checks:  make(map[string]Checkable),
	}
}

// AddCheck registers a checkable component by name.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check runs all registered health checks concurrently, each bounded by the checker timeout.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)

	statuses := make([]Status, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		c.mu.RLock()
		check := c.checks[name]
		c.mu.RUnlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses[i] = c.run(ctx, name, check)
		}()
	}
	wg.Wait()

	report := Report{OK: true, Components: statuses}
	for _, s := range statuses {
		if !s.OK {
			report.OK = false
		}
	}
	return report
}

func (c *Checker) run(ctx context.Context, name string, check Checkable) Status {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := check.HealthCheck(checkCtx)
	status := Status{Name: name, OK: err == nil, Latency: time.Since(start).Round(time.Millisecond).String()}
	if err != nil {
		status.Error = err.Error()
		c.log.Error("health check failed", slog.String("component", name), slog.Any("error", err))
	}
	return status
}

// Pinger is implemented by the Redis wrapper and the backend client.
type Pinger interface {
	Ping(ctx context.Context) error
}

var errNotConfigured = errors.New("component is not configured")

// PingChecker reports a component healthy when its Ping succeeds.
type PingChecker struct {
	pinger Pinger
}

// NewPingChecker constructs a PingChecker.
func NewPingChecker(pinger Pinger) *PingChecker {
	return &PingChecker{pinger: pinger}
}

// HealthCheck pings the component.
func (c *PingChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.pinger == nil {
		return errNotConfigured
	}
	return c.pinger.Ping(ctx)
}
