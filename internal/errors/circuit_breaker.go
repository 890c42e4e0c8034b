package errors

import (
	"errors"
	"sync"
	"time"
)

// Breaker defaults for the matching backend.
const (
	ErrorThreshold      = 0.5
	MinRequests         = 10
	TimeoutDuration     = 30 * time.Second
	HalfOpenMaxRequests = 3
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

var (
	// ErrCircuitOpen is returned without calling the backend while it is considered down.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	errTrialBusy   = errors.New("circuit breaker is testing recovery")
)

// BreakerSettings tunes a CircuitBreaker. Zero fields take the package defaults.
type BreakerSettings struct {
	ErrorThreshold      float64
	MinRequests         int
	OpenTimeout         time.Duration
	HalfOpenMaxRequests int
	// IsFailure decides which errors count against the backend. Client errors such as 404 do not.
	IsFailure func(error) bool
	// OnStateChange is called outside the lock after every transition.
	OnStateChange func(from, to State)
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ErrorThreshold:      ErrorThreshold,
		MinRequests:         MinRequests,
		OpenTimeout:         TimeoutDuration,
		HalfOpenMaxRequests: HalfOpenMaxRequests,
		IsFailure:           IsRetryable,
	}
}

// CircuitBreaker stops calling the backend once the failure rate of a counting
// period crosses ErrorThreshold. After OpenTimeout up to HalfOpenMaxRequests
// trial calls decide between closing again and another open period.
type CircuitBreaker struct {
	mu       sync.Mutex
	settings BreakerSettings
	state    State
	openedAt time.Time

	total    int
	failed   int
	inFlight int
	trialsOK int

	now func() time.Time
}

func NewCircuitBreaker(settings BreakerSettings) *CircuitBreaker {
	d := DefaultBreakerSettings()
	if settings.ErrorThreshold <= 0 {
		settings.ErrorThreshold = d.ErrorThreshold
	}
	if settings.MinRequests <= 0 {
		settings.MinRequests = d.MinRequests
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = d.OpenTimeout
	}
	if settings.HalfOpenMaxRequests <= 0 {
		settings.HalfOpenMaxRequests = d.HalfOpenMaxRequests
	}
	if settings.IsFailure == nil {
		settings.IsFailure = d.IsFailure
	}

	return &CircuitBreaker{settings: settings, now: time.Now}
}

// Call runs fn unless the breaker rejects it. fn's error is returned unchanged.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}

	if err := cb.admit(); err != nil {
		return err
	}

	err := fn()
	cb.record(err != nil && cb.settings.IsFailure(err))
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	from := cb.state

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.settings.OpenTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.moveLocked(StateHalfOpen)
	}

	if cb.state == StateHalfOpen && cb.inFlight+cb.trialsOK >= cb.settings.HalfOpenMaxRequests {
		cb.mu.Unlock()
		cb.notify(from, StateHalfOpen)
		return errTrialBusy
	}

	cb.inFlight++
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return nil
}

func (cb *CircuitBreaker) record(failed bool) {
	cb.mu.Lock()
	from := cb.state
	cb.inFlight--

	switch cb.state {
	case StateHalfOpen:
		if failed {
			cb.moveLocked(StateOpen)
			break
		}
		cb.trialsOK++
		if cb.trialsOK >= cb.settings.HalfOpenMaxRequests {
			cb.moveLocked(StateClosed)
		}
	case StateClosed:
		cb.total++
		if failed {
			cb.failed++
		}
		if cb.total >= cb.settings.MinRequests &&
			float64(cb.failed)/float64(cb.total) >= cb.settings.ErrorThreshold {
			cb.moveLocked(StateOpen)
		}
	}

	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// moveLocked switches state and starts a fresh counting period.
func (cb *CircuitBreaker) moveLocked(to State) {
	cb.state = to
	cb.total, cb.failed, cb.trialsOK = 0, 0, 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(from, to)
	}
}
