// Package breaker implements a circuit breaker guarding calls to one
// embedding backend.
//
// A Breaker starts closed. FailureThreshold consecutive failures open it;
// while open, CanExecute refuses calls until ResetTimeout has elapsed since
// the last failure. The first CanExecute after the cooldown moves the breaker
// to half open and grants a single trial call. A successful trial closes the
// breaker; a failed trial reopens it.
//
// All transitions happen under one mutex, so concurrent callers never both
// receive the half open trial.
package breaker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config holds breaker thresholds.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	// Default: 5
	FailureThreshold int

	// ResetTimeout is the cooldown after the last failure before a trial call is allowed.
	// Default: 60s
	ResetTimeout time.Duration
}

// DefaultConfig returns the default breaker thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
	}
}

// Validate checks that the thresholds are usable.
func (c Config) Validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("%w: FailureThreshold must be at least 1", ErrInvalidConfig)
	}
	if c.ResetTimeout <= 0 {
		return fmt.Errorf("%w: ResetTimeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Breaker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Breaker tracks failures of one backend. Safe for concurrent use.
type Breaker struct {
	name   string
	config Config
	now    func() time.Time
	logger *slog.Logger

	mu            sync.Mutex
	state         State
	failureCount  int
	lastFailure   time.Time
	trialInFlight bool
}

// New creates a closed breaker for the named backend.
func New(name string, config Config, opts ...Option) (*Breaker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b := &Breaker{
		name:   name,
		config: config,
		now:    time.Now,
		logger: slog.Default(),
		state:  StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "breaker", "backend", name)
	return b, nil
}

// Name returns the backend name the breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// CanExecute reports whether a call may be made now. When the cooldown of an
// open breaker has elapsed it moves to half open and grants the caller the
// only trial slot; the caller must then report the outcome with
// RecordSuccess, RecordFailure or Abandon.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) <= b.config.ResetTimeout {
			return false
		}
		b.state = StateHalfOpen
		b.trialInFlight = true
		b.logger.Info("circuit half open, allowing trial call")
		return true
	case StateHalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	}
	return false
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateClosed {
		b.logger.Info("circuit closed", "previous", b.state)
	}
	b.state = StateClosed
	b.failureCount = 0
	b.trialInFlight = false
}

// RecordFailure counts a failed call. A failed trial reopens the breaker; in
// the closed state reaching the threshold opens it. A failure reported while
// open comes from a call started before the breaker opened: it is counted but
// does not move the cooldown.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	if b.state == StateOpen {
		return
	}
	b.lastFailure = b.now()

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.trialInFlight = false
		b.logger.Warn("trial call failed, circuit reopened", "failures", b.failureCount)
	case StateClosed:
		if b.failureCount >= b.config.FailureThreshold {
			b.state = StateOpen
			b.logger.Warn("circuit opened", "failures", b.failureCount, "threshold", b.config.FailureThreshold)
		}
	}
}

// Abandon releases a granted trial slot without recording an outcome, for
// callers cancelled before their call finished.
func (b *Breaker) Abandon() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trialInFlight = false
}

// Reset forces the breaker back to closed. Administrative use only.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failureCount = 0
	b.lastFailure = time.Time{}
	b.trialInFlight = false
}

// Snapshot is a point in time copy of the breaker state.
type Snapshot struct {
	Name             string
	State            State
	FailureCount     int
	LastFailure      *time.Time
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Snapshot returns the current state. The state is not advanced: an open
// breaker whose cooldown elapsed still reports open until CanExecute runs.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Snapshot{
		Name:             b.name,
		State:            b.state,
		FailureCount:     b.failureCount,
		FailureThreshold: b.config.FailureThreshold,
		ResetTimeout:     b.config.ResetTimeout,
	}
	if !b.lastFailure.IsZero() {
		last := b.lastFailure
		s.LastFailure = &last
	}
	return s
}
