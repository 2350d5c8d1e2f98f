// Package breaker implements the per-target circuit breaker from spec
// §4.10: closed → open on consecutive-failure threshold within a window,
// open → half_open after a reset timeout, half_open → closed/open on probe
// outcome.
package breaker

import (
	"sync"
	"time"

	"github.com/feustey/mcp/internal/telemetry"
)

// State is the breaker's external state (spec §3 CircuitBreakerState).
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// gaugeValue is the value CircuitBreakerState reports per spec §4.9.
func (s State) gaugeValue() float64 {
	switch s {
	case Closed:
		return 0
	case Open:
		return 1
	case HalfOpen:
		return 2
	default:
		return -1
	}
}

// Config configures a Breaker (spec §4.10, surfaced via config.BreakerConfig).
type Config struct {
	FailureThreshold  int
	FailureWindow     time.Duration
	ResetTimeout      time.Duration
	HalfOpenMaxProbes int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  5,
		FailureWindow:     60 * time.Second,
		ResetTimeout:      30 * time.Second,
		HalfOpenMaxProbes: 1,
	}
}

// Breaker is a single per-target circuit breaker. Thread-safe; the locked
// critical section is kept to counter/state updates only (spec §5).
type Breaker struct {
	target string
	cfg    Config

	mu               sync.Mutex
	state            State
	failures         []time.Time // failure timestamps within the window
	openedAt         time.Time
	halfOpenInFlight int

	now func() time.Time
}

// New creates a Breaker for target, reporting its initial (closed) state to
// the CircuitBreakerState gauge.
func New(target string, cfg Config) *Breaker {
	b := &Breaker{
		target: target,
		cfg:    cfg,
		state:  Closed,
		now:    time.Now,
	}
	telemetry.CircuitBreakerState.WithLabelValues(target).Set(Closed.gaugeValue())
	return b
}

// Allow reports whether a call should proceed. When it returns true for a
// half-open breaker, the caller has claimed a probe slot and MUST call
// RecordSuccess or RecordFailure exactly once.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
			b.transition(HalfOpen)
			b.halfOpenInFlight = 1
			return true
		}
		return false
	case HalfOpen:
		if b.halfOpenInFlight < b.cfg.HalfOpenMaxProbes {
			b.halfOpenInFlight++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.halfOpenInFlight--
		b.transition(Closed)
		b.failures = nil
	case Closed:
		// a success ends the run of consecutive failures.
		b.failures = nil
	}
}

// RecordFailure records a failed call, possibly tripping the breaker.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	switch b.state {
	case HalfOpen:
		b.halfOpenInFlight--
		b.transition(Open)
		b.openedAt = now
	case Closed:
		b.failures = append(b.failures, now)
		b.failures = pruneWindow(b.failures, now, b.cfg.FailureWindow)
		if len(b.failures) >= b.cfg.FailureThreshold {
			b.transition(Open)
			b.openedAt = now
		}
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to State) {
	b.state = to
	telemetry.CircuitBreakerState.WithLabelValues(b.target).Set(to.gaugeValue())
}

func pruneWindow(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	cut := now.Add(-window)
	out := ts[:0]
	for _, t := range ts {
		if t.After(cut) {
			out = append(out, t)
		}
	}
	return out
}

// Registry owns one Breaker per target, created lazily.
type Registry struct {
	cfg Config
	mu  sync.Mutex
	all map[string]*Breaker
}

// NewRegistry creates a Registry using cfg for every target it creates.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, all: make(map[string]*Breaker)}
}

// Get returns the Breaker for target, creating it on first use.
func (r *Registry) Get(target string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.all[target]; ok {
		return b
	}
	b := New(target, r.cfg)
	r.all[target] = b
	return b
}
