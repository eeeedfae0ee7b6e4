// Package breaker isolates failures of unreliable upstream services behind
// a CLOSED/OPEN/HALF_OPEN state machine keyed by service name.
package breaker

import (
	"fmt"
	"sync"
	"time"
)

// State is the breaker position for one service.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// OpenError is returned when a call is refused because the breaker is open.
type OpenError struct {
	Service string
	RetryAt time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %s until %s", e.Service, e.RetryAt.Format(time.RFC3339))
}

// Status is a read-only snapshot of one service's breaker state.
type Status struct {
	State    State
	Failures int
	RetryAt  time.Time
}

type entry struct {
	state    State
	failures int
	retryAt  time.Time
	probing  bool // a half-open trial call is in flight
}

// Registry owns the breaker state for every service key. Entries are
// created lazily on first use and mutated only through Execute, under one
// lock, so concurrent callers never interleave a read-modify-write.
type Registry struct {
	mu               sync.Mutex
	services         map[string]*entry
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time
}

// Option configures Registry construction.
type Option func(*Registry)

// WithFailureThreshold overrides how many consecutive failures open the breaker.
func WithFailureThreshold(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.failureThreshold = n
		}
	}
}

// WithResetTimeout overrides how long an open breaker refuses calls.
func WithResetTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.resetTimeout = d
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry builds a Registry with the default 5-failure threshold and
// 60s reset timeout.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		services:         make(map[string]*entry),
		failureThreshold: 5,
		resetTimeout:     60 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs op under the breaker for the given service key. When the
// breaker is open and the reset timeout has not elapsed, op is not invoked
// and an *OpenError is returned. When the timeout has elapsed exactly one
// trial call is let through; its outcome decides whether the breaker closes
// or re-opens.
func (r *Registry) Execute(service string, op func() error) error {
	if err := r.admit(service); err != nil {
		return err
	}

	err := op()
	r.settle(service, err == nil)
	return err
}

// admit decides atomically whether a call may proceed, transitioning
// OPEN -> HALF_OPEN when the reset timeout has elapsed.
func (r *Registry) admit(service string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.services[service]
	if e == nil {
		e = &entry{}
		r.services[service] = e
	}

	switch e.state {
	case Open:
		if r.now().Before(e.retryAt) {
			return &OpenError{Service: service, RetryAt: e.retryAt}
		}
		e.state = HalfOpen
		e.probing = true
	case HalfOpen:
		if e.probing {
			// Another caller holds the single half-open trial.
			return &OpenError{Service: service, RetryAt: e.retryAt}
		}
		e.probing = true
	}
	return nil
}

// settle applies the outcome of a permitted call.
func (r *Registry) settle(service string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.services[service]
	e.probing = false

	if ok {
		e.state = Closed
		e.failures = 0
		return
	}

	if e.state == HalfOpen {
		e.state = Open
		e.retryAt = r.now().Add(r.resetTimeout)
		return
	}

	e.failures++
	if e.failures >= r.failureThreshold {
		e.state = Open
		e.retryAt = r.now().Add(r.resetTimeout)
	}
}

// Status returns the current breaker snapshot for a service. Unknown keys
// report a closed breaker with zero failures.
func (r *Registry) Status(service string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.services[service]
	if e == nil {
		return Status{}
	}
	return Status{State: e.state, Failures: e.failures, RetryAt: e.retryAt}
}
