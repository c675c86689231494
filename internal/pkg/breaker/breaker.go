// Package breaker stops calling a failing dependency for a cooldown period.
package breaker

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrOpen is returned without calling the request while the breaker is open.
	ErrOpen            = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned once the half-open trial budget is spent.
	ErrTooManyRequests = errors.New("too many requests when circuit breaker is half open")
)

// State is the position of a CircuitBreaker.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	default:
		return "open"
	}
}

// Counts tracks requests in the current state. It is reset on every
// state change.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Settings configures a CircuitBreaker.
type Settings struct {
	Name string
	// MaxConsecutiveFailures trips the breaker
	MaxConsecutiveFailures uint32
	// Cooldown is how long the breaker stays open before a trial request
	Cooldown time.Duration
	// HalfOpenRequests is the number of trial requests let through while half open
	HalfOpenRequests uint32
	// OnStateChange is called with the lock held; keep it cheap
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker guards calls to one dependency. It is safe for concurrent use.
type CircuitBreaker struct {
	settings Settings

	mutex  sync.Mutex
	state  State
	counts Counts
	expiry time.Time
	now    func() time.Time
}

// New creates a closed breaker. Zero settings default to 5 failures, a one
// minute cooldown and a single half-open trial.
func New(s Settings) *CircuitBreaker {
	if s.MaxConsecutiveFailures == 0 {
		s.MaxConsecutiveFailures = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = time.Minute
	}
	if s.HalfOpenRequests == 0 {
		s.HalfOpenRequests = 1
	}
	return &CircuitBreaker{settings: s, state: StateClosed, now: time.Now}
}

// Execute runs req unless the breaker is open. A non-nil error from req
// counts as a failure.
func (cb *CircuitBreaker) Execute(req func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	defer func() {
		if e := recover(); e != nil {
			cb.afterRequest(false)
			panic(e)
		}
	}()

	err := req()
	cb.afterRequest(err == nil)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.currentState(cb.now())
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state := cb.currentState(cb.now())
	if state == StateOpen {
		return ErrOpen
	} else if state == StateHalfOpen && cb.counts.Requests >= cb.settings.HalfOpenRequests {
		return ErrTooManyRequests
	}

	cb.counts.Requests++
	return nil
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state := cb.currentState(cb.now())
	if success {
		cb.onSuccess(state)
	} else {
		cb.onFailure(state)
	}
}

func (cb *CircuitBreaker) onSuccess(state State) {
	cb.counts.TotalSuccesses++
	cb.counts.ConsecutiveSuccesses++
	cb.counts.ConsecutiveFailures = 0

	if state == StateHalfOpen {
		cb.setState(StateClosed)
	}
}

func (cb *CircuitBreaker) onFailure(state State) {
	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	if state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.settings.MaxConsecutiveFailures {
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) currentState(now time.Time) State {
	if cb.state == StateOpen && !cb.expiry.After(now) {
		cb.setState(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) setState(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.counts = Counts{}

	if to == StateOpen {
		cb.expiry = cb.now().Add(cb.settings.Cooldown)
	} else {
		cb.expiry = time.Time{}
	}

	if cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(cb.settings.Name, from, to)
	}
}
