// Package circuitbreaker implements a consecutive-failure circuit breaker
// for the database connection path.
//
// The breaker opens once a configurable number of consecutive failures is
// reached and closes again after a cooldown has elapsed since the last
// failure. Recovery is observed on read: the first IsOpen call after the
// cooldown resets the breaker, and that caller proceeds as the probe.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen is returned by callers that fast-fail while the breaker is
// open. It is distinct from ordinary connection errors so operators can tell
// "the database is down and we are backing off" apart from a single failed
// operation.
var ErrCircuitOpen = errors.New("database circuit breaker is open")

type Settings struct {
	Name          string
	Threshold     int           // consecutive failures before the breaker opens
	Cooldown      time.Duration // time since the last failure before the breaker closes
	OnStateChange func(name string, from State, to State)
}

func DefaultSettings(name string) Settings {
	return Settings{
		Name:      name,
		Threshold: 5,
		Cooldown:  30 * time.Second,
	}
}

type CircuitBreaker struct {
	name          string
	threshold     int
	cooldown      time.Duration
	onStateChange func(name string, from State, to State)

	mutex       sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
}

func NewCircuitBreaker(st Settings) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:          st.Name,
		threshold:     st.Threshold,
		cooldown:      st.Cooldown,
		onStateChange: st.OnStateChange,
	}

	if cb.name == "" {
		cb.name = "CircuitBreaker"
	}

	if cb.threshold <= 0 {
		cb.threshold = 5
	}

	if cb.cooldown <= 0 {
		cb.cooldown = 30 * time.Second
	}

	return cb
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// RecordFailure counts a failure and opens the breaker once the threshold of
// consecutive failures is reached. Failures recorded while already open push
// the cooldown window forward.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.state == StateClosed && cb.failures >= cb.threshold {
		cb.setState(StateOpen)
	}
}

// RecordSuccess resets the consecutive failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures = 0
}

// IsOpen reports whether calls must fast-fail. Reading the state has a side
// effect: once the cooldown since the last failure has elapsed, the breaker
// resets to closed with a zero failure count, and the current caller is
// allowed through as the recovery probe.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state != StateOpen {
		return false
	}

	if time.Since(cb.lastFailure) > cb.cooldown {
		cb.failures = 0
		cb.setState(StateClosed)
		return false
	}

	return true
}

// State reports the stored state without the recovery side effect of IsOpen.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.state
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.failures
}

// LastFailure returns the time of the most recent recorded failure.
func (cb *CircuitBreaker) LastFailure() time.Time {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.lastFailure
}

// setState must be called with the mutex held.
func (cb *CircuitBreaker) setState(state State) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, prev, state)
	}
}
