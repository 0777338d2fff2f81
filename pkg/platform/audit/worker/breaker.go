package worker

import (
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker keeps the sink off an audit store that keeps failing.
// After threshold consecutive failures it opens for cooldown, and the sink
// drops events instead of persisting them. The first event after the
// cooldown is a trial: success closes the breaker, failure reopens it.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	state    breakerState
	failures int
	reopenAt time.Time
}

// NewCircuitBreaker returns a closed breaker. Non-positive arguments fall
// back to 5 failures and a 30s cooldown.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether the next event may reach the store.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == stateOpen {
		if !cb.now().After(cb.reopenAt) {
			return false
		}
		cb.state = stateHalfOpen
	}
	return true
}

// RecordSuccess closes the breaker and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = stateClosed
	cb.failures = 0
}

// RecordFailure counts a failed write and reports whether it opened the
// breaker.
func (cb *CircuitBreaker) RecordFailure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case stateOpen:
		return false
	case stateHalfOpen:
		cb.trip()
		return true
	}
	cb.failures++
	if cb.failures < cb.threshold {
		return false
	}
	cb.trip()
	return true
}

func (cb *CircuitBreaker) trip() {
	cb.state = stateOpen
	cb.failures = cb.threshold
	cb.reopenAt = cb.now().Add(cb.cooldown)
}

// IsOpen reports whether events are currently being dropped.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == stateOpen
}
