package metadata

import (
	"sync"
	"time"
)

// BreakerState represents the state of a circuit breaker
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"    // Normal operation
	BreakerOpen     BreakerState = "open"      // Failing, calls blocked
	BreakerHalfOpen BreakerState = "half_open" // Testing if the service recovered
)

// BreakerConfig contains circuit breaker configuration
type BreakerConfig struct {
	FailureThreshold int           // Consecutive failures before opening
	RecoveryTimeout  time.Duration // Time to wait before trying half-open
	SuccessThreshold int           // Successes needed to close from half-open
}

// DefaultBreakerConfig returns default configuration
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 1,
	}
}

// CircuitBreaker stops calling the metadata service after repeated
// failures so bulk ingestion does not wait on a dead endpoint.
type CircuitBreaker struct {
	config    BreakerConfig
	state     BreakerState
	failures  int
	successes int
	openUntil time.Time
	now       func() time.Time
	mu        sync.Mutex
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	defaults := DefaultBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = defaults.RecoveryTimeout
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	return &CircuitBreaker{
		config: config,
		state:  BreakerClosed,
		now:    time.Now,
	}
}

// Allow reports whether a call may go through
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerOpen:
		if cb.now().Before(cb.openUntil) {
			return false
		}
		cb.state = BreakerHalfOpen
		cb.successes = 0
		return true
	default:
		return true
	}
}

// RecordSuccess records a successful call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.failures = 0
	case BreakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.state = BreakerClosed
			cb.failures = 0
			cb.successes = 0
		}
	}
}

// RecordFailure records a failed call
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	switch cb.state {
	case BreakerClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.open()
		}
	case BreakerHalfOpen:
		// Any failure in half-open reopens the circuit
		cb.open()
	}
}

func (cb *CircuitBreaker) open() {
	cb.state = BreakerOpen
	cb.openUntil = cb.now().Add(cb.config.RecoveryTimeout)
	cb.successes = 0
}

// State returns the current state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerOpen && !cb.now().Before(cb.openUntil) {
		return BreakerHalfOpen
	}
	return cb.state
}
