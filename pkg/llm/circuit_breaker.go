package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the current state of the circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Threshold is the number of consecutive transient failures before the circuit trips.
	Threshold int
	// ResetAfter is how long the circuit stays open before a probe is let through.
	ResetAfter time.Duration
}

// DefaultCircuitBreakerConfig returns the defaults used when none are configured.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold:  5,
		ResetAfter: 30 * time.Second,
	}
}

// CircuitBreaker trips open after N consecutive failures and lets a single
// probe through once ResetAfter has elapsed.
type CircuitBreaker struct {
	mu               sync.Mutex
	consecutiveFails int
	threshold        int
	resetAfter       time.Duration
	lastFailure      time.Time
	state            CircuitState
	now              func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.Threshold < 1 {
		config.Threshold = 1
	}
	return &CircuitBreaker{
		threshold:  config.Threshold,
		resetAfter: config.ResetAfter,
		state:      CircuitClosed,
		now:        time.Now,
	}
}

// Allow reports whether a request may proceed.
func (cb *CircuitBreaker) Allow() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true, nil
	case CircuitOpen:
		since := cb.now().Sub(cb.lastFailure)
		if since > cb.resetAfter {
			cb.state = CircuitHalfOpen
			return true, nil
		}
		return false, fmt.Errorf("circuit breaker open: back-end failed %d times in a row, last failure %v ago",
			cb.consecutiveFails, since.Round(time.Second))
	case CircuitHalfOpen:
		return false, fmt.Errorf("circuit breaker half-open: probe request in flight")
	default:
		return false, fmt.Errorf("circuit breaker in unknown state: %v", cb.state)
	}
}

// RecordSuccess resets the failure count and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.state = CircuitClosed
}

// RecordFailure counts a failure and trips the circuit at the threshold.
// A failed half-open probe reopens the circuit immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = cb.now()

	if cb.state == CircuitHalfOpen || cb.consecutiveFails >= cb.threshold {
		cb.state = CircuitOpen
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the current count of consecutive failures.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFails
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.state = CircuitClosed
}

// BreakerGenerator guards a TextGenerator with a CircuitBreaker. While the
// circuit is open calls fail fast with ErrorTypeUnavailable.
type BreakerGenerator struct {
	inner   TextGenerator
	breaker *CircuitBreaker
}

// NewBreakerGenerator wraps inner with breaker.
func NewBreakerGenerator(inner TextGenerator, breaker *CircuitBreaker) *BreakerGenerator {
	return &BreakerGenerator{inner: inner, breaker: breaker}
}

// Generate implements TextGenerator.
func (g *BreakerGenerator) Generate(ctx context.Context, prompt string, systemMessage string, params GenerationParams) (string, error) {
	if ok, err := g.breaker.Allow(); !ok {
		e := NewError(ErrorTypeUnavailable, "circuit open", true, err)
		e.Model = g.inner.ModelID()
		return "", e
	}

	text, err := g.inner.Generate(ctx, prompt, systemMessage, params)
	if err != nil {
		// Only back-end health failures count against the circuit.
		if GetErrorType(err).IsTransient() {
			g.breaker.RecordFailure()
		} else {
			g.breaker.RecordSuccess()
		}
		return "", err
	}
	g.breaker.RecordSuccess()
	return text, nil
}

// ModelID implements TextGenerator.
func (g *BreakerGenerator) ModelID() string {
	return g.inner.ModelID()
}

var _ TextGenerator = (*BreakerGenerator)(nil)
