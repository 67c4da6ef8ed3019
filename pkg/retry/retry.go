// Package retry holds backoff helpers and the retry decision used by the
// generation loop.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff
type Config struct {
	MaxRetries       int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	Multiplier       float64
	JitterFactor     float64 // 0.0-1.0; 0.1 gives +/-10%
	MaxSameErrorType int     // After N consecutive same-type errors, treat as permanent (default: 5)
}

// DefaultConfig returns the defaults for back-end calls:
// 3 retries with 500ms initial delay, capped at 10s, doubling each time, with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:       3,
		InitialDelay:     500 * time.Millisecond,
		MaxDelay:         10 * time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 5,
	}
}

// applyJitter returns delay +/- (delay * jitterFactor * random(-1 to +1)).
func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// Backoff returns the delay before retry n (1-based):
// InitialDelay * Multiplier^(n-1), capped at MaxDelay, then jittered.
func Backoff(cfg *Config, n int) time.Duration {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if n < 1 {
		n = 1
	}
	mult := cfg.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(cfg.InitialDelay) * math.Pow(mult, float64(n-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return applyJitter(time.Duration(delay), cfg.JitterFactor)
}

// Wait sleeps for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Kind is the failure category of one generation attempt.
type Kind int

const (
	// KindTransient covers Unavailable, RateLimited and Timeout.
	KindTransient Kind = iota
	// KindInvalidResponse is output that could not be parsed.
	KindInvalidResponse
	// KindValidationFailed is SQL that failed static checks after repair.
	KindValidationFailed
	// KindFatal is a failure no retry can fix (auth, unknown model).
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindInvalidResponse:
		return "invalid_response"
	case KindValidationFailed:
		return "validation_failed"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Limits caps retries per failure family.
type Limits struct {
	TransientMax  int
	ValidationMax int
}

// Counts tallies the failures a slot has seen so far, including the current one.
type Counts struct {
	Transient int
	Content   int // invalid responses and failed validations share one budget
}

// Record returns counts with one more failure of kind k.
func (c Counts) Record(k Kind) Counts {
	switch k {
	case KindTransient:
		c.Transient++
	case KindInvalidResponse, KindValidationFailed:
		c.Content++
	}
	return c
}

// Decision is the outcome of Decide.
type Decision struct {
	Retry bool
	// BackoffN is the 1-based retry number to pass to Backoff; zero means
	// retry immediately.
	BackoffN int
}

// Decide reports whether a slot should try again after a failure of kind k.
// counts must already include the failure being decided on.
// Transient failures back off exponentially; content failures retry at once
// with a varied prompt.
func Decide(k Kind, counts Counts, limits Limits) Decision {
	switch k {
	case KindTransient:
		if counts.Transient <= limits.TransientMax {
			return Decision{Retry: true, BackoffN: counts.Transient}
		}
	case KindInvalidResponse, KindValidationFailed:
		if counts.Content <= limits.ValidationMax {
			return Decision{Retry: true}
		}
	}
	return Decision{}
}

// RetryableError is implemented by errors that declare their own retryability.
type RetryableError interface {
	error
	IsRetryable() bool
}

// IsRetryable determines if an error is transient and worth retrying.
// Errors implementing RetryableError decide for themselves; others are
// pattern-matched against known transient failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var r RetryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		// Connection errors
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"timeout",
		"timed out",
		"temporary failure",
		"too many connections",
		"network is unreachable",
		"server is starting up",
		"database is locked",
		// HTTP status codes
		"429",
		"502",
		"503",
		"504",
		// HTTP error messages
		"rate limit",
		"service unavailable",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// classifyErrorType extracts a coarse category used to spot repeated failures.
func classifyErrorType(err error) string {
	if err == nil {
		return "nil"
	}

	errStr := strings.ToLower(err.Error())

	for _, code := range []string{"503", "502", "504", "429"} {
		if strings.Contains(errStr, code) {
			return code
		}
	}

	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "connection reset"):
		return "connection"
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return "timeout"
	case strings.Contains(errStr, "database is locked"):
		return "locked"
	case strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "too many requests"):
		return "rate_limit"
	}

	return "unknown"
}

// DoIfRetryable retries fn only while it fails with transient errors.
// Permanent errors return immediately. After MaxSameErrorType consecutive
// failures of the same category the error is treated as permanent.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	sameErrorCount := 0
	var lastErrorType string

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		currentErrorType := classifyErrorType(err)
		if currentErrorType == lastErrorType {
			sameErrorCount++
			if cfg.MaxSameErrorType > 0 && sameErrorCount >= cfg.MaxSameErrorType {
				return fmt.Errorf("repeated error (%d times, type=%s): %w", sameErrorCount, currentErrorType, err)
			}
		} else {
			sameErrorCount = 1
			lastErrorType = currentErrorType
		}

		if attempt < cfg.MaxRetries {
			if err := Wait(ctx, Backoff(cfg, attempt+1)); err != nil {
				return err
			}
		}
	}

	return lastErr
}

// DoWithResult is DoIfRetryable for functions that return a value.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	var result T
	err := DoIfRetryable(ctx, cfg, func() error {
		r, err := fn()
		if err == nil {
			result = r
		}
		return err
	})
	return result, err
}
