package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ErrCircuitOpen is returned while the circuit breaker rejects calls
var ErrCircuitOpen = errors.New("metadata service circuit open")

// RetryConfig defines retry behavior for metadata calls
type RetryConfig struct {
	MaxAttempts     int           // Total attempts including the first
	InitialDelay    time.Duration // Delay before the first retry
	MaxDelay        time.Duration // Upper bound between retries
	BackoffFactor   float64       // Exponential backoff factor
	Jitter          float64       // Fraction of the delay randomized, 0 disables
	RetryableStatus []int         // HTTP status codes that trigger retry
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        0.1,
		RetryableStatus: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// ResilientExtractor wraps a MetadataExtractor with retries and a circuit
// breaker.
type ResilientExtractor struct {
	next    MetadataExtractor
	retry   RetryConfig
	breaker *CircuitBreaker
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
}

// NewResilientExtractor wraps next. A nil breaker disables circuit breaking.
func NewResilientExtractor(next MetadataExtractor, retry RetryConfig, breaker *CircuitBreaker, logger *slog.Logger) *ResilientExtractor {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if retry.BackoffFactor < 1 {
		retry.BackoffFactor = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResilientExtractor{
		next:    next,
		retry:   retry,
		breaker: breaker,
		sleep:   sleepContext,
		logger:  logger,
	}
}

// Enabled reports whether the wrapped extractor is enabled
func (r *ResilientExtractor) Enabled() bool { return r.next.Enabled() }

// Extract calls the wrapped extractor, retrying transient failures
func (r *ResilientExtractor) Extract(ctx context.Context, text string) (*Metadata, error) {
	if r.breaker != nil && !r.breaker.Allow() {
		return nil, ErrCircuitOpen
	}

	var lastErr error
	for attempt := 1; attempt <= r.retry.MaxAttempts; attempt++ {
		meta, err := r.next.Extract(ctx, text)
		if err == nil {
			if r.breaker != nil {
				r.breaker.RecordSuccess()
			}
			return meta, nil
		}
		lastErr = err

		if attempt == r.retry.MaxAttempts || !r.shouldRetry(err) {
			break
		}

		delay := r.delay(attempt)
		r.logger.Debug("retrying metadata extraction",
			"attempt", attempt,
			"delay", delay,
			"error", err)
		if err := r.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	if r.breaker != nil {
		r.breaker.RecordFailure()
	}
	return nil, fmt.Errorf("metadata extraction failed: %w", lastErr)
}

// shouldRetry determines if a failed call is worth repeating
func (r *ResilientExtractor) shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return r.retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return r.retryableStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func (r *ResilientExtractor) retryableStatus(code int) bool {
	for _, c := range r.retry.RetryableStatus {
		if code == c {
			return true
		}
	}
	return false
}

// delay calculates the wait after attempt using exponential backoff
func (r *ResilientExtractor) delay(attempt int) time.Duration {
	delay := r.retry.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * r.retry.BackoffFactor)
		if r.retry.MaxDelay > 0 && delay > r.retry.MaxDelay {
			delay = r.retry.MaxDelay
			break
		}
	}

	if r.retry.Jitter > 0 && delay > 0 {
		spread := float64(delay) * r.retry.Jitter
		delay += time.Duration((rand.Float64()*2 - 1) * spread)
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
