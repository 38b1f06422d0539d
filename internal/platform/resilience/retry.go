package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

// JSON-RPC 2.0 codes that never succeed on a second attempt.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // 0.0 to 1.0

	// Retryable decides whether an error deserves another attempt.
	// Nil means IsRetryable.
	Retryable func(error) bool
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      0.1,
	}
}

// permanentError stops retries at once.
type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Retry executes fn with exponential backoff until it succeeds, returns a
// non-retryable error, runs out of attempts or ctx ends.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	_, err := RetryWithResult(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryWithResult executes a function with retry and returns a result
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
		if !retryable(err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(calculateBackoff(attempt, cfg.BaseDelay, cfg.MaxDelay, cfg.Jitter))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry cancelled during backoff: %w", ctx.Err())
		}
	}

	return zero, fmt.Errorf("max retry attempts (%d) reached: %w", cfg.MaxAttempts, lastErr)
}

// calculateBackoff calculates delay with exponential backoff and jitter
func calculateBackoff(attempt int, baseDelay, maxDelay time.Duration, jitter float64) time.Duration {
	delay := float64(baseDelay) * math.Pow(2, float64(attempt))
	if maxDelay > 0 && delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}

	// Spread by ±jitter.
	if jitter > 0 {
		jitterAmount := delay * jitter
		delay = delay - jitterAmount + rand.Float64()*2*jitterAmount
	}
	return time.Duration(delay)
}

// IsRetryable reports whether a JSON-RPC call that failed with err may
// succeed if repeated. Protocol errors, rejected requests and client-side
// HTTP errors are final; transport faults, 429 and 5xx are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var perm permanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeParseError, codeInvalidRequest, codeMethodNotFound, codeInvalidParams:
			return false
		}
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, final := range []string{"invalid argument", "invalid params", "not found"} {
		if strings.Contains(msg, final) {
			return false
		}
	}
	return true
}
