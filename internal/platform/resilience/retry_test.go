package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

type codeError struct {
	code int
	msg  string
}

func (e codeError) Error() string  { return e.msg }
func (e codeError) ErrorCode() int { return e.code }

var _ rpc.Error = codeError{}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_GivesUp(t *testing.T) {
	calls := 0
	fail := errors.New("timeout")
	err := Retry(context.Background(), fastRetry(2), func(ctx context.Context) error {
		calls++
		return fail
	})
	if !errors.Is(err, fail) {
		t.Errorf("Retry() error = %v, want wrapped timeout", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetry_StopsOnPermanent(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), fastRetry(5), func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(errors.New("bad object"))
	})
	if err == nil || calls != 1 {
		t.Errorf("calls = %d err = %v; want one call and an error", calls, err)
	}
}

func TestRetry_CustomRetryable(t *testing.T) {
	cfg := fastRetry(4)
	cfg.Retryable = func(error) bool { return false }
	calls := 0
	Retry(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return errors.New("x")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}

	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, cfg, func(ctx context.Context) error { return errors.New("down") })
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Retry did not observe cancellation")
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{10, time.Second},
	}
	for _, tt := range tests {
		got := calculateBackoff(tt.attempt, 100*time.Millisecond, time.Second, 0)
		if got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	for i := 0; i < 20; i++ {
		got := calculateBackoff(0, 100*time.Millisecond, time.Second, 0.5)
		if got < 50*time.Millisecond || got > 150*time.Millisecond {
			t.Fatalf("jittered backoff %v outside ±50%%", got)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"circuit open", ErrCircuitOpen, false},
		{"cancelled", fmt.Errorf("call: %w", context.Canceled), false},
		{"permanent", Permanent(errors.New("x")), false},
		{"http 429", rpc.HTTPError{StatusCode: 429, Status: "429 Too Many Requests"}, true},
		{"http 503", rpc.HTTPError{StatusCode: 503, Status: "503 Service Unavailable"}, true},
		{"http 404", rpc.HTTPError{StatusCode: 404, Status: "404 Not Found"}, false},
		{"invalid params", codeError{codeInvalidParams, "invalid params"}, false},
		{"method not found", codeError{codeMethodNotFound, "no such method"}, false},
		{"internal error", codeError{-32603, "internal error"}, true},
		{"server busy", codeError{-32000, "server busy"}, true},
		{"plain not found", errors.New("object not found"), false},
		{"unknown transport", errors.New("EOF"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
