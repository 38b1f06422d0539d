package rpc

import (
	"sync"
	"time"
)

// Health is the client's view of the node, as reported by /health.
type Health struct {
	Endpoint            string        `json:"endpoint"`
	LastSuccess         time.Time     `json:"last_success,omitempty"`
	LastFailure         time.Time     `json:"last_failure,omitempty"`
	LastError           string        `json:"last_error,omitempty"`
	LastDuration        time.Duration `json:"last_duration_ns"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	CircuitState        string        `json:"circuit_state"`
}

// Healthy reports whether calls are currently let through.
func (h Health) Healthy() bool {
	return h.CircuitState != "open"
}

type healthTracker struct {
	mu sync.Mutex
	h  Health
}

func (t *healthTracker) observe(at time.Time, d time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.h.LastDuration = d
	if err != nil {
		t.h.LastFailure = at
		t.h.LastError = err.Error()
		t.h.ConsecutiveFailures++
		return
	}
	t.h.LastSuccess = at
	t.h.ConsecutiveFailures = 0
}

func (t *healthTracker) snapshot() Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.h
}

// Health returns the outcome of recent calls and the breaker state.
func (c *Client) Health() Health {
	h := c.health.snapshot()
	h.Endpoint = c.cfg.Endpoint
	h.CircuitState = c.breaker.State().String()
	return h
}
