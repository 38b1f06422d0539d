package source

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEventNotFound is returned when a receipt lacks the expected event.
var ErrEventNotFound = errors.New("source: event not found")

// ErrExecutionFailed is returned for receipts of failed transactions.
var ErrExecutionFailed = errors.New("source: execution failed")

// Event is one emitted event. Type is the fully qualified Move event type.
type Event struct {
	Type   string         `json:"type"`
	Fields map[string]any `json:"fields"`
}

// Receipt is the collaborator's report of an executed operation.
type Receipt struct {
	RequestID string  `json:"request_id"`
	Success   bool    `json:"success"`
	Digest    string  `json:"digest"`
	Error     string  `json:"error,omitempty"`
	Events    []Event `json:"events"`
}

// Err returns ErrExecutionFailed with the reported reason when the
// transaction did not succeed.
func (r Receipt) Err() error {
	if r.Success {
		return nil
	}
	if r.Error == "" {
		return fmt.Errorf("%w: digest %s", ErrExecutionFailed, r.Digest)
	}
	return fmt.Errorf("%w: digest %s: %s", ErrExecutionFailed, r.Digest, r.Error)
}

// FindEvent returns the first event whose type ends in "<module>::<name>".
// Generic parameters on the event type are ignored.
func (r Receipt) FindEvent(module, name string) (Event, bool) {
	suffix := module + "::" + name
	for _, ev := range r.Events {
		t := ev.Type
		if i := strings.IndexByte(t, '<'); i >= 0 {
			t = t[:i]
		}
		if t == suffix || strings.HasSuffix(t, "::"+suffix) {
			return ev, true
		}
	}
	return Event{}, false
}

// CreatedPoolID reads the pool id from the "<module>::PoolCreated" event.
func CreatedPoolID(r Receipt, module string) (string, error) {
	if err := r.Err(); err != nil {
		return "", err
	}
	ev, ok := r.FindEvent(module, "PoolCreated")
	if !ok {
		return "", fmt.Errorf("%w: %s::PoolCreated in %s", ErrEventNotFound, module, r.Digest)
	}
	id, ok := ev.Fields["pool_id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: PoolCreated without pool_id in %s", ErrEventNotFound, r.Digest)
	}
	return id, nil
}
