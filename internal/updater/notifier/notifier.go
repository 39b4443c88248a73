// Package notifier publishes update progress to interested observers.
package notifier

import (
	"context"
	"time"
)

// StatusEvent describes one orchestrator transition.
type StatusEvent struct {
	RunID     string    `json:"runId"`
	Device    string    `json:"device,omitempty"`
	State     string    `json:"state"`
	Plan      string    `json:"plan,omitempty"`
	Message   string    `json:"message,omitempty"`
	Final     bool      `json:"final,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier receives status events. Implementations must not block the
// update for long; failures are logged by the caller and otherwise ignored.
type Notifier interface {
	Notify(ctx context.Context, ev *StatusEvent) error
	Close(ctx context.Context)
}

// Nop discards every event.
type Nop struct{}

var _ Notifier = Nop{}

func (Nop) Notify(context.Context, *StatusEvent) error { return nil }
func (Nop) Close(context.Context)                      {}
