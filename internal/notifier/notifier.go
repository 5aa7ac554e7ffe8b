// Package notifier is the delivery seam of the reminder engine. The engine
// decides that and when a reminder goes out; implementations of Notifier own
// the transport.
package notifier

import (
	"context"
	"time"
)

// Email carries everything a transport needs to render a reminder message.
type Email struct {
	DeadlineAt    time.Time
	To            string
	TaskTitle     string
	Notes         string
	IntervalLabel string
	Tags          []string
}

// Result is returned by a transport on successful delivery.
type Result struct {
	MessageID string
}

// Notifier sends a single reminder. A non-nil error means the delivery
// attempt failed; the caller records it and never retries within the sweep.
type Notifier interface {
	Send(ctx context.Context, email Email) (Result, error)
}
