// Package notify renders compliance notifications, remembers which ones
// already fired today, and delivers them through a Notifier.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"reportbot/internal/model"
)

// ErrRejected marks a delivery that definitely did not happen, e.g. the
// chat API refused the message. Any other delivery error is ambiguous.
var ErrRejected = errors.New("delivery rejected")

// Notifier delivers a text to a destination.
type Notifier interface {
	Deliver(ctx context.Context, dest model.Destination, text string) error
}

// Outcome is the result of one dispatch attempt.
type Outcome int

// Dispatch outcomes.
const (
	// Skipped means the key already fired today.
	Skipped Outcome = iota
	Delivered
	// Rejected means delivery failed and the key was released.
	Rejected
	// Ambiguous means delivery failed in a way that may have reached the
	// chat; the key stays recorded so the message is not repeated.
	Ambiguous
)

// Dispatcher sends each keyed notification at most once per day.
type Dispatcher struct {
	notifier Notifier
	memory   *Memory
	log      *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(n Notifier, m *Memory, log *slog.Logger) *Dispatcher {
	return &Dispatcher{notifier: n, memory: m, log: log}
}

// Send delivers text unless key already fired on today. Delivery errors
// are logged and never returned.
func (d *Dispatcher) Send(ctx context.Context, key Key, today model.Date, dest model.Destination, text string) Outcome {
	if !d.memory.ShouldFire(key, today) {
		return Skipped
	}

	err := d.notifier.Deliver(ctx, dest, text)
	switch {
	case err == nil:
		d.log.Info("notification sent",
			"channel_id", key.ChannelID,
			"event", key.Event.String(),
			"kind", string(key.Notification),
		)
		return Delivered
	case errors.Is(err, ErrRejected):
		d.memory.Forget(key)
		d.log.Error("notification rejected",
			"channel_id", key.ChannelID,
			"event", key.Event.String(),
			"kind", string(key.Notification),
			"error", err,
		)
		return Rejected
	default:
		d.log.Warn("notification delivery ambiguous, treating as sent",
			"channel_id", key.ChannelID,
			"event", key.Event.String(),
			"kind", string(key.Notification),
			"error", err,
		)
		return Ambiguous
	}
}

// Deliver sends text without deduplication. Used by the daily and weekly
// summaries, which run once per trigger.
func (d *Dispatcher) Deliver(ctx context.Context, dest model.Destination, text string) error {
	return d.notifier.Deliver(ctx, dest, text)
}
