// Package notify publishes moderation outcomes to downstream consumers.
// Publishing is fire-and-forget: a failed delivery never reverts the
// transition that produced it.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"podium/internal/registration/models"
)

// Notifier receives transition events after commit.
type Notifier interface {
	Notify(ctx context.Context, event models.TransitionEvent) error
}

// Log writes each transition as a structured log line.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, event models.TransitionEvent) error {
	attrs := []any{
		"submission_id", event.SubmissionID.String(),
		"event_id", event.EventID.String(),
		"old_status", string(event.OldStatus),
		"new_status", string(event.NewStatus),
	}
	if event.Actor != nil {
		attrs = append(attrs, "actor", event.Actor.String())
	}
	l.logger.InfoContext(ctx, "submission transition", attrs...)
	return nil
}

// Multi fans an event out to several notifiers, attempting all of them.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event models.TransitionEvent) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
