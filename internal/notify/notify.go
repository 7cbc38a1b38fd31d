// Package notify emits status events for the notification dispatcher that
// lives outside this repository. An event is produced on every
// ai_verified/ai_failed transition; delivery mechanics (push, SMS) are not
// this repo's concern.
package notify

import (
	"context"
	"log/slog"
)

// StatusEvent is the notification-worthy payload.
type StatusEvent struct {
	UserID string  `json:"user_id"`
	Status string  `json:"status"`
	Score  float64 `json:"score"`
}

// Notifier publishes status events.
type Notifier interface {
	Publish(ctx context.Context, event StatusEvent) error
	Close()
}

// LogNotifier writes events to the log. Used when Kafka is not configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Publish(ctx context.Context, event StatusEvent) error {
	n.Logger.InfoContext(ctx, "status event",
		"user_id", event.UserID,
		"status", event.Status,
		"score", event.Score,
	)
	return nil
}

func (n *LogNotifier) Close() {}
