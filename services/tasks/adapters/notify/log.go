package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
)

// Log is a development sink that writes notifications to the logger.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	return &Log{log: log.With("component", "notify", "provider", ProviderLog)}
}

func (l *Log) Send(ctx context.Context, n core.Notification) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	l.log.Info("notification",
		"message_id", id,
		"recipient", n.Recipient,
		"subject", n.Subject,
		"body", n.Body,
		"scheduled_at", n.ScheduledAt)
	return id, nil
}
