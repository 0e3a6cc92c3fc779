package notify

import (
	"context"
	"log/slog"

	"dispatch/internal/domain"
)

// LogSink writes every notification to the structured log. It doubles as the
// delivery transport of last resort when no other sink is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a new LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, n domain.Notification) error {
	s.logger.InfoContext(ctx, "notification",
		"kind", n.Kind,
		"recipient_role", n.RecipientRole,
		"recipient_id", n.RecipientID,
		"priority", n.Priority,
		"title", n.Title,
		"body", n.Body,
	)
	return nil
}
