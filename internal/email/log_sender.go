package email

import (
	"context"
	"log/slog"
)

// LogSender writes outgoing mail to the log instead of a transport. Used
// when no mail relay is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg *Message) error {
	s.logger.Info("email transport disabled, logging instead",
		"to", msg.To,
		"subject", msg.Subject,
		"priority", msg.Priority,
	)
	return nil
}
