package mock

import (
	"context"
	"log/slog"
	"sync"

	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/email"
)

// Sender is an in-process email sender that records every message. It backs
// local development and tests; a configurable error makes failure paths easy
// to exercise.
type Sender struct {
	mu     sync.Mutex
	sent   []email.Message
	err    error
	logger *slog.Logger
}

// NewSender creates a recording sender that always succeeds.
func NewSender(logger *slog.Logger) *Sender {
	return &Sender{logger: logger}
}

// FailWith makes every subsequent Send return err. Pass nil to restore
// success.
func (s *Sender) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Send records the message, or returns the configured error.
func (s *Sender) Send(ctx context.Context, msg *email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	s.sent = append(s.sent, *msg)
	s.logger.InfoContext(ctx, "mock email sent",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// Sent returns a copy of all recorded messages.
func (s *Sender) Sent() []email.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]email.Message, len(s.sent))
	copy(out, s.sent)
	return out
}
