package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/pkg/httpclient"
)

// HTTPSender delivers email through the mailer API over HTTP, protected by a
// circuit breaker so a dead mailer fails fast instead of tying up trio
// dispatches.
type HTTPSender struct {
	client  *httpclient.BreakerClient
	baseURL string
	logger  *slog.Logger
}

// NewHTTPSender creates a sender targeting the mailer API at baseURL.
func NewHTTPSender(baseURL string, logger *slog.Logger) *HTTPSender {
	cfg := httpclient.DefaultConfig()
	client := httpclient.New(cfg)
	breaker := httpclient.NewBreakerClient(client, httpclient.DefaultBreakerConfig("mailer"), logger)

	return &HTTPSender{
		client:  breaker,
		baseURL: baseURL,
		logger:  logger,
	}
}

// Send posts the message to the mailer API.
func (s *HTTPSender) Send(ctx context.Context, msg *Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email message: %w", err)
	}

	resp, err := s.client.Post(ctx, s.baseURL+"/v1/send", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("email transport: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("email transport: mailer returned status %d", resp.StatusCode)
	}

	s.logger.DebugContext(ctx, "email dispatched",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}
