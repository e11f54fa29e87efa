package email

import (
	"context"
)

// Sender delivers a rendered email to one recipient. Implementations wrap the
// concrete transport (HTTP mailer API in production, a recording fake in
// tests).
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Message is a rendered email ready for transport.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Priority string `json:"priority,omitempty"`
}
