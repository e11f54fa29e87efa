package recovery

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType is the closed set of failure categories the engine reacts to.
type ErrorType string

const (
	TypeEmailService ErrorType = "email_service"
	TypeDatabase     ErrorType = "database"
	TypeWebsocket    ErrorType = "websocket"
	TypeValidation   ErrorType = "validation"
	TypeAuth         ErrorType = "auth"
	TypeSystem       ErrorType = "system"
)

// Severity ranks how bad a failure is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Descriptor is a classified failure.
type Descriptor struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Service     string    `json:"service"`
	Severity    Severity  `json:"severity"`
	Recoverable bool      `json:"recoverable"`
}

// Hint carries structured classification supplied by a caller that already
// knows what failed. Any zero field falls back to keyword classification or
// the rule default.
type Hint struct {
	Type     ErrorType
	Service  string
	Severity Severity
}

// ChannelError wraps a raw channel failure with its structured hint. The
// orchestrator uses it so classification does not depend on message wording.
type ChannelError struct {
	Hint Hint
	Err  error
}

func (e *ChannelError) Error() string {
	return e.Err.Error()
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// rule is one prioritized keyword classification entry.
type rule struct {
	keywords    []string
	errType     ErrorType
	service     string
	severity    Severity
	recoverable bool
}

// Rules are evaluated in order; the first keyword match wins.
var rules = []rule{
	{
		keywords:    []string{"email", "smtp", "mail"},
		errType:     TypeEmailService,
		service:     "email-service",
		severity:    SeverityMedium,
		recoverable: true,
	},
	{
		keywords:    []string{"database", "connection", "sql", "pool"},
		errType:     TypeDatabase,
		service:     "database",
		severity:    SeverityHigh,
		recoverable: true,
	},
	{
		keywords:    []string{"websocket", "socket", "emit"},
		errType:     TypeWebsocket,
		service:     "websocket",
		severity:    SeverityMedium,
		recoverable: true,
	},
	{
		keywords:    []string{"validation", "invalid input", "invalid request", "malformed"},
		errType:     TypeValidation,
		service:     "validation",
		severity:    SeverityLow,
		recoverable: false,
	},
	{
		keywords:    []string{"auth", "unauthorized", "permission", "forbidden", "token"},
		errType:     TypeAuth,
		service:     "auth",
		severity:    SeverityHigh,
		recoverable: false,
	},
}

// Classify builds a Descriptor from a raw failure. A *ChannelError hint wins
// over keyword matching; otherwise the error message (or its string coercion)
// is matched against the rule set, falling back to a recoverable low-severity
// system error.
func Classify(raw error) Descriptor {
	if raw == nil {
		raw = errors.New("unknown failure")
	}

	var hint *Hint
	var chErr *ChannelError
	if errors.As(raw, &chErr) {
		hint = &chErr.Hint
	}

	message := raw.Error()
	if message == "" {
		message = fmt.Sprintf("%v", raw)
	}

	d := classifyMessage(message)
	if hint == nil {
		return d
	}

	if hint.Type != "" && hint.Type != d.Type {
		d = descriptorForType(hint.Type, message)
	}
	if hint.Service != "" {
		d.Service = hint.Service
	}
	if hint.Severity != "" {
		d.Severity = hint.Severity
	}
	return d
}

func classifyMessage(message string) Descriptor {
	lower := strings.ToLower(message)

	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return Descriptor{
					Type:        r.errType,
					Message:     message,
					Service:     r.service,
					Severity:    r.severity,
					Recoverable: r.recoverable,
				}
			}
		}
	}

	return Descriptor{
		Type:        TypeSystem,
		Message:     message,
		Service:     "system",
		Severity:    SeverityLow,
		Recoverable: true,
	}
}

func descriptorForType(t ErrorType, message string) Descriptor {
	for _, r := range rules {
		if r.errType == t {
			return Descriptor{
				Type:        r.errType,
				Message:     message,
				Service:     r.service,
				Severity:    r.severity,
				Recoverable: r.recoverable,
			}
		}
	}
	return Descriptor{
		Type:        TypeSystem,
		Message:     message,
		Service:     "system",
		Severity:    SeverityLow,
		Recoverable: true,
	}
}
