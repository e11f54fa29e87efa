package recovery

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyKeywords(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantType    ErrorType
		wantService string
		wantSev     Severity
		recoverable bool
	}{
		{
			name:        "smtp failure",
			err:         errors.New("SMTP handshake rejected"),
			wantType:    TypeEmailService,
			wantService: "email-service",
			wantSev:     SeverityMedium,
			recoverable: true,
		},
		{
			name:        "database pool",
			err:         errors.New("connection pool exhausted"),
			wantType:    TypeDatabase,
			wantService: "database",
			wantSev:     SeverityHigh,
			recoverable: true,
		},
		{
			name:        "websocket emit",
			err:         errors.New("emit to closed socket"),
			wantType:    TypeWebsocket,
			wantService: "websocket",
			wantSev:     SeverityMedium,
			recoverable: true,
		},
		{
			name:        "validation",
			err:         errors.New("invalid input: missing title"),
			wantType:    TypeValidation,
			wantService: "validation",
			wantSev:     SeverityLow,
			recoverable: false,
		},
		{
			name:        "auth",
			err:         errors.New("token expired"),
			wantType:    TypeAuth,
			wantService: "auth",
			wantSev:     SeverityHigh,
			recoverable: false,
		},
		{
			name:        "unmatched falls back to system",
			err:         errors.New("something odd happened"),
			wantType:    TypeSystem,
			wantService: "system",
			wantSev:     SeverityLow,
			recoverable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.err)
			assert.Equal(t, tt.wantType, d.Type)
			assert.Equal(t, tt.wantService, d.Service)
			assert.Equal(t, tt.wantSev, d.Severity)
			assert.Equal(t, tt.recoverable, d.Recoverable)
			assert.Equal(t, tt.err.Error(), d.Message)
		})
	}
}

func TestClassifyRuleOrder(t *testing.T) {
	// "email database down" mentions two rules; the first match wins.
	d := Classify(errors.New("email database down"))
	assert.Equal(t, TypeEmailService, d.Type)
}

func TestClassifyCaseInsensitive(t *testing.T) {
	d := Classify(errors.New("WEBSOCKET HANDSHAKE FAILED"))
	assert.Equal(t, TypeWebsocket, d.Type)
}

func TestClassifyNil(t *testing.T) {
	d := Classify(nil)
	assert.Equal(t, TypeSystem, d.Type)
	assert.Equal(t, "unknown failure", d.Message)
}

func TestClassifyHintOverridesKeywords(t *testing.T) {
	// The message says "email" but the hint pins it to validation.
	err := &ChannelError{
		Hint: Hint{Type: TypeValidation, Service: "email-service"},
		Err:  errors.New("unknown email template \"nope\""),
	}

	d := Classify(err)
	assert.Equal(t, TypeValidation, d.Type)
	assert.Equal(t, "email-service", d.Service)
	assert.False(t, d.Recoverable)
}

func TestClassifyHintSeverityEscalation(t *testing.T) {
	err := &ChannelError{
		Hint: Hint{Type: TypeEmailService, Severity: SeverityHigh},
		Err:  errors.New("email failed after 3 attempts: boom"),
	}

	d := Classify(err)
	assert.Equal(t, TypeEmailService, d.Type)
	assert.Equal(t, SeverityHigh, d.Severity)
	assert.True(t, d.Recoverable)
}

func TestClassifyWrappedChannelError(t *testing.T) {
	inner := &ChannelError{
		Hint: Hint{Type: TypeDatabase},
		Err:  errors.New("write refused"),
	}
	wrapped := fmt.Errorf("dispatch: %w", inner)

	d := Classify(wrapped)
	assert.Equal(t, TypeDatabase, d.Type)
}
