package recovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTripsAtThreshold(t *testing.T) {
	b := NewCircuitBreaker()

	for i := 1; i < defaultFailureThreshold; i++ {
		action, count := b.Record("email-service", TypeEmailService)
		assert.Equal(t, ActionCircuitRecording, action)
		assert.Equal(t, i, count)
	}

	action, count := b.Record("email-service", TypeEmailService)
	assert.Equal(t, ActionCircuitOpen, action)
	assert.Equal(t, defaultFailureThreshold, count)

	// Further failures inside the cool-down stay open.
	action, _ = b.Record("email-service", TypeEmailService)
	assert.Equal(t, ActionCircuitOpen, action)
	assert.Greater(t, b.Remaining("email-service", TypeEmailService), time.Duration(0))
}

func TestCircuitBreakerKeysAreIndependent(t *testing.T) {
	b := NewCircuitBreaker()

	for i := 0; i < defaultFailureThreshold; i++ {
		b.Record("email-service", TypeEmailService)
	}

	action, count := b.Record("database", TypeDatabase)
	assert.Equal(t, ActionCircuitRecording, action)
	assert.Equal(t, 1, count)
}

func TestCircuitBreakerResetsAfterCooldown(t *testing.T) {
	b := NewCircuitBreaker()
	b.cooldown = 10 * time.Millisecond

	for i := 0; i < defaultFailureThreshold; i++ {
		b.Record("database", TypeDatabase)
	}
	require.Greater(t, b.Remaining("database", TypeDatabase), time.Duration(0))

	time.Sleep(15 * time.Millisecond)

	action, count := b.Record("database", TypeDatabase)
	assert.Equal(t, ActionCircuitReset, action)
	assert.Equal(t, 1, count)
	assert.Zero(t, b.Remaining("database", TypeDatabase))
}

func TestCircuitBreakerManualReset(t *testing.T) {
	b := NewCircuitBreaker()

	for i := 0; i < defaultFailureThreshold; i++ {
		b.Record("websocket", TypeWebsocket)
	}
	b.Reset("websocket", TypeWebsocket)

	action, count := b.Record("websocket", TypeWebsocket)
	assert.Equal(t, ActionCircuitRecording, action)
	assert.Equal(t, 1, count)
}

func TestCircuitBreakerSnapshot(t *testing.T) {
	b := NewCircuitBreaker()
	b.Record("email-service", TypeEmailService)
	for i := 0; i < defaultFailureThreshold; i++ {
		b.Record("database", TypeDatabase)
	}

	snaps := b.Snapshot()
	require.Len(t, snaps, 2)

	byKey := make(map[string]BreakerSnapshot, len(snaps))
	for _, s := range snaps {
		byKey[s.Key] = s
	}
	assert.False(t, byKey["email-service-email_service"].Open)
	assert.True(t, byKey["database-database"].Open)
	assert.Equal(t, defaultFailureThreshold, byKey["database-database"].FailureCount)
}
