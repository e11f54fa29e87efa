package recovery

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetryStrategySchedulesWithBackoff(t *testing.T) {
	s := NewRetryStrategy(3)
	d := Descriptor{Type: TypeSystem, Service: "system"}
	fctx := FailureContext{TransactionID: "tx-1"}

	first := s.Recover(context.Background(), d, fctx)
	assert.True(t, first.Success)
	assert.Equal(t, ActionRetryScheduled, first.Action)
	assert.Equal(t, retryBaseDelay, first.RetryAfter)
	assert.Equal(t, 2, first.Metadata["next_attempt"])

	second := s.Recover(context.Background(), d, fctx)
	assert.Equal(t, ActionRetryScheduled, second.Action)
	assert.Equal(t, 2*retryBaseDelay, second.RetryAfter)
}

func TestRetryStrategyExhausts(t *testing.T) {
	s := NewRetryStrategy(3)
	d := Descriptor{Type: TypeSystem, Service: "system"}
	fctx := FailureContext{TransactionID: "tx-1"}

	s.Recover(context.Background(), d, fctx)
	s.Recover(context.Background(), d, fctx)

	third := s.Recover(context.Background(), d, fctx)
	assert.False(t, third.Success)
	assert.Equal(t, ActionMaxRetriesExceeded, third.Action)
	assert.Equal(t, 3, third.Metadata["attempts"])

	// The counter is cleared, so the next failure starts a fresh budget.
	fresh := s.Recover(context.Background(), d, fctx)
	assert.Equal(t, ActionRetryScheduled, fresh.Action)
	assert.Equal(t, 2, fresh.Metadata["next_attempt"])
}

func TestRetryStrategyTracksTransactionsSeparately(t *testing.T) {
	s := NewRetryStrategy(3)
	d := Descriptor{Type: TypeSystem, Service: "system"}

	s.Recover(context.Background(), d, FailureContext{TransactionID: "tx-a"})
	s.Recover(context.Background(), d, FailureContext{TransactionID: "tx-a"})
	res := s.Recover(context.Background(), d, FailureContext{TransactionID: "tx-b"})

	assert.Equal(t, 2, res.Metadata["next_attempt"])
}

func TestQueueStrategyEnqueues(t *testing.T) {
	backend := NewMemoryQueue()
	s := NewQueueStrategy(backend, discardLogger())
	d := Descriptor{Type: TypeDatabase, Service: "database", Severity: SeverityHigh, Message: "pool exhausted"}

	res := s.Recover(context.Background(), d, FailureContext{TransactionID: "tx-1"})

	assert.True(t, res.Success)
	assert.Equal(t, ActionQueued, res.Action)
	assert.Equal(t, queueEstimatedDelay, res.RetryAfter)
	assert.Equal(t, 1, res.Metadata["queue_position"])
	assert.NotEmpty(t, res.Metadata["job_id"])

	jobs := backend.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "tx-1", jobs[0].TransactionID)
	assert.Equal(t, TypeDatabase, jobs[0].ErrorType)
	assert.WithinDuration(t, time.Now().UTC(), jobs[0].QueuedAt, time.Minute)
}

type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, QueuedJob) (int, error) {
	return 0, assert.AnError
}

func TestQueueStrategyDegradesToLogged(t *testing.T) {
	s := NewQueueStrategy(failingQueue{}, discardLogger())
	d := Descriptor{Type: TypeEmailService, Service: "email-service", Severity: SeverityHigh}

	res := s.Recover(context.Background(), d, FailureContext{TransactionID: "tx-1"})

	assert.False(t, res.Success)
	assert.Equal(t, ActionLogged, res.Action)
}

func TestDeferredStrategy(t *testing.T) {
	s := NewDeferredStrategy(discardLogger())
	d := Descriptor{Type: TypeWebsocket, Service: "websocket"}

	res := s.Recover(context.Background(), d, FailureContext{TransactionID: "tx-1"})

	assert.True(t, res.Success)
	assert.Equal(t, ActionDeferred, res.Action)
	assert.Equal(t, deferredRetryDelay, res.RetryAfter)

	ref, ok := res.Metadata["background_job"].(string)
	require.True(t, ok)
	assert.Contains(t, ref, "bg-")
}

func TestLogStrategy(t *testing.T) {
	s := NewLogStrategy(discardLogger())
	d := Descriptor{Type: TypeValidation, Service: "validation"}

	res := s.Recover(context.Background(), d, FailureContext{TransactionID: "tx-1"})

	assert.False(t, res.Success)
	assert.Equal(t, ActionLogged, res.Action)
	assert.Zero(t, res.RetryAfter)
}
