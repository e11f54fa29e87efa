package recovery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *Handler {
	return NewHandler(NewMemoryQueue(), discardLogger())
}

func TestHandleTrioFailureRetryForSystemError(t *testing.T) {
	h := newTestHandler()

	res := h.HandleTrioFailure(context.Background(), errors.New("something odd"), FailureContext{TransactionID: "tx-1"})

	assert.True(t, res.Success)
	assert.Equal(t, ActionRetryScheduled, res.Action)
	assert.Equal(t, string(ActionCircuitRecording), res.Metadata["circuit"])
	assert.Equal(t, 1, res.Metadata["failure_count"])
}

func TestHandleTrioFailureQueuesHighSeverityDatabase(t *testing.T) {
	h := newTestHandler()

	res := h.HandleTrioFailure(context.Background(), errors.New("connection pool exhausted"), FailureContext{TransactionID: "tx-1"})

	assert.Equal(t, ActionQueued, res.Action)
	assert.True(t, res.Success)
}

func TestHandleTrioFailureMediumEmailRetries(t *testing.T) {
	h := newTestHandler()

	// Keyword classification gives email failures medium severity, which
	// stays on the retry path rather than the queue.
	res := h.HandleTrioFailure(context.Background(), errors.New("smtp timeout"), FailureContext{TransactionID: "tx-1"})

	assert.Equal(t, ActionRetryScheduled, res.Action)
}

func TestHandleTrioFailureEscalatedEmailQueues(t *testing.T) {
	h := newTestHandler()

	err := &ChannelError{
		Hint: Hint{Type: TypeEmailService, Severity: SeverityHigh},
		Err:  errors.New("email failed after 3 attempts: boom"),
	}
	res := h.HandleTrioFailure(context.Background(), err, FailureContext{TransactionID: "tx-1"})

	assert.Equal(t, ActionQueued, res.Action)
}

func TestHandleTrioFailureDefersWebsocket(t *testing.T) {
	h := newTestHandler()

	res := h.HandleTrioFailure(context.Background(), errors.New("websocket emit failed"), FailureContext{TransactionID: "tx-1"})

	assert.Equal(t, ActionDeferred, res.Action)
	assert.NotEmpty(t, res.Metadata["background_job"])
}

func TestHandleTrioFailureLogsValidation(t *testing.T) {
	h := newTestHandler()

	res := h.HandleTrioFailure(context.Background(), errors.New("invalid input: no title"), FailureContext{TransactionID: "tx-1"})

	assert.False(t, res.Success)
	assert.Equal(t, ActionLogged, res.Action)
}

func TestHandleTrioFailureCircuitOpens(t *testing.T) {
	h := newTestHandler()

	var res Result
	for i := 0; i < defaultFailureThreshold; i++ {
		res = h.HandleTrioFailure(context.Background(),
			errors.New("invalid input: nope"),
			FailureContext{TransactionID: fmt.Sprintf("tx-%d", i)})
	}

	assert.Equal(t, ActionCircuitOpen, res.Action)
	assert.False(t, res.Success)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	// Once open, the strategy layer is bypassed entirely.
	res = h.HandleTrioFailure(context.Background(),
		errors.New("invalid input: nope"),
		FailureContext{TransactionID: "tx-x"})
	assert.Equal(t, ActionCircuitOpen, res.Action)
}

func TestHandleTrioFailureServiceOverride(t *testing.T) {
	h := newTestHandler()

	h.HandleTrioFailure(context.Background(), errors.New("something odd"),
		FailureContext{TransactionID: "tx-1", Service: "batch-import"})

	stats := h.GetErrorStatistics()
	assert.Equal(t, 1, stats.ByService["batch-import"])
}

func TestGetErrorStatistics(t *testing.T) {
	h := newTestHandler()

	h.HandleTrioFailure(context.Background(), errors.New("smtp down"), FailureContext{TransactionID: "tx-1"})
	h.HandleTrioFailure(context.Background(), errors.New("smtp down"), FailureContext{TransactionID: "tx-2"})
	h.HandleTrioFailure(context.Background(), errors.New("websocket closed"), FailureContext{TransactionID: "tx-3"})

	stats := h.GetErrorStatistics()
	assert.Equal(t, 3, stats.TotalFailures)
	assert.Equal(t, 2, stats.ByType[TypeEmailService])
	assert.Equal(t, 1, stats.ByType[TypeWebsocket])
	assert.Equal(t, 2, stats.ByService["email-service"])
	assert.NotEmpty(t, stats.CircuitBreaker)
}

func TestGetRecoveryHistory(t *testing.T) {
	h := newTestHandler()

	for i := 0; i < 5; i++ {
		h.HandleTrioFailure(context.Background(),
			fmt.Errorf("smtp down %d", i),
			FailureContext{TransactionID: fmt.Sprintf("tx-%d", i)})
	}

	history := h.GetRecoveryHistory(3)
	require.Len(t, history, 3)
	// Most recent first.
	assert.Equal(t, "tx-4", history[0].TransactionID)
	assert.Equal(t, "tx-2", history[2].TransactionID)

	all := h.GetRecoveryHistory(0)
	assert.Len(t, all, 5)
}

func TestHandlerReset(t *testing.T) {
	h := newTestHandler()

	for i := 0; i < defaultFailureThreshold; i++ {
		h.HandleTrioFailure(context.Background(), errors.New("invalid input"), FailureContext{TransactionID: "tx-1"})
	}
	h.Reset()

	stats := h.GetErrorStatistics()
	assert.Zero(t, stats.TotalFailures)
	assert.Empty(t, stats.ByType)
	assert.Empty(t, stats.CircuitBreaker)
	assert.Empty(t, h.GetRecoveryHistory(0))

	// The breaker starts recording again from scratch.
	res := h.HandleTrioFailure(context.Background(), errors.New("invalid input"), FailureContext{TransactionID: "tx-2"})
	assert.Equal(t, ActionLogged, res.Action)
	assert.Equal(t, 1, res.Metadata["failure_count"])
}
