package trio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Channel tags an operation with the delivery mechanism that produced it.
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelMessage   Channel = "message"
	ChannelWebsocket Channel = "websocket"
)

// Status is the lifecycle state of a transaction. It moves from pending to
// exactly one terminal value.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
	StatusFailed     Status = "failed"
)

// Misuse errors. These indicate programmer errors and are surfaced to the
// caller rather than being routed through recovery.
var (
	ErrAlreadyCompleted    = errors.New("transaction already completed")
	ErrCommitAfterRollback = errors.New("cannot commit a rolled back transaction")
	ErrRollbackAfterCommit = errors.New("cannot rollback committed transaction")
)

// UndoFunc reverses a completed operation. It must tolerate being called even
// if the original operation later completes after a discarded timeout.
type UndoFunc func(ctx context.Context) error

// Operation is one reversible side effect registered on a transaction.
type Operation struct {
	Channel     Channel
	OperationID string
	Undo        UndoFunc
}

// Transaction tracks the reversible operations of one trio dispatch. All
// methods are safe for concurrent use, though a transaction is normally owned
// by a single orchestrator call.
type Transaction struct {
	mu sync.Mutex

	id         string
	status     Status
	operations []Operation
	startedAt  time.Time
	endedAt    time.Time
	errText    string
}

// NewTransaction creates a pending transaction with a generated ID.
func NewTransaction() *Transaction {
	return &Transaction{
		id:        uuid.New().String(),
		status:    StatusPending,
		startedAt: time.Now().UTC(),
	}
}

// ID returns the transaction's opaque identifier.
func (t *Transaction) ID() string {
	return t.id
}

// Status returns the current lifecycle state.
func (t *Transaction) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Err returns the recorded error text, empty unless rollback partially failed
// or commit failed internally.
func (t *Transaction) Err() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errText
}

// AddOperation registers a reversible operation. It fails once the
// transaction has reached a terminal state.
func (t *Transaction) AddOperation(channel Channel, operationID string, undo UndoFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusPending {
		return fmt.Errorf("add operation %s: %w (status %s)", operationID, ErrAlreadyCompleted, t.status)
	}

	t.operations = append(t.operations, Operation{
		Channel:     channel,
		OperationID: operationID,
		Undo:        undo,
	})
	return nil
}

// Commit marks the transaction committed. Committing twice, or after a
// rollback, is an error.
func (t *Transaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.status {
	case StatusPending:
	case StatusRolledBack:
		return ErrCommitAfterRollback
	default:
		return fmt.Errorf("commit: %w (status %s)", ErrAlreadyCompleted, t.status)
	}

	t.status = StatusCommitted
	t.endedAt = time.Now().UTC()
	return nil
}

// fail transitions to the failed terminal state. Used when commit bookkeeping
// itself breaks.
func (t *Transaction) fail(cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusPending {
		return
	}
	t.status = StatusFailed
	t.endedAt = time.Now().UTC()
	t.errText = cause.Error()
}

// Rollback undoes every registered operation in reverse registration order,
// continuing past individual undo failures. A rollback of an already
// rolled-back transaction is a no-op; rolling back a committed transaction is
// rejected. When some undos fail, the transaction still reaches rolled_back
// and the error text records the partial failure.
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	switch t.status {
	case StatusCommitted:
		t.mu.Unlock()
		return ErrRollbackAfterCommit
	case StatusRolledBack:
		t.mu.Unlock()
		return nil
	}
	ops := make([]Operation, len(t.operations))
	copy(ops, t.operations)
	t.mu.Unlock()

	var failures []string
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if op.Undo == nil {
			continue
		}
		if err := op.Undo(ctx); err != nil {
			failures = append(failures, fmt.Sprintf("%s/%s: %v", op.Channel, op.OperationID, err))
		}
	}

	t.mu.Lock()
	t.status = StatusRolledBack
	t.endedAt = time.Now().UTC()
	if len(failures) > 0 {
		t.errText = fmt.Sprintf("rollback partially failed: %d of %d undo operations failed: %s",
			len(failures), len(ops), strings.Join(failures, "; "))
	}
	t.mu.Unlock()

	return nil
}

// IsCompleted reports whether the transaction reached a terminal state.
func (t *Transaction) IsCompleted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status != StatusPending
}

// IsSuccessful reports whether the transaction committed.
func (t *Transaction) IsSuccessful() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status == StatusCommitted
}

// Duration returns the elapsed time between start and completion, or the time
// since start while the transaction is still pending.
func (t *Transaction) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.endedAt.IsZero() {
		return time.Since(t.startedAt)
	}
	return t.endedAt.Sub(t.startedAt)
}

// Channels returns the distinct channel tags involved, in first-seen order.
func (t *Transaction) Channels() []Channel {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[Channel]bool, 3)
	var channels []Channel
	for _, op := range t.operations {
		if !seen[op.Channel] {
			seen[op.Channel] = true
			channels = append(channels, op.Channel)
		}
	}
	return channels
}

// OperationCount returns the number of registered operations.
func (t *Transaction) OperationCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.operations)
}

// Summary is a renderable snapshot of a transaction.
type Summary struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Duration  string    `json:"duration"`
	Channels  []Channel `json:"channels"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// GetSummary renders the transaction state. Duration reads "ongoing" while
// the transaction is non-terminal.
func (t *Transaction) GetSummary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{
		ID:        t.id,
		Status:    t.status,
		StartedAt: t.startedAt,
		EndedAt:   t.endedAt,
		Error:     t.errText,
	}

	if t.status == StatusPending {
		s.Duration = "ongoing"
	} else {
		s.Duration = t.endedAt.Sub(t.startedAt).String()
	}

	seen := make(map[Channel]bool, 3)
	for _, op := range t.operations {
		if !seen[op.Channel] {
			seen[op.Channel] = true
			s.Channels = append(s.Channels, op.Channel)
		}
	}

	return s
}
