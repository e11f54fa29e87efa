package trio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionCommit(t *testing.T) {
	tx := NewTransaction()
	require.Equal(t, StatusPending, tx.Status())
	require.NotEmpty(t, tx.ID())

	require.NoError(t, tx.AddOperation(ChannelEmail, "email-1", nil))
	require.NoError(t, tx.Commit())

	assert.Equal(t, StatusCommitted, tx.Status())
	assert.True(t, tx.IsCompleted())
	assert.True(t, tx.IsSuccessful())
}

func TestTransactionCommitTwice(t *testing.T) {
	tx := NewTransaction()
	require.NoError(t, tx.Commit())

	err := tx.Commit()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestTransactionAddOperationAfterCommit(t *testing.T) {
	tx := NewTransaction()
	require.NoError(t, tx.Commit())

	err := tx.AddOperation(ChannelMessage, "msg-1", nil)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestTransactionRollbackReverseOrder(t *testing.T) {
	tx := NewTransaction()

	var order []string
	undo := func(id string) UndoFunc {
		return func(context.Context) error {
			order = append(order, id)
			return nil
		}
	}

	require.NoError(t, tx.AddOperation(ChannelEmail, "first", undo("first")))
	require.NoError(t, tx.AddOperation(ChannelMessage, "second", undo("second")))
	require.NoError(t, tx.AddOperation(ChannelWebsocket, "third", undo("third")))

	require.NoError(t, tx.Rollback(context.Background()))
	assert.Equal(t, []string{"third", "second", "first"}, order)
	assert.Equal(t, StatusRolledBack, tx.Status())
	assert.Empty(t, tx.Err())
}

func TestTransactionRollbackContinuesPastFailures(t *testing.T) {
	tx := NewTransaction()

	var undone []string
	require.NoError(t, tx.AddOperation(ChannelEmail, "a", func(context.Context) error {
		undone = append(undone, "a")
		return nil
	}))
	require.NoError(t, tx.AddOperation(ChannelMessage, "b", func(context.Context) error {
		return errors.New("undo exploded")
	}))
	require.NoError(t, tx.AddOperation(ChannelWebsocket, "c", func(context.Context) error {
		undone = append(undone, "c")
		return nil
	}))

	require.NoError(t, tx.Rollback(context.Background()))

	// The failing undo does not stop the earlier operations from being undone.
	assert.Equal(t, []string{"c", "a"}, undone)
	assert.Equal(t, StatusRolledBack, tx.Status())
	assert.Contains(t, tx.Err(), "rollback partially failed")
	assert.Contains(t, tx.Err(), "1 of 3 undo operations failed")
	assert.Contains(t, tx.Err(), "undo exploded")
}

func TestTransactionRollbackIdempotent(t *testing.T) {
	tx := NewTransaction()

	calls := 0
	require.NoError(t, tx.AddOperation(ChannelMessage, "m", func(context.Context) error {
		calls++
		return nil
	}))

	require.NoError(t, tx.Rollback(context.Background()))
	require.NoError(t, tx.Rollback(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestTransactionRollbackAfterCommit(t *testing.T) {
	tx := NewTransaction()
	require.NoError(t, tx.Commit())

	err := tx.Rollback(context.Background())
	assert.ErrorIs(t, err, ErrRollbackAfterCommit)
	assert.Equal(t, StatusCommitted, tx.Status())
}

func TestTransactionCommitAfterRollback(t *testing.T) {
	tx := NewTransaction()
	require.NoError(t, tx.Rollback(context.Background()))

	err := tx.Commit()
	assert.ErrorIs(t, err, ErrCommitAfterRollback)
	assert.Equal(t, StatusRolledBack, tx.Status())
}

func TestTransactionFailTerminal(t *testing.T) {
	tx := NewTransaction()
	tx.fail(errors.New("dispatch broke"))

	assert.Equal(t, StatusFailed, tx.Status())
	assert.Equal(t, "dispatch broke", tx.Err())
	assert.True(t, tx.IsCompleted())
	assert.False(t, tx.IsSuccessful())

	// A terminal transaction stays put.
	tx.fail(errors.New("again"))
	assert.Equal(t, "dispatch broke", tx.Err())
}

func TestTransactionChannelsDeduplicated(t *testing.T) {
	tx := NewTransaction()
	require.NoError(t, tx.AddOperation(ChannelWebsocket, "push-u1", nil))
	require.NoError(t, tx.AddOperation(ChannelWebsocket, "push-u2", nil))
	require.NoError(t, tx.AddOperation(ChannelMessage, "m", nil))

	assert.Equal(t, []Channel{ChannelWebsocket, ChannelMessage}, tx.Channels())
	assert.Equal(t, 3, tx.OperationCount())
}

func TestTransactionSummary(t *testing.T) {
	tx := NewTransaction()
	require.NoError(t, tx.AddOperation(ChannelEmail, "e", nil))

	pending := tx.GetSummary()
	assert.Equal(t, "ongoing", pending.Duration)
	assert.Equal(t, StatusPending, pending.Status)

	require.NoError(t, tx.Commit())
	done := tx.GetSummary()
	assert.Equal(t, StatusCommitted, done.Status)
	assert.NotEqual(t, "ongoing", done.Duration)
	assert.Equal(t, []Channel{ChannelEmail}, done.Channels)
	assert.False(t, done.EndedAt.IsZero())
}
