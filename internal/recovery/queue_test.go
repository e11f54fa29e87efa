package recovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueuePositions(t *testing.T) {
	q := NewMemoryQueue()

	pos, err := q.Enqueue(context.Background(), QueuedJob{ID: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = q.Enqueue(context.Background(), QueuedJob{ID: "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	jobs := q.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)
}
