package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGroup = "global-render-tasks"

func TestMemoryQueue_FIFOWithinGroup(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(Options{Lease: time.Minute})

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Send(ctx, testGroup, fmt.Sprintf("job-%d", i), []byte(fmt.Sprintf("body-%d", i))))
	}

	for i := 0; i < 5; i++ {
		msgs, err := q.Receive(ctx, 1, 10*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, fmt.Sprintf("body-%d", i), string(msgs[0].Body))
		assert.Equal(t, fmt.Sprintf("job-%d", i), msgs[0].DedupID)
		assert.Equal(t, testGroup, msgs[0].GroupID)
		assert.Equal(t, 1, msgs[0].ReceiveCount)
		require.NoError(t, q.Acknowledge(ctx, msgs[0].Handle))
	}

	assert.Equal(t, 0, q.Len())
}

func TestMemoryQueue_Dedup(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(Options{})

	require.NoError(t, q.Send(ctx, testGroup, "job-1", []byte("a")))
	require.NoError(t, q.Send(ctx, testGroup, "job-1", []byte("b")))
	require.NoError(t, q.Send(ctx, testGroup, "job-2", []byte("c")))

	assert.Equal(t, 2, q.Len())
}

func TestMemoryQueue_GroupBlockedWhileLeased(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(Options{Lease: time.Minute})

	require.NoError(t, q.Send(ctx, testGroup, "a", []byte("a")))
	require.NoError(t, q.Send(ctx, testGroup, "b", []byte("b")))
	require.NoError(t, q.Send(ctx, "other-group", "c", []byte("c")))

	first, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "a", first[0].DedupID)

	// b must wait for a; the other group is free
	next, err := q.Receive(ctx, 10, 20*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "c", next[0].DedupID)

	none, err := q.Receive(ctx, 10, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, q.Acknowledge(ctx, first[0].Handle))

	after, err := q.Receive(ctx, 10, 20*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "b", after[0].DedupID)
}

func TestMemoryQueue_BatchFromOneGroupKeepsOrder(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(Options{Lease: time.Minute})

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Send(ctx, testGroup, id, []byte(id)))
	}

	msgs, err := q.Receive(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].DedupID)
	assert.Equal(t, "b", msgs[1].DedupID)
}

func TestMemoryQueue_LeaseExpiryRedelivers(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(Options{Lease: 30 * time.Millisecond})

	require.NoError(t, q.Send(ctx, testGroup, "job-1", []byte("x")))

	first, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, first[0].ReceiveCount)

	second, err := q.Receive(ctx, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, second, 1, "message must reappear after the lease")
	assert.Equal(t, 2, second[0].ReceiveCount)
	assert.NotEqual(t, first[0].Handle, second[0].Handle)

	// stale handle is a no-op
	require.NoError(t, q.Acknowledge(ctx, first[0].Handle))
	assert.Equal(t, 1, q.Len())

	require.NoError(t, q.Acknowledge(ctx, second[0].Handle))
	require.NoError(t, q.Acknowledge(ctx, second[0].Handle))
	assert.Equal(t, 0, q.Len())
}

func TestMemoryQueue_ReceiveWakesOnSend(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(Options{})

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = q.Send(ctx, testGroup, "late", []byte("late"))
	}()

	start := time.Now()
	msgs, err := q.Receive(ctx, 1, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestMemoryQueue_ReceiveHonorsContext(t *testing.T) {
	q := NewMemoryQueue(Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	msgs, err := q.Receive(ctx, 1, 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, msgs)
}

func TestMemoryQueue_EmptyReceiveAfterWait(t *testing.T) {
	q := NewMemoryQueue(Options{})

	msgs, err := q.Receive(context.Background(), 1, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
