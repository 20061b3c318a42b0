package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/convoplex/chatroom-platform/internal/model"
)

func TestMemoryQueue_EnqueueFetch(t *testing.T) {
	q := NewMemoryQueue(8, 3)
	defer q.Close()
	ctx := context.Background()

	id, err := q.Enqueue(ctx, &model.Job{ChatID: 1, UserID: 2, Message: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	d, err := q.Fetch(ctx)
	require.NoError(t, err)
	require.Equal(t, id, d.Job().ID)
	require.Equal(t, "hello", d.Job().Message)
	require.Equal(t, 1, d.Attempt())
	require.NoError(t, d.Ack())
}

func TestMemoryQueue_FetchHonorsContext(t *testing.T) {
	q := NewMemoryQueue(8, 3)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Fetch(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueue_RetryRedelivers(t *testing.T) {
	q := NewMemoryQueue(8, 3)
	defer q.Close()
	ctx := context.Background()

	_, err := q.Enqueue(ctx, &model.Job{ChatID: 1, UserID: 2, Message: "retry me"})
	require.NoError(t, err)

	d, err := q.Fetch(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Retry(time.Millisecond))

	fetchCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	redelivered, err := q.Fetch(fetchCtx)
	require.NoError(t, err)
	require.Equal(t, "retry me", redelivered.Job().Message)
	require.Equal(t, 2, redelivered.Attempt())
}

func TestMemoryQueue_RetryBoundedByMaxDeliver(t *testing.T) {
	q := NewMemoryQueue(8, 2)
	defer q.Close()
	ctx := context.Background()

	_, err := q.Enqueue(ctx, &model.Job{Message: "doomed"})
	require.NoError(t, err)

	d, err := q.Fetch(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Retry(time.Millisecond))

	fetchCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	d, err = q.Fetch(fetchCtx)
	require.NoError(t, err)
	require.Equal(t, 2, d.Attempt())

	// Attempts exhausted; the job is dropped, not redelivered.
	require.NoError(t, d.Retry(time.Millisecond))

	shortCtx, cancel2 := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel2()
	_, err = q.Fetch(shortCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueue_ClosedRejectsEnqueue(t *testing.T) {
	q := NewMemoryQueue(8, 3)
	q.Close()

	_, err := q.Enqueue(context.Background(), &model.Job{Message: "late"})
	require.ErrorIs(t, err, ErrUnavailable)
}
