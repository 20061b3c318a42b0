package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/convoplex/chatroom-platform/internal/model"
)

// MemoryQueue is an in-process Queue and Consumer backed by a channel.
// It keeps the same lease-and-acknowledge contract as the JetStream
// queue but without durability across restarts; it serves tests and
// single-node development.
type MemoryQueue struct {
	jobs       chan *memoryDelivery
	maxDeliver int

	mu     sync.Mutex
	closed bool
}

// NewMemoryQueue creates a queue with the given buffer size and
// redelivery bound.
func NewMemoryQueue(size, maxDeliver int) *MemoryQueue {
	if size <= 0 {
		size = 256
	}
	if maxDeliver <= 0 {
		maxDeliver = 5
	}
	return &MemoryQueue{
		jobs:       make(chan *memoryDelivery, size),
		maxDeliver: maxDeliver,
	}
}

// Enqueue schedules a job and returns its id.
func (q *MemoryQueue) Enqueue(ctx context.Context, job *model.Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.Must(uuid.NewV7()).String()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return "", ErrUnavailable
	}

	select {
	case q.jobs <- &memoryDelivery{queue: q, job: job, attempt: 1}:
		return job.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		return "", ErrUnavailable
	}
}

// Fetch blocks until a delivery is available or ctx is done.
func (q *MemoryQueue) Fetch(ctx context.Context) (Delivery, error) {
	select {
	case d, ok := <-q.jobs:
		if !ok {
			return nil, ErrUnavailable
		}
		return d, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the queue. Pending jobs are discarded.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
}

func (q *MemoryQueue) redeliver(d *memoryDelivery, delay time.Duration) {
	time.AfterFunc(delay, func() {
		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return
		}
		next := &memoryDelivery{queue: q, job: d.job, attempt: d.attempt + 1}
		select {
		case q.jobs <- next:
		default:
			// Queue full; the job is lost. Durability is what the
			// JetStream queue is for.
		}
	})
}

type memoryDelivery struct {
	queue   *MemoryQueue
	job     *model.Job
	attempt int
}

func (d *memoryDelivery) Job() *model.Job { return d.job }

func (d *memoryDelivery) Ack() error { return nil }

func (d *memoryDelivery) Retry(delay time.Duration) error {
	if d.attempt >= d.queue.maxDeliver {
		return nil // bounded attempts exhausted; drop
	}
	d.queue.redeliver(d, delay)
	return nil
}

func (d *memoryDelivery) Term() error { return nil }

func (d *memoryDelivery) Attempt() int { return d.attempt }
