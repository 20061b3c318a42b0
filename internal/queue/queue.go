// Package queue provides the durable work queue that carries accepted
// chat turns from the request path to the worker pool.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/convoplex/chatroom-platform/internal/model"
)

// ErrUnavailable is returned when the queue cannot accept a job. The
// request path surfaces this synchronously rather than dropping the turn.
var ErrUnavailable = errors.New("queue: unavailable")

// Queue accepts jobs for asynchronous processing. Delivery to workers is
// at-least-once; producers never share state with consumers beyond the
// store and cache collaborators.
type Queue interface {
	// Enqueue durably schedules a job and returns its id.
	Enqueue(ctx context.Context, job *model.Job) (string, error)
}

// Delivery is one leased delivery of a job to a worker. Exactly one of
// Ack, Retry, or Term must be called; an unacknowledged delivery is
// redelivered (possibly to another worker) after the lease lapses.
type Delivery interface {
	// Job returns the delivered job.
	Job() *model.Job

	// Ack marks the job as successfully processed.
	Ack() error

	// Retry schedules redelivery after delay. Attempts are bounded by
	// the consumer's max-deliver setting, after which the job is
	// dead-lettered.
	Retry(delay time.Duration) error

	// Term drops the job as a terminal failure. It is never redelivered.
	Term() error

	// Attempt returns the 1-based delivery attempt count.
	Attempt() int
}

// Consumer hands leased deliveries to workers. Multiple workers may fetch
// from the same consumer concurrently; a given job is leased to at most
// one of them at a time.
type Consumer interface {
	// Fetch blocks until a delivery is available or ctx is done.
	Fetch(ctx context.Context) (Delivery, error)
}
