package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/convoplex/chatroom-platform/internal/model"
)

const (
	// StreamName is the name of the chat jobs stream.
	StreamName = "CHAT_JOBS"

	// JobSubject carries one message per accepted chat turn.
	JobSubject = "jobs.chat.turn"

	// ConsumerName is the durable consumer shared by the worker pool.
	ConsumerName = "chat-workers"
)

// JetStreamQueue is a NATS JetStream-backed Queue and Consumer factory.
// Work-queue retention keeps each job until a worker acknowledges it;
// the consumer's ack wait is the delivery lease.
type JetStreamQueue struct {
	client *NATSClient

	ackWait    time.Duration
	maxDeliver int
}

// NewJetStreamQueue creates a queue on an established NATS connection.
func NewJetStreamQueue(client *NATSClient, ackWait time.Duration, maxDeliver int) *JetStreamQueue {
	return &JetStreamQueue{
		client:     client,
		ackWait:    ackWait,
		maxDeliver: maxDeliver,
	}
}

// EnsureStream ensures the jobs stream exists with proper configuration.
func (q *JetStreamQueue) EnsureStream(ctx context.Context) error {
	js := q.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{JobSubject},
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Accepted chat turns awaiting generation",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// Enqueue durably schedules a job and returns its id.
func (q *JetStreamQueue) Enqueue(ctx context.Context, job *model.Job) (string, error) {
	if !q.client.IsConnected() {
		return "", ErrUnavailable
	}

	if job.ID == "" {
		job.ID = uuid.Must(uuid.NewV7()).String()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	if _, err := q.client.JetStream().Publish(ctx, JobSubject, data, jetstream.WithMsgID(job.ID)); err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	return job.ID, nil
}

// NewConsumer creates (or binds to) the durable worker consumer.
func (q *JetStreamQueue) NewConsumer(ctx context.Context) (Consumer, error) {
	consumer, err := q.client.JetStream().CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       ConsumerName,
		FilterSubject: JobSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       q.ackWait,
		MaxDeliver:    q.maxDeliver,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	return &jetStreamConsumer{consumer: consumer}, nil
}

type jetStreamConsumer struct {
	consumer jetstream.Consumer
}

// Fetch blocks until a delivery is available or ctx is done.
func (c *jetStreamConsumer) Fetch(ctx context.Context) (Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := c.consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			return nil, err
		}

		for msg := range batch.Messages() {
			var job model.Job
			if err := json.Unmarshal(msg.Data(), &job); err != nil {
				// Unparseable payloads can never succeed.
				_ = msg.Term()
				continue
			}
			return &jetStreamDelivery{msg: msg, job: &job}, nil
		}

		if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
	}
}

type jetStreamDelivery struct {
	msg jetstream.Msg
	job *model.Job
}

func (d *jetStreamDelivery) Job() *model.Job { return d.job }

func (d *jetStreamDelivery) Ack() error { return d.msg.Ack() }

func (d *jetStreamDelivery) Retry(delay time.Duration) error {
	return d.msg.NakWithDelay(delay)
}

func (d *jetStreamDelivery) Term() error { return d.msg.Term() }

func (d *jetStreamDelivery) Attempt() int {
	meta, err := d.msg.Metadata()
	if err != nil {
		return 1
	}
	return int(meta.NumDelivered)
}
