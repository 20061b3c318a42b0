// Package worker runs the pool of consumers that turn queued chat jobs
// into persisted generation turns.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/convoplex/chatroom-platform/internal/cache"
	"github.com/convoplex/chatroom-platform/internal/genai"
	"github.com/convoplex/chatroom-platform/internal/model"
	"github.com/convoplex/chatroom-platform/internal/queue"
	"github.com/convoplex/chatroom-platform/internal/store"
	"github.com/convoplex/chatroom-platform/pkg/logger"
	"github.com/convoplex/chatroom-platform/pkg/metrics"
)

const baseRetryDelay = 5 * time.Second

// Pool processes chat jobs with a fixed number of concurrent workers.
// Each job runs the same pipeline: fetch history, persist the user
// message, call the generation backend, persist the reply, touch the
// chatroom, invalidate the owner's listing cache.
type Pool struct {
	consumer queue.Consumer
	store    store.ChatroomStore
	cache    cache.Cache
	client   genai.Client
	logger   *logger.Logger

	workers           int
	generationTimeout time.Duration
}

// Config holds worker pool settings.
type Config struct {
	Workers           int
	GenerationTimeout time.Duration
}

// NewPool creates a worker pool.
func NewPool(
	consumer queue.Consumer,
	st store.ChatroomStore,
	c cache.Cache,
	client genai.Client,
	cfg Config,
	log *logger.Logger,
) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	timeout := cfg.GenerationTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Pool{
		consumer:          consumer,
		store:             st,
		cache:             c,
		client:            client,
		logger:            log,
		workers:           workers,
		generationTimeout: timeout,
	}
}

// Run blocks processing jobs until ctx is cancelled. Workers run in
// parallel so one slow generation call never blocks other users' turns.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < p.workers; i++ {
		worker := i
		g.Go(func() error {
			return p.runWorker(ctx, worker)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Pool) runWorker(ctx context.Context, id int) error {
	log := p.logger.With(zap.Int("worker", id))
	log.Info("worker started")

	for {
		delivery, err := p.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopped")
				return nil
			}
			log.Error("failed to fetch job", zap.Error(err))

			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		p.process(ctx, delivery)
	}
}

// process executes the pipeline for one delivery. Side effects are
// committed strictly in order: user message, generated reply, chatroom
// timestamp, cache invalidation. A crash after the user message is
// persisted but before the reply leaves a turn without an answer, which
// is observable and recoverable by resending.
func (p *Pool) process(ctx context.Context, delivery queue.Delivery) {
	job := delivery.Job()
	log := p.logger.WithJob(job.ID, job.UserID, job.ChatID)

	metrics.WorkersBusy.Inc()
	start := time.Now()
	defer func() {
		metrics.WorkersBusy.Dec()
		metrics.JobDuration.Observe(time.Since(start).Seconds())
	}()

	// Ownership-scoped fetch. A missing or foreign chatroom can never
	// succeed on retry.
	details, err := p.store.GetChatroomDetails(ctx, job.ChatID, job.UserID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("dropping job for missing or foreign chatroom")
		p.finish(delivery.Term(), "terminal", log)
		return
	}
	if err != nil {
		log.Error("failed to fetch chatroom history", zap.Error(err), zap.Int("attempt", delivery.Attempt()))
		p.finish(delivery.Retry(retryDelay(delivery.Attempt())), "retry", log)
		return
	}

	history := genai.HistoryFromMessages(details.Messages)

	// The user turn must be durable before the backend is called.
	userMsg, err := p.store.AppendMessage(ctx, job.ChatID, job.Message, model.AuthorUser)
	if err != nil {
		log.Error("failed to persist user message", zap.Error(err), zap.Int("attempt", delivery.Attempt()))
		p.finish(delivery.Retry(retryDelay(delivery.Attempt())), "retry", log)
		return
	}
	metrics.MessagesTotal.WithLabelValues(string(model.AuthorUser)).Inc()

	genCtx, cancel := context.WithTimeout(ctx, p.generationTimeout)
	reply, err := p.client.Send(genCtx, history, job.Message)
	cancel()
	if err != nil {
		// Generation failures are terminal for the job: the user
		// message stays persisted and the client may resend.
		log.Error("generation failed", zap.Error(err),
			zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
			zap.Bool("truncated", errors.Is(err, genai.ErrTruncated)),
			zap.Bool("empty", errors.Is(err, genai.ErrEmptyResponse)),
		)
		p.finish(delivery.Term(), "generation_failed", log)
		return
	}

	systemMsg, err := p.store.AppendMessage(ctx, job.ChatID, reply, model.AuthorSystem)
	if err != nil {
		// Retrying here would duplicate the user message; the turn is
		// left without a reply instead.
		log.Error("failed to persist generated reply", zap.Error(err))
		p.finish(delivery.Term(), "terminal", log)
		return
	}
	metrics.MessagesTotal.WithLabelValues(string(model.AuthorSystem)).Inc()

	if err := p.store.TouchLastUpdated(ctx, job.ChatID, systemMsg.CreatedAt); err != nil {
		log.Error("failed to touch chatroom", zap.Error(err))
	}

	// Listing entries order by last activity; drop the owner's entry so
	// the next read rebuilds it.
	if err := p.cache.Delete(ctx, cache.ListingKey(job.UserID)); err != nil {
		log.Warn("failed to invalidate listing cache", zap.Error(err))
	}

	log.Info("processed chat turn",
		zap.Int64("user_message_id", userMsg.ID),
		zap.Int64("reply_message_id", systemMsg.ID),
		zap.Duration("duration", time.Since(start)),
	)
	p.finish(delivery.Ack(), "success", log)
}

func (p *Pool) finish(ackErr error, outcome string, log *logger.Logger) {
	if ackErr != nil {
		log.Error("failed to settle delivery", zap.Error(ackErr))
	}
	metrics.JobsProcessedTotal.WithLabelValues(outcome).Inc()
}

// retryDelay backs off exponentially from baseRetryDelay, capped at two
// minutes.
func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := baseRetryDelay << uint(attempt-1)
	if delay > 2*time.Minute {
		delay = 2 * time.Minute
	}
	return delay
}
