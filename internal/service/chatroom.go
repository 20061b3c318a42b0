// Package service provides business logic for the chatroom platform.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/convoplex/chatroom-platform/internal/admission"
	"github.com/convoplex/chatroom-platform/internal/cache"
	"github.com/convoplex/chatroom-platform/internal/model"
	"github.com/convoplex/chatroom-platform/internal/queue"
	"github.com/convoplex/chatroom-platform/internal/store"
	"github.com/convoplex/chatroom-platform/pkg/logger"
	"github.com/convoplex/chatroom-platform/pkg/metrics"
)

// ErrQuotaExceeded is returned when the user's daily turn quota is spent.
var ErrQuotaExceeded = errors.New("service: daily message quota exceeded")

// ChatroomService coordinates the store, cache, quota controller, and job
// queue behind the chatroom API.
type ChatroomService struct {
	store     store.ChatroomStore
	cache     cache.Cache
	admission *admission.Controller
	queue     queue.Queue
	logger    *logger.Logger

	listingTTL time.Duration
	failOpen   bool
}

// Config holds service settings.
type Config struct {
	// ListingCacheTTL bounds staleness of cached chatroom listings.
	ListingCacheTTL time.Duration

	// AdmissionFailOpen selects the fallback when the quota counter
	// cannot be read or written: true admits the turn, false rejects
	// it. The choice is explicit so a cache outage never silently
	// changes admission behavior.
	AdmissionFailOpen bool
}

// NewChatroomService creates a chatroom service.
func NewChatroomService(
	st store.ChatroomStore,
	c cache.Cache,
	adm *admission.Controller,
	q queue.Queue,
	cfg Config,
	log *logger.Logger,
) *ChatroomService {
	ttl := cfg.ListingCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &ChatroomService{
		store:      st,
		cache:      c,
		admission:  adm,
		queue:      q,
		logger:     log,
		listingTTL: ttl,
		failOpen:   cfg.AdmissionFailOpen,
	}
}

// Create creates a chatroom and invalidates the owner's cached listing so
// the next List cannot omit the new room.
func (s *ChatroomService) Create(ctx context.Context, userID int64, title string) (*model.Chatroom, error) {
	chatroom, err := s.store.CreateChatroom(ctx, userID, title)
	if err != nil {
		return nil, fmt.Errorf("failed to create chatroom: %w", err)
	}

	// Invalidate before returning: a stale listing that omits a room the
	// caller just created is never acceptable.
	if err := s.cache.Delete(ctx, cache.ListingKey(userID)); err != nil {
		s.logger.Warn("failed to invalidate listing cache",
			zap.Int64("user_id", userID), zap.Error(err))
	}

	metrics.ChatroomsTotal.Inc()
	s.logger.Info("chatroom created",
		zap.Int64("chat_id", chatroom.ID), zap.Int64("user_id", userID))

	return chatroom, nil
}

// List returns the user's chatrooms, read through the listing cache. A
// cache failure degrades to a store read; it never fails the request.
func (s *ChatroomService) List(ctx context.Context, userID int64) (*model.ListChatroomsResponse, error) {
	key := cache.ListingKey(userID)

	if data, err := s.cache.Get(ctx, key); err == nil {
		var chatrooms []model.Chatroom
		if err := json.Unmarshal(data, &chatrooms); err == nil {
			metrics.CacheOpsTotal.WithLabelValues("get", "hit").Inc()
			return &model.ListChatroomsResponse{
				Chatrooms: chatrooms,
				Total:     len(chatrooms),
				Cached:    true,
			}, nil
		}
		// Corrupt entry; fall through to the store and rewrite it.
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("listing cache read failed",
			zap.Int64("user_id", userID), zap.Error(err))
	}
	metrics.CacheOpsTotal.WithLabelValues("get", "miss").Inc()

	chatrooms, err := s.store.ListChatrooms(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chatrooms: %w", err)
	}

	if data, err := json.Marshal(chatrooms); err == nil {
		if err := s.cache.Set(ctx, key, data, s.listingTTL); err != nil {
			s.logger.Warn("listing cache write failed",
				zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	return &model.ListChatroomsResponse{
		Chatrooms: chatrooms,
		Total:     len(chatrooms),
	}, nil
}

// Details returns the chatroom and its full ordered history, scoped to
// the requesting user.
func (s *ChatroomService) Details(ctx context.Context, chatID, userID int64) (*model.ChatroomDetails, error) {
	return s.store.GetChatroomDetails(ctx, chatID, userID)
}

// SendMessage admits one chat turn against the daily quota and enqueues
// it for asynchronous processing. It returns as soon as the job is
// durably scheduled; the reply is observed later via LastMessage.
func (s *ChatroomService) SendMessage(ctx context.Context, userID, chatID int64, text string, subscriptionExpiring *time.Time) (*model.SendMessageResponse, error) {
	// Ownership check before anything touches the quota or queue.
	if _, err := s.store.GetChatroomDetails(ctx, chatID, userID); err != nil {
		return nil, err
	}

	allowed, err := s.admission.TryAdmit(ctx, userID, subscriptionExpiring)
	if err != nil {
		s.logger.Error("admission check failed",
			zap.Int64("user_id", userID), zap.Int64("chat_id", chatID),
			zap.Bool("fail_open", s.failOpen), zap.Error(err))
		if !s.failOpen {
			return nil, fmt.Errorf("admission unavailable: %w", err)
		}
		allowed = true
	}
	if !allowed {
		return nil, ErrQuotaExceeded
	}

	jobID, err := s.queue.Enqueue(ctx, &model.Job{
		ChatID:               chatID,
		UserID:               userID,
		Message:              text,
		SubscriptionExpiring: subscriptionExpiring,
	})
	if err != nil {
		s.logger.Error("failed to enqueue chat turn",
			zap.Int64("user_id", userID), zap.Int64("chat_id", chatID), zap.Error(err))
		return nil, fmt.Errorf("failed to enqueue chat turn: %w", err)
	}

	metrics.JobsEnqueuedTotal.Inc()
	s.logger.Info("chat turn enqueued",
		zap.String("job_id", jobID), zap.Int64("user_id", userID), zap.Int64("chat_id", chatID))

	return &model.SendMessageResponse{
		Status: "queued",
		JobID:  jobID,
		Note:   "poll the last-message endpoint for the reply",
	}, nil
}

// LastMessage returns the chatroom's newest message if it is a system
// reply, or nil while the latest turn is still awaiting generation.
func (s *ChatroomService) LastMessage(ctx context.Context, chatID, userID int64) (*model.Message, error) {
	if _, err := s.store.GetChatroomDetails(ctx, chatID, userID); err != nil {
		return nil, err
	}

	msgs, err := s.store.LastMessages(ctx, chatID, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch last messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	if msgs[0].Author == model.AuthorSystem {
		return &msgs[0], nil
	}
	return nil, nil
}
