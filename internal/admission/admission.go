// Package admission enforces the per-user daily chat turn quota.
package admission

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/convoplex/chatroom-platform/internal/cache"
	"github.com/convoplex/chatroom-platform/pkg/logger"
	"github.com/convoplex/chatroom-platform/pkg/metrics"
)

// CounterTTL spans the remainder of any calendar day plus a buffer for
// timezone skew, so a counter created at 00:00 still expires after the
// day it was created in.
const CounterTTL = 25 * time.Hour

// Controller decides whether a user may send another chat turn today.
//
// The counter update is a read-then-set against the shared cache, not an
// atomic increment, so concurrent calls for the same user can admit
// slightly past the limit. Serialized calls enforce the limit exactly.
type Controller struct {
	cache     cache.Cache
	freeLimit int
	proLimit  int
	loc       *time.Location
	logger    *logger.Logger

	now func() time.Time
}

// Config holds quota limits and the reference timezone.
type Config struct {
	FreeDailyLimit int
	ProDailyLimit  int

	// Timezone is the IANA name of the calendar-day reference zone. It
	// must be identical across every process of a deployment or counters
	// will split across keys at day boundaries.
	Timezone string
}

// NewController creates a quota controller.
func NewController(c cache.Cache, cfg Config, log *logger.Logger) (*Controller, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load quota timezone %q: %w", cfg.Timezone, err)
		}
	}

	return &Controller{
		cache:     c,
		freeLimit: cfg.FreeDailyLimit,
		proLimit:  cfg.ProDailyLimit,
		loc:       loc,
		logger:    log,
		now:       time.Now,
	}, nil
}

// SetClock overrides the time source. Test hook.
func (a *Controller) SetClock(now func() time.Time) {
	a.now = now
}

// Limit returns the daily limit applicable right now. The subscription
// expiry is compared against the current time on every call, so a lapsed
// subscription drops to the free limit without any cached tier state.
func (a *Controller) Limit(subscriptionExpiring *time.Time) int {
	if subscriptionExpiring == nil || !subscriptionExpiring.After(a.now()) {
		return a.freeLimit
	}
	return a.proLimit
}

// TryAdmit reports whether the user may send another turn today, and
// consumes one unit of quota if so. A cache failure is returned as an
// error, never as a silent admit or deny; the caller owns the fallback
// policy.
func (a *Controller) TryAdmit(ctx context.Context, userID int64, subscriptionExpiring *time.Time) (bool, error) {
	day := a.now().In(a.loc).Format("2006-01-02")
	key := cache.RateLimitKey(userID, day)

	limit := a.Limit(subscriptionExpiring)
	tier := "free"
	if limit == a.proLimit {
		tier = "pro"
	}

	data, err := a.cache.Get(ctx, key)
	switch {
	case errors.Is(err, cache.ErrMiss):
		// First turn of the day.
		if err := a.cache.Set(ctx, key, []byte("1"), CounterTTL); err != nil {
			return false, fmt.Errorf("failed to create quota counter: %w", err)
		}
		metrics.RecordAdmission(true, tier)
		return true, nil

	case err != nil:
		return false, fmt.Errorf("failed to read quota counter: %w", err)
	}

	current, err := strconv.Atoi(string(data))
	if err != nil {
		return false, fmt.Errorf("corrupt quota counter %q: %w", key, err)
	}

	if current >= limit {
		a.logger.Info("quota exhausted",
			zap.Int64("user_id", userID),
			zap.Int("count", current),
			zap.Int("limit", limit),
		)
		metrics.RecordAdmission(false, tier)
		return false, nil
	}

	if err := a.cache.Set(ctx, key, []byte(strconv.Itoa(current+1)), CounterTTL); err != nil {
		return false, fmt.Errorf("failed to increment quota counter: %w", err)
	}

	metrics.RecordAdmission(true, tier)
	return true, nil
}
