// Package cache provides the shared key/value cache used for daily quota
// counters and chatroom listing entries. The two concerns use disjoint key
// namespaces, so they never write over each other.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when the key does not exist or has expired.
var ErrMiss = errors.New("cache: miss")

// Cache is a key/value store with per-key TTL. Implementations return
// transport errors as-is; call sites decide whether to degrade or fail.
type Cache interface {
	// Get returns the value for key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL. A zero TTL means
	// the implementation's default expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// RateLimitKey returns the quota counter key for a user on a calendar day.
// The day must be formatted YYYY-MM-DD in the configured timezone; the
// format is load-bearing for counter expiry and must not change.
func RateLimitKey(userID int64, day string) string {
	return fmt.Sprintf("rate_limit:%d:%s", userID, day)
}

// ListingKey returns the cached chatroom listing key for a user.
func ListingKey(userID int64) string {
	return fmt.Sprintf("user:%d:chatrooms", userID)
}
