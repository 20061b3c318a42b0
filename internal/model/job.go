package model

import (
	"time"
)

// Job is the immutable payload for one accepted chat turn. It is created
// at admission time, carried through the queue, and consumed by exactly
// one worker at a time (redelivery may hand it to another worker if the
// first fails to acknowledge within the lease).
type Job struct {
	ID                   string     `json:"id"`
	ChatID               int64      `json:"chat_id"`
	UserID               int64      `json:"user_id"`
	Message              string     `json:"message"`
	SubscriptionExpiring *time.Time `json:"subscription_expiring,omitempty"`
	EnqueuedAt           time.Time  `json:"enqueued_at"`
}
