// Package store provides durable storage for chatrooms and their ordered
// messages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/convoplex/chatroom-platform/internal/model"
)

// ErrNotFound is returned when a chatroom does not exist or does not
// belong to the requesting user. The two cases are deliberately
// indistinguishable to callers.
var ErrNotFound = errors.New("store: chatroom not found")

// ChatroomStore is the storage collaborator for the chat pipeline.
// Message writes are append-only; within a chatroom, read order always
// matches creation order.
type ChatroomStore interface {
	// CreateChatroom creates a chatroom owned by userID.
	CreateChatroom(ctx context.Context, userID int64, title string) (*model.Chatroom, error)

	// ListChatrooms returns the user's chatrooms, most recently active
	// first.
	ListChatrooms(ctx context.Context, userID int64) ([]model.Chatroom, error)

	// GetChatroomDetails returns the chatroom and its full history in
	// creation order, or ErrNotFound if it is missing or owned by
	// someone else.
	GetChatroomDetails(ctx context.Context, chatID, userID int64) (*model.ChatroomDetails, error)

	// AppendMessage appends a message to a chatroom.
	AppendMessage(ctx context.Context, chatID int64, text string, author model.Author) (*model.Message, error)

	// TouchLastUpdated advances the chatroom's last-activity time. The
	// value never moves backwards.
	TouchLastUpdated(ctx context.Context, chatID int64, at time.Time) error

	// LastMessages returns up to n newest messages, newest first.
	LastMessages(ctx context.Context, chatID int64, n int) ([]model.Message, error)
}
