// Package model defines data structures for the chatroom platform.
package model

import (
	"time"
)

// Chatroom represents a conversation thread owned by a single user.
type Chatroom struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// ChatroomDetails is a chatroom together with its full ordered history.
type ChatroomDetails struct {
	Chatroom
	Messages []Message `json:"messages"`
}

// CreateChatroomRequest is the request to create a new chatroom.
type CreateChatroomRequest struct {
	Title string `json:"title"`
}

// ListChatroomsResponse is the response for listing a user's chatrooms,
// ordered by last activity (newest first).
type ListChatroomsResponse struct {
	Chatrooms []Chatroom `json:"chatrooms"`
	Total     int        `json:"total"`
	Cached    bool       `json:"cached,omitempty"`
}
