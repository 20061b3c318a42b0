package model

import (
	"time"
)

// Author represents who wrote a message.
type Author string

const (
	AuthorUser   Author = "user"
	AuthorSystem Author = "system"
)

// Message represents a single message in a chatroom. Messages are
// append-only and ordered by creation time; a user message always
// precedes the system reply generated for it.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Text      string    `json:"text"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// SendMessageRequest is the request to send a new message to a chatroom.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// SendMessageResponse acknowledges an accepted (queued) message. The
// generated reply is observed later via the last-message endpoint.
type SendMessageResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id,omitempty"`
	Note   string `json:"note,omitempty"`
}

// LastMessageResponse is the response for polling a chatroom's newest
// system reply. Message is null while a turn is still being processed.
type LastMessageResponse struct {
	Message *Message `json:"message"`
	Note    string   `json:"note,omitempty"`
}
