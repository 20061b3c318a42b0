package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/convoplex/chatroom-platform/internal/model"
)

// MemoryStore is an in-process ChatroomStore for tests and single-node
// development. Message slices are append-only, so read order is creation
// order by construction.
type MemoryStore struct {
	mu        sync.RWMutex
	chatrooms map[int64]*model.Chatroom
	messages  map[int64][]model.Message
	nextChat  int64
	nextMsg   int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chatrooms: make(map[int64]*model.Chatroom),
		messages:  make(map[int64][]model.Message),
	}
}

// CreateChatroom creates a chatroom owned by userID.
func (s *MemoryStore) CreateChatroom(ctx context.Context, userID int64, title string) (*model.Chatroom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextChat++
	now := time.Now().UTC()
	c := &model.Chatroom{
		ID:          s.nextChat,
		UserID:      userID,
		Title:       title,
		CreatedAt:   now,
		LastUpdated: now,
	}
	s.chatrooms[c.ID] = c

	return &model.Chatroom{ID: c.ID, UserID: c.UserID, Title: c.Title, CreatedAt: c.CreatedAt, LastUpdated: c.LastUpdated}, nil
}

// ListChatrooms returns the user's chatrooms, most recently active first.
func (s *MemoryStore) ListChatrooms(ctx context.Context, userID int64) ([]model.Chatroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Chatroom
	for _, c := range s.chatrooms {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].ID > out[j].ID
		}
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})

	return out, nil
}

// GetChatroomDetails returns the chatroom and its history in creation order.
func (s *MemoryStore) GetChatroomDetails(ctx context.Context, chatID, userID int64) (*model.ChatroomDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chatrooms[chatID]
	if !ok || c.UserID != userID {
		return nil, ErrNotFound
	}

	msgs := append([]model.Message(nil), s.messages[chatID]...)

	return &model.ChatroomDetails{Chatroom: *c, Messages: msgs}, nil
}

// AppendMessage appends a message to a chatroom.
func (s *MemoryStore) AppendMessage(ctx context.Context, chatID int64, text string, author model.Author) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chatrooms[chatID]; !ok {
		return nil, ErrNotFound
	}

	s.nextMsg++
	m := model.Message{
		ID:        s.nextMsg,
		ChatID:    chatID,
		Text:      text,
		Author:    author,
		CreatedAt: time.Now().UTC(),
	}
	s.messages[chatID] = append(s.messages[chatID], m)

	return &m, nil
}

// TouchLastUpdated advances the chatroom's last-activity time.
func (s *MemoryStore) TouchLastUpdated(ctx context.Context, chatID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chatrooms[chatID]
	if !ok {
		return ErrNotFound
	}
	if at.After(c.LastUpdated) {
		c.LastUpdated = at.UTC()
	}
	return nil
}

// LastMessages returns up to n newest messages, newest first.
func (s *MemoryStore) LastMessages(ctx context.Context, chatID int64, n int) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[chatID]
	var out []model.Message
	for i := len(msgs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}
