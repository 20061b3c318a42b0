package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/convoplex/chatroom-platform/internal/model"
)

// SQLiteStore is a SQLite-backed ChatroomStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at dbPath.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chatrooms.db"
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}

	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chatrooms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_updated DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL REFERENCES chatrooms(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		author TEXT NOT NULL CHECK (author IN ('user', 'system')),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chatrooms_user ON chatrooms(user_id, last_updated);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateChatroom creates a chatroom owned by userID.
func (s *SQLiteStore) CreateChatroom(ctx context.Context, userID int64, title string) (*model.Chatroom, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chatrooms (user_id, title, created_at, last_updated)
		VALUES (?, ?, ?, ?)
	`, userID, title, now, now)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &model.Chatroom{
		ID:          id,
		UserID:      userID,
		Title:       title,
		CreatedAt:   now,
		LastUpdated: now,
	}, nil
}

// ListChatrooms returns the user's chatrooms, most recently active first.
func (s *SQLiteStore) ListChatrooms(ctx context.Context, userID int64) ([]model.Chatroom, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, last_updated
		FROM chatrooms
		WHERE user_id = ?
		ORDER BY last_updated DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chatrooms []model.Chatroom
	for rows.Next() {
		var c model.Chatroom
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.LastUpdated); err != nil {
			return nil, err
		}
		chatrooms = append(chatrooms, c)
	}

	return chatrooms, rows.Err()
}

// GetChatroomDetails returns the chatroom and its history in creation order.
func (s *SQLiteStore) GetChatroomDetails(ctx context.Context, chatID, userID int64) (*model.ChatroomDetails, error) {
	var c model.Chatroom
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, created_at, last_updated
		FROM chatrooms
		WHERE id = ? AND user_id = ?
	`, chatID, userID).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, text, author, created_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY created_at ASC, id ASC
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Text, &m.Author, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &model.ChatroomDetails{Chatroom: c, Messages: messages}, nil
}

// AppendMessage appends a message to a chatroom.
func (s *SQLiteStore) AppendMessage(ctx context.Context, chatID int64, text string, author model.Author) (*model.Message, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (chat_id, text, author, created_at)
		VALUES (?, ?, ?, ?)
	`, chatID, text, string(author), now)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &model.Message{
		ID:        id,
		ChatID:    chatID,
		Text:      text,
		Author:    author,
		CreatedAt: now,
	}, nil
}

// TouchLastUpdated advances the chatroom's last-activity time.
func (s *SQLiteStore) TouchLastUpdated(ctx context.Context, chatID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE chatrooms
		SET last_updated = ?
		WHERE id = ? AND last_updated < ?
	`, at.UTC(), chatID, at.UTC())
	return err
}

// LastMessages returns up to n newest messages, newest first.
func (s *SQLiteStore) LastMessages(ctx context.Context, chatID int64, n int) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, text, author, created_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, chatID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Text, &m.Author, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}
