package middleware

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("message text is required")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}

// ValidateTitle validates a chatroom title.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("chatroom title is required")
	}
	if len(title) > 256 {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}

// ParseChatroomID parses a chatroom id path parameter.
func ParseChatroomID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid chatroom ID")
	}
	return id, nil
}
