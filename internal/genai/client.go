// Package genai provides the generation backend client used by workers to
// turn a chat history plus a new user message into a reply.
package genai

import (
	"context"
	"errors"

	"github.com/convoplex/chatroom-platform/internal/model"
)

// Typed failures from the generation backend. Any other error from Send
// is a transport or auth failure.
var (
	// ErrEmptyResponse means the backend returned no text at all.
	ErrEmptyResponse = errors.New("genai: backend returned an empty response")

	// ErrTruncated means the backend stopped at its output token cap
	// before producing a complete reply.
	ErrTruncated = errors.New("genai: response truncated at token limit")
)

// RoleUser and RoleModel are the only roles the backend accepts in a
// history turn.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one role-tagged entry of a conversation history.
type Turn struct {
	Role string
	Text string
}

// Client is the interface to a generation backend.
type Client interface {
	// Send generates a reply to newMessage given the prior history in
	// creation order. The call is bounded by ctx; callers are expected
	// to attach a deadline.
	Send(ctx context.Context, history []Turn, newMessage string) (string, error)

	// Name returns the provider name.
	Name() string
}

// HistoryFromMessages converts stored messages into the role-tagged shape
// the backend expects, preserving creation order. User-authored messages
// map to the user role, system-generated replies to the model role.
func HistoryFromMessages(msgs []model.Message) []Turn {
	history := make([]Turn, len(msgs))
	for i, m := range msgs {
		role := RoleModel
		if m.Author == model.AuthorUser {
			role = RoleUser
		}
		history[i] = Turn{Role: role, Text: m.Text}
	}
	return history
}

// Provider is the type of generation provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a generation client for the given provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return NewOpenAIClient(apiKey)
	}
}
