package genai

import (
	"context"
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/convoplex/chatroom-platform/pkg/metrics"
)

const (
	openaiModel       = "gpt-4o-mini"
	systemInstruction = "You are a helpful AI assistant. Keep every reply within 1000 characters."
	maxOutputTokens   = 1200
	temperature       = 0.7
)

// OpenAIClient is the OpenAI generation client.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  openaiModel,
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Send generates a reply to newMessage given the prior history.
func (c *OpenAIClient) Send(ctx context.Context, history []Turn, newMessage string) (string, error) {
	start := time.Now()

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemInstruction,
	})
	for _, turn := range history {
		role := openai.ChatMessageRoleAssistant
		if turn.Role == RoleUser {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Text,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: newMessage,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxOutputTokens,
		Temperature: temperature,
	})
	if err != nil {
		metrics.RecordGeneration(c.Name(), "error", time.Since(start).Seconds(), 0, 0)
		return "", err
	}

	if len(resp.Choices) == 0 {
		metrics.RecordGeneration(c.Name(), "empty", time.Since(start).Seconds(), resp.Usage.PromptTokens, 0)
		return "", ErrEmptyResponse
	}

	choice := resp.Choices[0]
	if choice.Message.Content == "" {
		if choice.FinishReason == openai.FinishReasonLength {
			metrics.RecordGeneration(c.Name(), "truncated", time.Since(start).Seconds(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
			return "", ErrTruncated
		}
		metrics.RecordGeneration(c.Name(), "empty", time.Since(start).Seconds(), resp.Usage.PromptTokens, 0)
		return "", ErrEmptyResponse
	}

	metrics.RecordGeneration(c.Name(), "success", time.Since(start).Seconds(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return choice.Message.Content, nil
}
