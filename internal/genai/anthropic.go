package genai

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/convoplex/chatroom-platform/pkg/metrics"
)

const anthropicModel = "claude-3-5-haiku-20241022"

// AnthropicClient is the Anthropic generation client.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropicModel,
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Send generates a reply to newMessage given the prior history.
func (c *AnthropicClient) Send(ctx context.Context, history []Turn, newMessage string) (string, error) {
	start := time.Now()

	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, turn := range history {
		role := anthropic.MessageParamRoleAssistant
		if turn.Role == RoleUser {
			role = anthropic.MessageParamRoleUser
		}
		messages = append(messages, anthropic.MessageParam{
			Role: anthropic.F(role),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(turn.Text),
				},
			}),
		})
	}
	messages = append(messages, anthropic.MessageParam{
		Role: anthropic.F(anthropic.MessageParamRoleUser),
		Content: anthropic.F([]anthropic.ContentBlockParamUnion{
			anthropic.TextBlockParam{
				Type: anthropic.F(anthropic.TextBlockParamTypeText),
				Text: anthropic.F(newMessage),
			},
		}),
	})

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(c.model),
		MaxTokens: anthropic.F(int64(maxOutputTokens)),
		System: anthropic.F([]anthropic.TextBlockParam{
			{
				Type: anthropic.F(anthropic.TextBlockParamTypeText),
				Text: anthropic.F(systemInstruction),
			},
		}),
		Messages: anthropic.F(messages),
	})
	if err != nil {
		metrics.RecordGeneration(c.Name(), "error", time.Since(start).Seconds(), 0, 0)
		return "", err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content += block.Text
		}
	}

	tokensIn := int(resp.Usage.InputTokens)
	tokensOut := int(resp.Usage.OutputTokens)

	if content == "" {
		if resp.StopReason == anthropic.MessageStopReasonMaxTokens {
			metrics.RecordGeneration(c.Name(), "truncated", time.Since(start).Seconds(), tokensIn, tokensOut)
			return "", ErrTruncated
		}
		metrics.RecordGeneration(c.Name(), "empty", time.Since(start).Seconds(), tokensIn, 0)
		return "", ErrEmptyResponse
	}

	metrics.RecordGeneration(c.Name(), "success", time.Since(start).Seconds(), tokensIn, tokensOut)
	return content, nil
}
