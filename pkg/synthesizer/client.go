// Package synthesizer turns free-text descriptions into candidate workflow states
// with the Anthropic Messages API, and labels states with a workflow pattern.
package synthesizer

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-3-5-sonnet-latest"

// MessagesClient is the slice of the Anthropic SDK the synthesizer needs.
type MessagesClient interface {
	New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// AnthropicClient wraps the real Anthropic messages service.
type AnthropicClient struct {
	messages *anthropic.MessageService
}

// NewAnthropicClient returns a client for apiKey, or nil when the key is empty.
//
// nolint:ireturn // a nil interface is how callers learn the LLM is disabled
func NewAnthropicClient(apiKey string, opts ...option.RequestOption) MessagesClient {
	if apiKey == "" {
		return nil
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := anthropic.NewClient(opts...)

	return &AnthropicClient{messages: &client.Messages}
}

func (c *AnthropicClient) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return c.messages.New(ctx, params)
}

func textContent(message *anthropic.Message) string {
	if message == nil {
		return ""
	}

	var text strings.Builder

	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return text.String()
}
