package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

// AnthropicGenerator serves claude-* models.
type AnthropicGenerator struct {
	client    anthropic.Client
	maxTokens int64
}

func NewAnthropicGenerator(apiKey string) *AnthropicGenerator {
	return &AnthropicGenerator{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		maxTokens: anthropicMaxTokens,
	}
}

func (a *AnthropicGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		// 529 is the overloaded status
		if errors.As(err, &apiErr) && (apiErr.StatusCode == 429 || apiErr.StatusCode == 529) {
			return "", fmt.Errorf("%w: anthropic %s returned %d", ErrRateLimited, model, apiErr.StatusCode)
		}
		return "", fmt.Errorf("anthropic %s: %w", model, err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	return strings.TrimSpace(b.String()), nil
}
