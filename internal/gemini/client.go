// Package gemini streams completions from Google's Gemini models through
// langchaingo.
package gemini

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/MikeSquared-Agency/parley/internal/chat"
	"github.com/MikeSquared-Agency/parley/internal/stream"
)

type Client struct {
	llm       llms.Model
	maxTokens int
}

func NewClient(ctx context.Context, apiKey, model string, maxTokens int) (*Client, error) {
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create googleai client: %w", err)
	}
	return NewWithModel(llm, maxTokens), nil
}

// NewWithModel wraps an already constructed langchaingo model.
func NewWithModel(llm llms.Model, maxTokens int) *Client {
	return &Client{llm: llm, maxTokens: maxTokens}
}

func (c *Client) Name() string { return "gemini" }

// Stream emits each raw []byte chunk handed to the langchaingo streaming func.
func (c *Client) Stream(ctx context.Context, req stream.Request, emit func(chunk any) error) error {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, m := range req.Messages {
		messageType := llms.ChatMessageTypeHuman
		if m.Role == chat.RoleAssistant {
			messageType = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(messageType, m.Content))
	}

	// googleai stops quietly when the streaming func fails, so the emit error
	// is kept and returned here.
	var emitErr error
	_, err := c.llm.GenerateContent(ctx, messages,
		llms.WithMaxTokens(c.maxTokens),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if err := emit(chunk); err != nil {
				emitErr = err
				return err
			}
			return nil
		}),
	)
	if emitErr != nil {
		return emitErr
	}
	if err != nil {
		return fmt.Errorf("generate content: %w", err)
	}
	return nil
}
