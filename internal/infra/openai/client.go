package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Client talks to any OpenAI-compatible chat completion endpoint
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewClient creates a chat client; an empty baseURL uses the OpenAI default
func NewClient(apiKey, baseURL, model string, timeout time.Duration) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		timeout: timeout,
	}
}

// Complete sends the conversation and returns the first choice
func (c *Client) Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.8,
		MaxTokens:   300,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return resp.Choices[0].Message.Content, nil
}
