// Package ai talks to an OpenAI compatible chat completion API.
package ai

import (
	"context"
	"encoding/base64"
	"log/slog"

	"github.com/myrjola/casefile/internal/errors"
	"github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel answers free-form questions when no model is configured.
	DefaultModel = openai.GPT3Dot5Turbo1106
	MaxTokens    = 1024
)

type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, e.g. for a local compatible server. Empty means OpenAI.
	BaseURL string
}

type Client struct {
	client *openai.Client
	model  string
}

func NewClient(cfg Config) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) SyncCompletion(
	ctx context.Context,
	messages []openai.ChatCompletionMessage,
) (openai.ChatCompletionResponse, error) {
	completion, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     c.model,
			MaxTokens: MaxTokens,
			Messages:  messages,
		},
	)
	if err != nil {
		return openai.ChatCompletionResponse{}, errors.Wrap(err, "create chat completion",
			slog.String("model", c.model))
	}
	return completion, nil
}

func (c *Client) StreamCompletion(
	ctx context.Context,
	messages []openai.ChatCompletionMessage,
) (*openai.ChatCompletionStream, error) {
	completion, err := c.client.CreateChatCompletionStream(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     c.model,
			MaxTokens: MaxTokens,
			Messages:  messages,
			Stream:    true,
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "create chat completion stream", slog.String("model", c.model))
	}
	return completion, nil
}

// GeneratePortrait draws a square image for prompt and returns it PNG encoded.
func (c *Client) GeneratePortrait(ctx context.Context, prompt string) ([]byte, error) {
	response, err := c.client.CreateImage(ctx, openai.ImageRequest{ //nolint:exhaustruct // this is better for readability
		Model:          openai.CreateImageModelDallE3,
		Prompt:         prompt,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		N:              1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create image")
	}
	if len(response.Data) == 0 {
		return nil, errors.New("no image in response")
	}
	img, err := base64.StdEncoding.DecodeString(response.Data[0].B64JSON)
	if err != nil {
		return nil, errors.Wrap(err, "decode base64 image")
	}
	return img, nil
}
