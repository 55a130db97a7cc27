// Package openai generates chat responses through the OpenAI API as an
// alternative to the Bedrock provider.
package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/ncecere/voice_gateway/internal/pipeline"
	"github.com/ncecere/voice_gateway/internal/prompts"
)

// Options configure the OpenAI adapter.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int32
	Temperature float64
}

// Adapter wraps the official OpenAI SDK behind the responder contract.
type Adapter struct {
	client  *openai.Client
	prompts *prompts.Builder
	opts    Options
}

// New creates an OpenAI adapter using the provided API key and optional base URL.
func New(builder *prompts.Builder, opts Options) (*Adapter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai: api key required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("openai: model required")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}

	requestOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if strings.TrimSpace(opts.BaseURL) != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")))
	}

	client := openai.NewClient(requestOpts...)
	return &Adapter{client: &client, prompts: builder, opts: opts}, nil
}

// Respond sends text through the voice prompt pair and returns the
// first choice's message content.
func (a *Adapter) Respond(ctx context.Context, text string) (string, error) {
	system, err := a.prompts.System()
	if err != nil {
		return "", pipeline.Wrap(pipeline.StepGeneration, err)
	}

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(a.prompts.User(text)),
		},
		MaxTokens:   openai.Int(int64(a.opts.MaxTokens)),
		Temperature: openai.Float(a.opts.Temperature),
	})
	if err != nil {
		return "", pipeline.Wrap(pipeline.StepGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", pipeline.Errorf(pipeline.StepGeneration, "openai response missing choices")
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", pipeline.Errorf(pipeline.StepGeneration, "openai response missing text content")
	}
	return reply, nil
}

// HealthCheck verifies the API key by listing models.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	_, err := a.client.Models.List(ctx)
	return err
}
