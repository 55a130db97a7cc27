// Package app wires configuration into the runtime dependency container
// shared by the HTTP handlers.
package app

import (
	"context"
	"fmt"

	"github.com/ncecere/voice_gateway/internal/adapters/bedrock"
	"github.com/ncecere/voice_gateway/internal/adapters/openai"
	"github.com/ncecere/voice_gateway/internal/adapters/polly"
	"github.com/ncecere/voice_gateway/internal/adapters/transcribe"
	"github.com/ncecere/voice_gateway/internal/adapters/transcribestream"
	"github.com/ncecere/voice_gateway/internal/config"
	"github.com/ncecere/voice_gateway/internal/observability"
	"github.com/ncecere/voice_gateway/internal/prompts"
	"github.com/ncecere/voice_gateway/internal/services/voicepipeline"
	"github.com/ncecere/voice_gateway/internal/storage/blob"
)

// Container aggregates runtime dependencies for handlers and services.
// Every client is constructed once at startup and shared across requests.
type Container struct {
	Config        *config.Config
	Observability *observability.Provider
	Store         blob.Store
	Pipeline      *voicepipeline.Service
}

// NewContainer builds every pipeline collaborator from configuration.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	obs, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("setup observability: %w", err)
	}

	store, err := blob.New(ctx, cfg.Storage, cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	batch, err := transcribe.New(ctx, cfg.AWS, transcribe.Options{
		Language:     cfg.Transcribe.Language,
		MediaFormat:  cfg.Transcribe.MediaFormat,
		PollInterval: cfg.Transcribe.PollInterval,
		MaxWait:      cfg.Transcribe.MaxWait,
	})
	if err != nil {
		return nil, fmt.Errorf("init batch transcriber: %w", err)
	}

	stream, err := transcribestream.New(ctx, cfg.AWS, transcribestream.Options{
		SampleRateHz: cfg.Streaming.SampleRateHz,
		ChunkSize:    cfg.Streaming.ChunkSize,
		FFmpegPath:   cfg.Streaming.FFmpegPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init stream transcriber: %w", err)
	}

	builder := prompts.NewBuilder(prompts.Options{
		CompanyName:    cfg.LLM.CompanyName,
		CompanyProfile: cfg.LLM.CompanyProfile,
		KnowledgeFile:  cfg.LLM.KnowledgeFile,
	})

	responder, err := newResponder(ctx, cfg, builder)
	if err != nil {
		return nil, fmt.Errorf("init responder: %w", err)
	}

	synth, err := polly.New(ctx, cfg.AWS, store, polly.Options{
		EnglishVoice: cfg.Voices.English,
		ArabicVoice:  cfg.Voices.Arabic,
		Engine:       cfg.Voices.Engine,
		OutputFormat: cfg.Voices.OutputFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("init synthesizer: %w", err)
	}

	return &Container{
		Config:        cfg,
		Observability: obs,
		Store:         store,
		Pipeline:      voicepipeline.New(store, batch, stream, responder, synth, obs),
	}, nil
}

func newResponder(ctx context.Context, cfg *config.Config, builder *prompts.Builder) (voicepipeline.Responder, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return openai.New(builder, openai.Options{
			APIKey:      cfg.LLM.OpenAIKey,
			BaseURL:     cfg.LLM.OpenAIBaseURL,
			Model:       cfg.LLM.OpenAIModel,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
	default:
		return bedrock.New(ctx, cfg.AWS, builder, bedrock.Options{
			ModelID:          cfg.LLM.BedrockModelID,
			AnthropicVersion: cfg.LLM.AnthropicVersion,
			MaxTokens:        cfg.LLM.MaxTokens,
			Temperature:      cfg.LLM.Temperature,
		})
	}
}

// Shutdown flushes observability pipelines.
func (c *Container) Shutdown(ctx context.Context) error {
	if c == nil || c.Observability == nil {
		return nil
	}
	return c.Observability.Shutdown(ctx)
}
