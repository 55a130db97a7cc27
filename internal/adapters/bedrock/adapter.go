// Package bedrock generates chat responses with Anthropic models hosted
// on Amazon Bedrock.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"

	"github.com/ncecere/voice_gateway/internal/config"
	"github.com/ncecere/voice_gateway/internal/observability/logging"
	"github.com/ncecere/voice_gateway/internal/pipeline"
	"github.com/ncecere/voice_gateway/internal/prompts"
)

// invoker covers the single Bedrock call the adapter makes.
type invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Options controls how the Bedrock adapter is initialised.
type Options struct {
	ModelID          string
	AnthropicVersion string
	MaxTokens        int32
	Temperature      float64
}

// Adapter invokes an Anthropic model on Bedrock with the voice prompts.
type Adapter struct {
	client    invoker
	stsClient *sts.Client
	prompts   *prompts.Builder
	opts      Options
	log       zerolog.Logger
}

// New creates a Bedrock adapter using the provided credentials/region.
func New(ctx context.Context, awsConf config.AWSConfig, builder *prompts.Builder, opts Options) (*Adapter, error) {
	if opts.ModelID == "" {
		return nil, errors.New("bedrock model id required")
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(awsConf.Region),
	}
	if awsConf.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(awsConf.Profile))
	}
	if awsConf.AccessKeyID != "" && awsConf.SecretAccessKey != "" {
		staticProvider := credentials.NewStaticCredentialsProvider(awsConf.AccessKeyID, awsConf.SecretAccessKey, awsConf.SessionToken)
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(staticProvider))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = awsConf.Region
	}

	adapter := newWithInvoker(bedrockruntime.NewFromConfig(awsCfg), builder, opts)
	adapter.stsClient = sts.NewFromConfig(awsCfg)
	return adapter, nil
}

func newWithInvoker(client invoker, builder *prompts.Builder, opts Options) *Adapter {
	if opts.AnthropicVersion == "" {
		opts.AnthropicVersion = "bedrock-2023-05-31"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	return &Adapter{
		client:  client,
		prompts: builder,
		opts:    opts,
		log:     logging.WithComponent("bedrock"),
	}
}

// Respond sends text through the voice prompt pair and returns the
// model's first text segment.
func (a *Adapter) Respond(ctx context.Context, text string) (string, error) {
	system, err := a.prompts.System()
	if err != nil {
		return "", pipeline.Wrap(pipeline.StepGeneration, err)
	}

	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: a.opts.AnthropicVersion,
		System:           system,
		Messages: []anthropicMessage{
			{
				Role:    "user",
				Content: []anthropicContent{{Type: "text", Text: a.prompts.User(text)}},
			},
		},
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
	})
	if err != nil {
		return "", pipeline.Wrap(pipeline.StepGeneration, fmt.Errorf("encode request: %w", err))
	}

	out, err := a.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(a.opts.ModelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", pipeline.Wrap(pipeline.StepGeneration, err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return "", pipeline.Wrap(pipeline.StepGeneration, fmt.Errorf("decode bedrock response: %w", err))
	}
	reply := parsed.FirstText()
	if reply == "" {
		return "", pipeline.Errorf(pipeline.StepGeneration, "bedrock response missing text content")
	}

	a.log.Debug().Int32("input_tokens", parsed.Usage.InputTokens).Int32("output_tokens", parsed.Usage.OutputTokens).Msg("response generated")
	return reply, nil
}

// HealthCheck verifies the AWS credentials without incurring inference costs.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if a.stsClient == nil {
		return errors.New("bedrock sts client not initialised")
	}
	_, err := a.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	return err
}

// anthropicRequest models the payload expected by Claude 3 on Bedrock.
type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	MaxTokens        int32              `json:"max_tokens"`
	Temperature      float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int32 `json:"input_tokens"`
	OutputTokens int32 `json:"output_tokens"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

// FirstText returns the first text content segment of the reply.
func (a anthropicResponse) FirstText() string {
	for _, c := range a.Content {
		if c.Type == "text" {
			return strings.TrimSpace(c.Text)
		}
	}
	return ""
}
