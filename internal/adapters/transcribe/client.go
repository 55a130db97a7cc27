// Package transcribe submits stored audio to Amazon Transcribe as an
// asynchronous batch job and polls it to completion.
package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awstranscribe "github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ncecere/voice_gateway/internal/config"
	"github.com/ncecere/voice_gateway/internal/observability/logging"
	"github.com/ncecere/voice_gateway/internal/pipeline"
)

// api covers the subset of the Transcribe SDK the client uses.
type api interface {
	StartTranscriptionJob(ctx context.Context, params *awstranscribe.StartTranscriptionJobInput, optFns ...func(*awstranscribe.Options)) (*awstranscribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, params *awstranscribe.GetTranscriptionJobInput, optFns ...func(*awstranscribe.Options)) (*awstranscribe.GetTranscriptionJobOutput, error)
}

// Options tune job submission and polling.
type Options struct {
	Language     string
	MediaFormat  string
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Client wraps the Transcribe SDK behind the pipeline's batch contract.
type Client struct {
	api        api
	httpClient *http.Client
	opts       Options
	log        zerolog.Logger
}

// New creates a batch transcription client from AWS configuration.
func New(ctx context.Context, awsConf config.AWSConfig, opts Options) (*Client, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(awsConf.Region),
	}
	if awsConf.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(awsConf.Profile))
	}
	if awsConf.AccessKeyID != "" && awsConf.SecretAccessKey != "" {
		provider := credentials.NewStaticCredentialsProvider(awsConf.AccessKeyID, awsConf.SecretAccessKey, awsConf.SessionToken)
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(provider))
	}
	base, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newWithAPI(awstranscribe.NewFromConfig(base), opts), nil
}

func newWithAPI(client api, opts Options) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 5 * time.Minute
	}
	if opts.MediaFormat == "" {
		opts.MediaFormat = "wav"
	}
	return &Client{
		api:        client,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		opts:       opts,
		log:        logging.WithComponent("transcribe"),
	}
}

// Transcribe submits mediaURI as a transcription job and blocks until
// the job reaches a terminal state or the maximum wait elapses. It
// returns the first transcript alternative on success.
func (c *Client) Transcribe(ctx context.Context, mediaURI string) (string, error) {
	jobName := fmt.Sprintf("transcribe_%d_%s", time.Now().Unix(), uuid.NewString()[:8])

	input := &awstranscribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
		Media:                &types.Media{MediaFileUri: aws.String(mediaURI)},
		MediaFormat:          types.MediaFormat(c.opts.MediaFormat),
		Settings: &types.Settings{
			ShowSpeakerLabels:     aws.Bool(false),
			ChannelIdentification: aws.Bool(false),
		},
	}
	if lang := strings.TrimSpace(c.opts.Language); lang == "" || strings.EqualFold(lang, "auto") {
		input.IdentifyLanguage = aws.Bool(true)
	} else {
		input.LanguageCode = types.LanguageCode(lang)
	}

	if _, err := c.api.StartTranscriptionJob(ctx, input); err != nil {
		return "", pipeline.Wrap(pipeline.StepTranscription, fmt.Errorf("start job %s: %w", jobName, err))
	}
	c.log.Debug().Str("job", jobName).Str("media_uri", mediaURI).Msg("transcription job submitted")

	job, err := c.waitForJob(ctx, jobName)
	if err != nil {
		return "", err
	}

	if job.Transcript == nil || job.Transcript.TranscriptFileUri == nil {
		return "", pipeline.Errorf(pipeline.StepTranscription, "job %s completed without a transcript uri", jobName)
	}
	text, err := c.fetchTranscript(ctx, aws.ToString(job.Transcript.TranscriptFileUri))
	if err != nil {
		return "", pipeline.Wrap(pipeline.StepTranscription, err)
	}
	return text, nil
}

func (c *Client) waitForJob(ctx context.Context, jobName string) (*types.TranscriptionJob, error) {
	deadline := time.Now().Add(c.opts.MaxWait)
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		out, err := c.api.GetTranscriptionJob(ctx, &awstranscribe.GetTranscriptionJobInput{
			TranscriptionJobName: aws.String(jobName),
		})
		if err != nil {
			return nil, pipeline.Wrap(pipeline.StepTranscription, fmt.Errorf("poll job %s: %w", jobName, err))
		}
		job := out.TranscriptionJob
		if job == nil {
			return nil, pipeline.Errorf(pipeline.StepTranscription, "poll job %s: empty response", jobName)
		}

		switch job.TranscriptionJobStatus {
		case types.TranscriptionJobStatusCompleted:
			return job, nil
		case types.TranscriptionJobStatusFailed:
			reason := aws.ToString(job.FailureReason)
			if reason == "" {
				reason = "no failure reason reported"
			}
			return nil, pipeline.Errorf(pipeline.StepTranscription, "job %s failed: %s", jobName, reason)
		}

		if time.Now().After(deadline) {
			return nil, pipeline.Wrap(pipeline.StepTranscription, fmt.Errorf("job %s: %w", jobName, pipeline.ErrPollTimeout))
		}

		select {
		case <-ctx.Done():
			return nil, pipeline.Wrap(pipeline.StepTranscription, ctx.Err())
		case <-ticker.C:
		}
	}
}

// transcriptDocument mirrors the result file Amazon Transcribe writes.
type transcriptDocument struct {
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
}

func (c *Client) fetchTranscript(ctx context.Context, uri string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", fmt.Errorf("build transcript request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch transcript: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch transcript: unexpected status %d", resp.StatusCode)
	}

	var doc transcriptDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("decode transcript document: %w", err)
	}
	if len(doc.Results.Transcripts) == 0 {
		return "", errors.New("transcript document contains no transcripts")
	}
	return doc.Results.Transcripts[0].Transcript, nil
}
