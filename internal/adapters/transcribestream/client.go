// Package transcribestream converts an uploaded audio file to raw PCM
// and runs it through the Amazon Transcribe streaming service, pushing
// chunks and draining transcript events concurrently.
package transcribestream

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsstreaming "github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ncecere/voice_gateway/internal/config"
	"github.com/ncecere/voice_gateway/internal/observability/logging"
	"github.com/ncecere/voice_gateway/internal/pipeline"
)

// duplexStream is the bidirectional session with the streaming service.
// The SDK's StartStreamTranscriptionEventStream satisfies it; tests
// substitute a fake.
type duplexStream interface {
	Send(ctx context.Context, event types.AudioStream) error
	Events() <-chan types.TranscriptResultStream
	Close() error
	Err() error
}

// streamStarter opens a new duplex session for the given language.
type streamStarter func(ctx context.Context, language string) (duplexStream, error)

// Options tune conversion and chunking.
type Options struct {
	SampleRateHz int
	ChunkSize    int
	FFmpegPath   string
}

// Client implements streaming transcription over a converted raw file.
type Client struct {
	start streamStarter
	opts  Options
	log   zerolog.Logger
}

// New creates a streaming transcription client from AWS configuration.
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

	sdk := awsstreaming.NewFromConfig(base)
	starter := func(ctx context.Context, language string) (duplexStream, error) {
		out, err := sdk.StartStreamTranscription(ctx, &awsstreaming.StartStreamTranscriptionInput{
			LanguageCode:         types.LanguageCode(language),
			MediaEncoding:        types.MediaEncodingPcm,
			MediaSampleRateHertz: aws.Int32(int32(opts.SampleRateHz)),
		})
		if err != nil {
			return nil, err
		}
		return out.GetStream(), nil
	}
	return newWithStarter(starter, opts), nil
}

func newWithStarter(start streamStarter, opts Options) *Client {
	if opts.SampleRateHz <= 0 {
		opts.SampleRateHz = 16000
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 16 * 1024
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	return &Client{start: start, opts: opts, log: logging.WithComponent("transcribestream")}
}

// TranscribeFile converts the file at path to raw PCM and streams it to
// the transcription service. The temporary raw file is removed on every
// exit path. The returned transcript joins only finalized segments.
func (c *Client) TranscribeFile(ctx context.Context, path, language string) (string, error) {
	rawPath := path + ".raw"
	defer func() {
		// Best-effort cleanup; the file may legitimately be absent when
		// conversion never produced it.
		_ = os.Remove(rawPath)
	}()

	if err := convertToRawPCM(ctx, c.opts.FFmpegPath, path, rawPath, c.opts.SampleRateHz); err != nil {
		return "", err
	}

	raw, err := os.Open(rawPath)
	if err != nil {
		return "", pipeline.Wrap(pipeline.StepTranscription, fmt.Errorf("open raw audio: %w", err))
	}
	defer raw.Close()

	return c.transcribe(ctx, raw, language)
}

func (c *Client) transcribe(ctx context.Context, raw io.Reader, language string) (string, error) {
	stream, err := c.start(ctx, language)
	if err != nil {
		return "", pipeline.Wrap(pipeline.StepTranscription, fmt.Errorf("start stream: %w", err))
	}

	// The receiving half owns segments; the sender never touches it.
	var segments []string

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer stream.Close()
		buf := make([]byte, c.opts.ChunkSize)
		for {
			n, readErr := raw.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				event := &types.AudioStreamMemberAudioEvent{
					Value: types.AudioEvent{AudioChunk: chunk},
				}
				if err := stream.Send(gctx, event); err != nil {
					return fmt.Errorf("send audio chunk: %w", err)
				}
			}
			if readErr == io.EOF {
				return nil
			}
			if readErr != nil {
				return fmt.Errorf("read raw audio: %w", readErr)
			}
		}
	})

	g.Go(func() error {
		for event := range stream.Events() {
			transcriptEvent, ok := event.(*types.TranscriptResultStreamMemberTranscriptEvent)
			if !ok || transcriptEvent.Value.Transcript == nil {
				continue
			}
			for _, result := range transcriptEvent.Value.Transcript.Results {
				if result.IsPartial || len(result.Alternatives) == 0 {
					continue
				}
				if text := aws.ToString(result.Alternatives[0].Transcript); text != "" {
					segments = append(segments, text)
				}
			}
		}
		return stream.Err()
	})

	if err := g.Wait(); err != nil {
		return "", pipeline.Wrap(pipeline.StepTranscription, err)
	}

	transcript := strings.TrimSpace(strings.Join(segments, " "))
	c.log.Debug().Int("segments", len(segments)).Msg("streaming transcription finished")
	return transcript, nil
}
