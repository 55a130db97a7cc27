// Package voicepipeline sequences the voice interaction steps: store
// the uploaded audio, transcribe it, generate a reply, and synthesize
// the reply back to speech. Steps run in strict order and the first
// failure aborts the remainder; partial results are discarded.
package voicepipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ncecere/voice_gateway/internal/models"
	"github.com/ncecere/voice_gateway/internal/observability"
	"github.com/ncecere/voice_gateway/internal/observability/logging"
	"github.com/ncecere/voice_gateway/internal/pipeline"
	"github.com/ncecere/voice_gateway/internal/storage/blob"
)

// BatchTranscriber converts stored audio to text via an asynchronous job.
type BatchTranscriber interface {
	Transcribe(ctx context.Context, mediaURI string) (string, error)
}

// StreamTranscriber converts an on-disk audio file to text over a
// duplex stream.
type StreamTranscriber interface {
	TranscribeFile(ctx context.Context, path, language string) (string, error)
}

// Responder produces a conversational reply for transcribed text.
type Responder interface {
	Respond(ctx context.Context, text string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Synthesizer turns reply text into stored speech and returns its URL.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Service owns one instance of every pipeline collaborator. Clients are
// injected once at startup and shared across requests.
type Service struct {
	store     blob.Store
	batch     BatchTranscriber
	stream    StreamTranscriber
	responder Responder
	synth     Synthesizer
	metrics   *observability.Provider
	log       zerolog.Logger
	now       func() time.Time
}

// New wires the pipeline service. metrics may be nil.
func New(store blob.Store, batch BatchTranscriber, stream StreamTranscriber, responder Responder, synth Synthesizer, metrics *observability.Provider) *Service {
	return &Service{
		store:     store,
		batch:     batch,
		stream:    stream,
		responder: responder,
		synth:     synth,
		metrics:   metrics,
		log:       logging.WithComponent("voicepipeline"),
		now:       time.Now,
	}
}

// timeStep runs fn, records its duration under the step name, and
// reports failures to the metrics provider.
func (s *Service) timeStep(step pipeline.Step, timings models.Timings, fn func() error) error {
	start := s.now()
	err := fn()
	elapsed := time.Since(start)

	timings[string(step)] = elapsed.Seconds()
	s.metrics.RecordStep(string(step), elapsed)
	if err != nil {
		s.metrics.RecordStepFailure(string(step))
		return pipeline.Wrap(step, err)
	}
	return nil
}

// Upload stores the audio payload under its original filename and
// returns the public URL with the elapsed seconds.
func (s *Service) Upload(ctx context.Context, audio models.AudioInput) (string, float64, error) {
	timings := models.Timings{}
	var url string
	err := s.timeStep(pipeline.StepUpload, timings, func() error {
		key := audio.Filename
		if key == "" {
			key = fmt.Sprintf("audio_%d", s.now().Unix())
		}
		info, putErr := s.store.Put(ctx, key, audio.Reader, blob.PutOptions{ContentType: audio.ContentType})
		if putErr != nil {
			return putErr
		}
		url = info.URL
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return url, timings[string(pipeline.StepUpload)], nil
}

// Transcribe runs a batch transcription job against already stored audio.
func (s *Service) Transcribe(ctx context.Context, mediaURL string) (string, float64, error) {
	timings := models.Timings{}
	var transcript string
	err := s.timeStep(pipeline.StepTranscription, timings, func() error {
		var trErr error
		transcript, trErr = s.batch.Transcribe(ctx, mediaURL)
		return trErr
	})
	if err != nil {
		return "", 0, err
	}
	return transcript, timings[string(pipeline.StepTranscription)], nil
}

// Respond generates the reply text for a transcription.
func (s *Service) Respond(ctx context.Context, text string) (string, float64, error) {
	timings := models.Timings{}
	var reply string
	err := s.timeStep(pipeline.StepGeneration, timings, func() error {
		var genErr error
		reply, genErr = s.responder.Respond(ctx, text)
		return genErr
	})
	if err != nil {
		return "", 0, err
	}
	return reply, timings[string(pipeline.StepGeneration)], nil
}

// Synthesize converts reply text to stored speech.
func (s *Service) Synthesize(ctx context.Context, text string) (string, float64, error) {
	timings := models.Timings{}
	var url string
	err := s.timeStep(pipeline.StepSynthesis, timings, func() error {
		var synthErr error
		url, synthErr = s.synth.Synthesize(ctx, text)
		return synthErr
	})
	if err != nil {
		return "", 0, err
	}
	return url, timings[string(pipeline.StepSynthesis)], nil
}

// StreamingTranscribe transcribes an on-disk file over the duplex stream.
func (s *Service) StreamingTranscribe(ctx context.Context, path, language string) (string, float64, error) {
	timings := models.Timings{}
	var transcript string
	err := s.timeStep(pipeline.StepTranscription, timings, func() error {
		var trErr error
		transcript, trErr = s.stream.TranscribeFile(ctx, path, language)
		return trErr
	})
	if err != nil {
		return "", 0, err
	}
	return transcript, timings[string(pipeline.StepTranscription)], nil
}

// Complete runs the full pipeline with the batch transcriber.
func (s *Service) Complete(ctx context.Context, audio models.AudioInput) (*models.PipelineResult, error) {
	timings := models.Timings{}
	result := &models.PipelineResult{Timings: timings}

	err := s.timeStep(pipeline.StepUpload, timings, func() error {
		key := audio.Filename
		if key == "" {
			key = fmt.Sprintf("audio_%d", s.now().Unix())
		}
		info, putErr := s.store.Put(ctx, key, audio.Reader, blob.PutOptions{ContentType: audio.ContentType})
		if putErr != nil {
			return putErr
		}
		result.InputAudio = info.URL
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.timeStep(pipeline.StepTranscription, timings, func() error {
		var trErr error
		result.Transcription, trErr = s.batch.Transcribe(ctx, result.InputAudio)
		return trErr
	}); err != nil {
		return nil, err
	}

	if err := s.respondAndSynthesize(ctx, result.Transcription, result); err != nil {
		return nil, err
	}

	result.TotalSeconds = timings.Total()
	s.log.Info().Str("input", result.InputAudio).Float64("total_seconds", result.TotalSeconds).Msg("pipeline complete")
	return result, nil
}

// StreamingComplete runs the full pipeline with the streaming
// transcriber against an on-disk file.
func (s *Service) StreamingComplete(ctx context.Context, path, language string) (*models.PipelineResult, error) {
	timings := models.Timings{}
	result := &models.PipelineResult{Timings: timings}

	if err := s.timeStep(pipeline.StepTranscription, timings, func() error {
		var trErr error
		result.Transcription, trErr = s.stream.TranscribeFile(ctx, path, language)
		return trErr
	}); err != nil {
		return nil, err
	}

	if err := s.respondAndSynthesize(ctx, result.Transcription, result); err != nil {
		return nil, err
	}

	result.TotalSeconds = timings.Total()
	return result, nil
}

// TextToSpeech skips transcription: generate a reply for the given text
// and synthesize it.
func (s *Service) TextToSpeech(ctx context.Context, text string) (*models.PipelineResult, error) {
	timings := models.Timings{}
	result := &models.PipelineResult{Transcription: text, Timings: timings}

	if err := s.respondAndSynthesize(ctx, text, result); err != nil {
		return nil, err
	}

	result.TotalSeconds = timings.Total()
	return result, nil
}

// HealthCheck reports whether the configured responder can reach its
// upstream provider.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.responder.HealthCheck(ctx)
}

func (s *Service) respondAndSynthesize(ctx context.Context, text string, result *models.PipelineResult) error {
	if err := s.timeStep(pipeline.StepGeneration, result.Timings, func() error {
		var genErr error
		result.ResponseText, genErr = s.responder.Respond(ctx, text)
		return genErr
	}); err != nil {
		return err
	}

	return s.timeStep(pipeline.StepSynthesis, result.Timings, func() error {
		var synthErr error
		result.ResponseAudio, synthErr = s.synth.Synthesize(ctx, result.ResponseText)
		return synthErr
	})
}
