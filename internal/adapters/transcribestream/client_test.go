package transcribestream

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"

	"github.com/ncecere/voice_gateway/internal/pipeline"
)

type fakeStream struct {
	mu        sync.Mutex
	sent      [][]byte
	events    chan types.TranscriptResultStream
	streamErr error
	closeOnce sync.Once
}

func newFakeStream(events ...types.TranscriptResultStream) *fakeStream {
	ch := make(chan types.TranscriptResultStream, len(events))
	for _, e := range events {
		ch <- e
	}
	return &fakeStream{events: ch}
}

func (f *fakeStream) Send(_ context.Context, event types.AudioStream) error {
	audio, ok := event.(*types.AudioStreamMemberAudioEvent)
	if !ok {
		return errors.New("unexpected event type")
	}
	f.mu.Lock()
	f.sent = append(f.sent, audio.Value.AudioChunk)
	f.mu.Unlock()
	return nil
}

func (f *fakeStream) Events() <-chan types.TranscriptResultStream { return f.events }

func (f *fakeStream) Close() error {
	f.closeOnce.Do(func() { close(f.events) })
	return nil
}

func (f *fakeStream) Err() error { return f.streamErr }

func transcriptEvent(partial bool, text string) types.TranscriptResultStream {
	return &types.TranscriptResultStreamMemberTranscriptEvent{
		Value: types.TranscriptEvent{
			Transcript: &types.Transcript{
				Results: []types.Result{{
					IsPartial:    partial,
					Alternatives: []types.Alternative{{Transcript: aws.String(text)}},
				}},
			},
		},
	}
}

func clientWithStream(stream *fakeStream) *Client {
	return newWithStarter(func(context.Context, string) (duplexStream, error) {
		return stream, nil
	}, Options{ChunkSize: 4})
}

func TestTranscribeKeepsOnlyFinalSegments(t *testing.T) {
	stream := newFakeStream(
		transcriptEvent(true, "hel"),
		transcriptEvent(true, "hello wor"),
		transcriptEvent(false, "hello world"),
	)
	client := clientWithStream(stream)

	got, err := client.transcribe(context.Background(), bytes.NewReader([]byte("abcdefgh")), "en-US")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("transcript = %q, want final segment only", got)
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()
	if len(stream.sent) != 2 {
		t.Fatalf("expected 2 chunks of 4 bytes, got %d", len(stream.sent))
	}
	if string(stream.sent[0]) != "abcd" || string(stream.sent[1]) != "efgh" {
		t.Fatalf("unexpected chunking: %q %q", stream.sent[0], stream.sent[1])
	}
}

func TestTranscribeJoinsFinalSegmentsInOrder(t *testing.T) {
	stream := newFakeStream(
		transcriptEvent(false, "hello"),
		transcriptEvent(true, "wor"),
		transcriptEvent(false, "world"),
	)
	client := clientWithStream(stream)

	got, err := client.transcribe(context.Background(), bytes.NewReader([]byte("x")), "en-US")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("transcript = %q, want %q", got, "hello world")
	}
}

func TestTranscribeSurfacesStreamError(t *testing.T) {
	stream := newFakeStream()
	stream.streamErr = errors.New("connection reset")
	client := clientWithStream(stream)

	_, err := client.transcribe(context.Background(), bytes.NewReader([]byte("x")), "en-US")
	if err == nil {
		t.Fatal("expected stream error")
	}
	if pipeline.StepOf(err) != pipeline.StepTranscription {
		t.Fatalf("unexpected step %s", pipeline.StepOf(err))
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranscribeFileCleansUpRawFile(t *testing.T) {
	// The stub copies its input to the raw output path, standing in for ffmpeg.
	ffmpeg := writeScript(t, `cp "$3" "${10}"`)

	audioPath := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(audioPath, []byte("pcmdata!"), 0o600); err != nil {
		t.Fatal(err)
	}

	stream := newFakeStream(transcriptEvent(false, "hi"))
	client := newWithStarter(func(context.Context, string) (duplexStream, error) {
		return stream, nil
	}, Options{ChunkSize: 4, FFmpegPath: ffmpeg})

	got, err := client.TranscribeFile(context.Background(), audioPath, "en-US")
	if err != nil {
		t.Fatalf("transcribe file: %v", err)
	}
	if got != "hi" {
		t.Fatalf("transcript = %q", got)
	}
	if _, err := os.Stat(audioPath + ".raw"); !os.IsNotExist(err) {
		t.Fatal("raw file must be removed on success")
	}
}

func TestTranscribeFileConversionFailure(t *testing.T) {
	ffmpeg := writeScript(t, "exit 1")

	audioPath := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(audioPath, []byte("junk"), 0o600); err != nil {
		t.Fatal(err)
	}

	client := newWithStarter(func(context.Context, string) (duplexStream, error) {
		t.Fatal("stream must not start when conversion fails")
		return nil, nil
	}, Options{FFmpegPath: ffmpeg})

	_, err := client.TranscribeFile(context.Background(), audioPath, "en-US")
	if err == nil {
		t.Fatal("expected conversion error")
	}
	if pipeline.StepOf(err) != pipeline.StepConversion {
		t.Fatalf("unexpected step %s", pipeline.StepOf(err))
	}
	if _, statErr := os.Stat(audioPath + ".raw"); !os.IsNotExist(statErr) {
		t.Fatal("raw file must not survive a failed conversion")
	}
}

func TestTranscribeFileTranscriptionFailureCleansUp(t *testing.T) {
	ffmpeg := writeScript(t, `cp "$3" "${10}"`)

	audioPath := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(audioPath, []byte("pcmdata!"), 0o600); err != nil {
		t.Fatal(err)
	}

	client := newWithStarter(func(context.Context, string) (duplexStream, error) {
		return nil, errors.New("credentials rejected")
	}, Options{FFmpegPath: ffmpeg})

	_, err := client.TranscribeFile(context.Background(), audioPath, "en-US")
	if err == nil {
		t.Fatal("expected transcription error")
	}
	if _, statErr := os.Stat(audioPath + ".raw"); !os.IsNotExist(statErr) {
		t.Fatal("raw file must be removed after transcription failure")
	}
}
