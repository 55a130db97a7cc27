package pipeline

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("bucket missing")
	err := Wrap(StepUpload, cause)
	if !errors.Is(err, cause) {
		t.Fatal("wrapped error should match its cause")
	}
	if got := StepOf(err); got != StepUpload {
		t.Fatalf("StepOf = %s, want upload", got)
	}
}

func TestWrapKeepsInnermostStep(t *testing.T) {
	inner := Wrap(StepConversion, errors.New("ffmpeg exit 1"))
	outer := Wrap(StepTranscription, fmt.Errorf("process audio: %w", inner))
	if got := StepOf(outer); got != StepConversion {
		t.Fatalf("StepOf = %s, want conversion", got)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(StepSynthesis, nil) != nil {
		t.Fatal("wrapping nil should stay nil")
	}
}

func TestStepOfUnknownError(t *testing.T) {
	if got := StepOf(errors.New("boom")); got != StepPipeline {
		t.Fatalf("StepOf = %s, want pipeline", got)
	}
}

func TestErrorfMessageIncludesStepAndCause(t *testing.T) {
	err := Errorf(StepGeneration, "model response missing content")
	want := "generation failed: model response missing content"
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
