// Package pipeline defines the error taxonomy shared by every stage of
// the voice pipeline. Each external collaborator wraps its failures in
// a StepError at the component boundary; nothing is retried locally and
// orchestration surfaces the first failure unchanged.
package pipeline

import (
	"errors"
	"fmt"
)

// Step names the pipeline stage where a failure occurred.
type Step string

const (
	StepUpload        Step = "upload"
	StepConversion    Step = "conversion"
	StepTranscription Step = "transcription"
	StepGeneration    Step = "generation"
	StepSynthesis     Step = "synthesis"
	StepPipeline      Step = "pipeline"
)

// ErrPollTimeout indicates a transcription job did not reach a terminal
// state within the configured maximum wait.
var ErrPollTimeout = errors.New("transcription job did not finish within the maximum wait")

// StepError ties an underlying cause to the stage that produced it.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Errorf wraps a formatted cause in a StepError for the given step.
func Errorf(step Step, format string, args ...any) error {
	return &StepError{Step: step, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a step to err. A nil err returns nil; an err already
// carrying a step is returned unchanged so the innermost stage wins.
func Wrap(step Step, err error) error {
	if err == nil {
		return nil
	}
	var existing *StepError
	if errors.As(err, &existing) {
		return err
	}
	return &StepError{Step: step, Err: err}
}

// StepOf reports which stage err came from, defaulting to StepPipeline
// for anything unanticipated.
func StepOf(err error) Step {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return StepPipeline
}
