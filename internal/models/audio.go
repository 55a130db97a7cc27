package models

import "io"

// AudioInput wraps an uploaded audio payload for the duration of one request.
type AudioInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Bytes       int64
}

// Timings maps a pipeline step name to elapsed seconds. Returned to the
// caller for observability only, never persisted.
type Timings map[string]float64

// Total sums every recorded step duration.
func (t Timings) Total() float64 {
	var total float64
	for _, v := range t {
		total += v
	}
	return total
}

// PipelineResult carries the outputs of a full pipeline run.
type PipelineResult struct {
	InputAudio    string
	Transcription string
	ResponseText  string
	ResponseAudio string
	Timings       Timings
	TotalSeconds  float64
}
