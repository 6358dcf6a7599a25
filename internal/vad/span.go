// Package vad detects speech activity in canonical audio and emits
// non-overlapping, time-ordered speech spans.
package vad

import (
	"encoding/json"
	"fmt"

	"github.com/localscribe/localscribe/internal/pipeline"
)

// Span is one detected speech interval in seconds from audio start.
// Gaps between consecutive spans are detected silence.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the span length in seconds.
func (s Span) Duration() float64 {
	return s.End - s.Start
}

// ValidateSpans checks the VAD output contract: every span inside
// [0, audioDuration], positive length, sorted, non-overlapping.
func ValidateSpans(spans []Span, audioDuration float64) error {
	for i, s := range spans {
		if s.Start < 0 || s.End <= s.Start || s.End > audioDuration+1e-6 {
			return pipeline.NewValidationError(
				fmt.Sprintf("span %d out of range: [%.3f, %.3f] within %.3fs audio", i, s.Start, s.End, audioDuration))
		}
		if i > 0 && spans[i-1].End > s.Start {
			return pipeline.NewValidationError(
				fmt.Sprintf("spans %d and %d overlap: %.3f > %.3f", i-1, i, spans[i-1].End, s.Start))
		}
	}
	return nil
}

// EncodeSpans renders spans as the JSON interchange array consumed by
// external tooling: [{"start": s, "end": e}, ...].
func EncodeSpans(spans []Span) ([]byte, error) {
	if spans == nil {
		spans = []Span{}
	}
	return json.MarshalIndent(spans, "", "  ")
}

// TotalSpeech returns the summed duration of all spans.
func TotalSpeech(spans []Span) float64 {
	var total float64
	for _, s := range spans {
		total += s.Duration()
	}
	return total
}
