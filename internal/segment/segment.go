// Package segment defines the transcript data model flowing between the
// transcription engine, the refinement pass and the caller.
package segment

import (
	"fmt"

	"github.com/localscribe/localscribe/internal/pipeline"
)

// Segment is one time-bounded unit of transcript text. Raw text is written
// by the transcription engine; the refinement pass fills RefinedText in
// place and touches nothing else.
type Segment struct {
	ID          int     `json:"id"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	RawText     string  `json:"raw_text"`
	RefinedText string  `json:"refined_text,omitempty"`
	Language    string  `json:"language,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// New constructs a Segment, failing fast on an invalid time range.
func New(id int, start, end float64, rawText string) (Segment, error) {
	if start < 0 || end <= start {
		return Segment{}, pipeline.NewValidationError(
			fmt.Sprintf("segment %d has invalid range [%.3f, %.3f]", id, start, end))
	}
	return Segment{ID: id, Start: start, End: end, RawText: rawText}, nil
}

// Offset returns a copy of s shifted forward by sec seconds.
func (s Segment) Offset(sec float64) Segment {
	s.Start += sec
	s.End += sec
	return s
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// ValidateSequence checks the contract every transcribe call must honor:
// segments sorted by start time with no overlap between adjacent pairs.
func ValidateSequence(segs []Segment) error {
	for i, s := range segs {
		if s.Start < 0 || s.End <= s.Start {
			return pipeline.NewValidationError(
				fmt.Sprintf("segment %d has invalid range [%.3f, %.3f]", s.ID, s.Start, s.End))
		}
		if i > 0 && segs[i-1].End > s.Start {
			return pipeline.NewValidationError(fmt.Sprintf(
				"segments %d and %d overlap: %.3f > %.3f",
				segs[i-1].ID, s.ID, segs[i-1].End, s.Start))
		}
	}
	return nil
}

// OffsetAll shifts every segment forward by sec and renumbers IDs starting
// at firstID. Used when merging per-chunk results back onto the recording
// timeline.
func OffsetAll(segs []Segment, sec float64, firstID int) []Segment {
	out := make([]Segment, len(segs))
	for i, s := range segs {
		shifted := s.Offset(sec)
		shifted.ID = firstID + i
		out[i] = shifted
	}
	return out
}
