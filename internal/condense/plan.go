// Package condense removes non-speech audio and produces one or more
// bounded-duration, speech-only chunks for the transcription engine.
package condense

import (
	"github.com/localscribe/localscribe/internal/pipeline"
	"github.com/localscribe/localscribe/internal/vad"
)

// Range is a kept interval of the original audio, in seconds.
type Range struct {
	Start float64
	End   float64
}

func (r Range) duration() float64 {
	return r.End - r.Start
}

// ChunkPlan describes one output chunk before any audio is cut: the kept
// ranges, the chunk's start offset in the original recording, and the
// condensed duration.
type ChunkPlan struct {
	Ranges   []Range
	Offset   float64
	Duration float64
}

// PlanChunks decides chunk boundaries without touching audio. Spans whose
// separating gap is at or below max_join_gap_s merge into one kept range
// (short silences survive as natural pacing). Ranges are then packed into
// chunks of at most max_chunk_duration_s; when a chunk must close, the cut
// goes to the range boundary with the largest adjacent silence gap in the
// original audio, never mid-span.
func PlanChunks(spans []vad.Span, profile vad.Profile) ([]ChunkPlan, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if len(spans) == 0 {
		return nil, pipeline.NewValidationError("no speech spans to condense").
			WithHint("no speech detected - check the VAD silence threshold")
	}

	ranges := joinSpans(spans, profile)
	return packRanges(ranges, profile.MaxChunkDurationS), nil
}

// joinSpans merges neighbors separated by a tolerable gap, as long as the
// joined range still fits in one chunk.
func joinSpans(spans []vad.Span, profile vad.Profile) []Range {
	ranges := []Range{{Start: spans[0].Start, End: spans[0].End}}
	for _, s := range spans[1:] {
		last := &ranges[len(ranges)-1]
		gap := s.Start - last.End
		joined := s.End - last.Start
		if gap <= profile.MaxJoinGapS && joined <= profile.MaxChunkDurationS {
			last.End = s.End
		} else {
			ranges = append(ranges, Range{Start: s.Start, End: s.End})
		}
	}
	return ranges
}

func packRanges(ranges []Range, maxChunkDuration float64) []ChunkPlan {
	var plans []ChunkPlan
	window := []Range{}
	var windowDur float64

	flush := func(upto int) {
		// close the window at boundary index upto (exclusive)
		if upto <= 0 || len(window) == 0 {
			return
		}
		chunk := make([]Range, upto)
		copy(chunk, window[:upto])
		var dur float64
		for _, r := range chunk {
			dur += r.duration()
		}
		plans = append(plans, ChunkPlan{Ranges: chunk, Offset: chunk[0].Start, Duration: dur})
		window = append([]Range{}, window[upto:]...)
		windowDur = 0
		for _, r := range window {
			windowDur += r.duration()
		}
	}

	for _, r := range ranges {
		if len(window) > 0 && windowDur+r.duration() > maxChunkDuration {
			flush(bestCut(window, r))
			// a pathological window may still not fit; drain it fully
			for len(window) > 0 && windowDur+r.duration() > maxChunkDuration {
				flush(len(window))
			}
		}
		window = append(window, r)
		windowDur += r.duration()
	}
	flush(len(window))

	return plans
}

// bestCut picks the window boundary with the largest silence gap in the
// original audio. Closing the whole window is a candidate too; its gap is
// the one preceding the incoming range. Ties resolve to the latest
// boundary so chunks stay as full as possible.
func bestCut(window []Range, incoming Range) int {
	best := len(window)
	bestGap := -1.0
	for i := 1; i <= len(window); i++ {
		var nextStart float64
		if i < len(window) {
			nextStart = window[i].Start
		} else {
			nextStart = incoming.Start
		}
		gap := nextStart - window[i-1].End
		if gap >= bestGap {
			bestGap = gap
			best = i
		}
	}
	return best
}
