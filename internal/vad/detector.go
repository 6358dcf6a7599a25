package vad

import (
	"fmt"
	"math"

	"github.com/localscribe/localscribe/internal/media"
	"github.com/localscribe/localscribe/internal/pipeline"
)

// Detector classifies fixed-size frames of canonical audio as speech or
// silence by their RMS energy in dBFS, then merges, filters, splits and
// pads the resulting runs into spans. Output is deterministic for a given
// input and profile.
type Detector struct {
	profile Profile
}

// NewDetector validates the profile and returns a Detector.
func NewDetector(profile Profile) (*Detector, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &Detector{profile: profile}, nil
}

// Detect scans audio and returns non-overlapping, time-ordered speech
// spans. A recording with no speech yields an empty list, not an error;
// whether that is fatal is the caller's decision.
func (d *Detector) Detect(audio media.CanonicalAudio) ([]Span, error) {
	wav, err := media.ReadWAV(audio.Path)
	if err != nil {
		return nil, pipeline.NewValidationError(
			fmt.Sprintf("cannot read canonical audio %s: %v", audio.Path, err))
	}
	if wav.SampleRate != media.CanonicalSampleRate || wav.Channels != media.CanonicalChannels {
		return nil, pipeline.NewValidationError(fmt.Sprintf(
			"audio %s is %d Hz / %d ch, expected %d Hz mono",
			audio.Path, wav.SampleRate, wav.Channels,
			media.CanonicalSampleRate))
	}

	energies := frameEnergies(wav.Samples, d.frameLen(wav.SampleRate))
	if len(energies) == 0 {
		return []Span{}, nil
	}

	runs := d.speechRuns(energies)
	runs = d.dropShortRuns(runs)
	runs = d.splitLongRuns(runs, energies)

	spans := d.padAndClamp(runs, wav.Duration())

	if err := ValidateSpans(spans, wav.Duration()); err != nil {
		return nil, err
	}
	return spans, nil
}

// Profile returns the detector's resolved profile.
func (d *Detector) Profile() Profile {
	return d.profile
}

func (d *Detector) frameLen(sampleRate int) int {
	return sampleRate * d.profile.FrameMs / 1000
}

func (d *Detector) frameSec() float64 {
	return float64(d.profile.FrameMs) / 1000
}

// frameEnergies computes per-frame RMS energy in dBFS. The trailing partial
// frame is ignored.
func frameEnergies(samples []int16, frameLen int) []float64 {
	if frameLen <= 0 {
		return nil
	}
	n := len(samples) / frameLen
	energies := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for _, s := range samples[i*frameLen : (i+1)*frameLen] {
			v := float64(s) / 32768.0
			sum += v * v
		}
		rms := math.Sqrt(sum / float64(frameLen))
		if rms <= 0 {
			energies[i] = -96 // digital silence floor
		} else {
			energies[i] = 20 * math.Log10(rms)
		}
	}
	return energies
}

// frameRun is a half-open frame interval [start, end) classified as speech.
type frameRun struct {
	start, end int
}

// speechRuns merges speech frames into runs, keeping a run open across
// silence dips shorter than min_silence_ms.
func (d *Detector) speechRuns(energies []float64) []frameRun {
	minSilenceFrames := d.profile.MinSilenceMs / d.profile.FrameMs
	if minSilenceFrames < 1 {
		minSilenceFrames = 1
	}

	var runs []frameRun
	inSpeech := false
	runStart := 0
	silenceCount := 0

	for i, e := range energies {
		speech := e > d.profile.SilenceThreshDB
		switch {
		case speech && !inSpeech:
			inSpeech = true
			runStart = i
			silenceCount = 0
		case speech && inSpeech:
			silenceCount = 0
		case !speech && inSpeech:
			silenceCount++
			if silenceCount >= minSilenceFrames {
				runs = append(runs, frameRun{start: runStart, end: i - silenceCount + 1})
				inSpeech = false
			}
		}
	}
	if inSpeech {
		runs = append(runs, frameRun{start: runStart, end: len(energies) - silenceCount})
	}
	return runs
}

func (d *Detector) dropShortRuns(runs []frameRun) []frameRun {
	minFrames := d.profile.MinSpeechMs / d.profile.FrameMs
	var kept []frameRun
	for _, r := range runs {
		if r.end-r.start >= minFrames {
			kept = append(kept, r)
		}
	}
	return kept
}

// splitLongRuns cuts runs exceeding max_speech_duration_s at the
// lowest-energy frame in the run's interior, repeatedly until every piece
// fits. Cutting at the energy minimum avoids splitting mid-word.
func (d *Detector) splitLongRuns(runs []frameRun, energies []float64) []frameRun {
	maxFrames := int(d.profile.MaxSpeechDurationS / d.frameSec())
	if maxFrames < 2 {
		maxFrames = 2
	}

	var out []frameRun
	stack := append([]frameRun{}, runs...)
	for len(stack) > 0 {
		r := stack[0]
		stack = stack[1:]
		if r.end-r.start <= maxFrames {
			out = append(out, r)
			continue
		}

		// find the quietest interior frame inside the allowed window
		cut := r.start + 1
		lowest := math.Inf(1)
		limit := r.start + maxFrames
		for i := r.start + 1; i < limit && i < r.end; i++ {
			if energies[i] < lowest {
				lowest = energies[i]
				cut = i
			}
		}

		out = append(out, frameRun{start: r.start, end: cut})
		stack = append([]frameRun{{start: cut, end: r.end}}, stack...)
	}
	return out
}

// padAndClamp converts frame runs to second-based spans with symmetric
// padding. Padding never causes previously disjoint spans to overlap: when
// two padded edges would collide they clamp at the midpoint of the gap.
func (d *Detector) padAndClamp(runs []frameRun, audioDuration float64) []Span {
	pad := float64(d.profile.SpeechPadMs) / 1000
	frameSec := d.frameSec()

	spans := make([]Span, 0, len(runs))
	for _, r := range runs {
		spans = append(spans, Span{
			Start: float64(r.start)*frameSec - pad,
			End:   float64(r.end)*frameSec + pad,
		})
	}

	for i := range spans {
		if spans[i].Start < 0 {
			spans[i].Start = 0
		}
		if spans[i].End > audioDuration {
			spans[i].End = audioDuration
		}
		if i > 0 && spans[i-1].End > spans[i].Start {
			mid := (spans[i-1].End + spans[i].Start) / 2
			spans[i-1].End = mid
			spans[i].Start = mid
		}
	}
	return spans
}
