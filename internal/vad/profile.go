package vad

import (
	"fmt"
	"strings"

	"github.com/localscribe/localscribe/internal/pipeline"
)

// Profile tunes voice-activity detection and condensation. Profiles are
// named and versioned; a workflow invocation resolves one profile and uses
// it for both the detector and the condenser.
type Profile struct {
	// Name identifies the profile (e.g., "default", "lecture").
	Name string `yaml:"name" json:"name"`

	// Version tracks tuning revisions of a named profile.
	Version int `yaml:"version" json:"version"`

	// FrameMs is the analysis frame size in milliseconds.
	FrameMs int `yaml:"frame_ms" json:"frame_ms"`

	// SilenceThreshDB is the energy threshold in dBFS below which a frame
	// is classified as silence.
	SilenceThreshDB float64 `yaml:"silence_thresh_db" json:"silence_thresh_db"`

	// MinSilenceMs is the minimum silence run that separates two spans;
	// shorter dips stay inside a single span.
	MinSilenceMs int `yaml:"min_silence_ms" json:"min_silence_ms"`

	// MinSpeechMs drops speech runs shorter than this (clicks, breaths).
	MinSpeechMs int `yaml:"min_speech_ms" json:"min_speech_ms"`

	// SpeechPadMs pads each span's edges so word onsets are not clipped.
	// Padding never makes adjacent spans overlap; colliding edges clamp
	// at the midpoint of the gap.
	SpeechPadMs int `yaml:"speech_pad_ms" json:"speech_pad_ms"`

	// MaxSpeechDurationS splits speech runs longer than this at the
	// lowest-energy frame of the run.
	MaxSpeechDurationS float64 `yaml:"max_speech_duration_s" json:"max_speech_duration_s"`

	// MaxChunkDurationS bounds each condensed chunk so it fits the
	// engine's context window.
	MaxChunkDurationS float64 `yaml:"max_chunk_duration_s" json:"max_chunk_duration_s"`

	// MaxJoinGapS: silence gaps at or below this survive condensation
	// inside a chunk (natural pacing); longer gaps are removed.
	MaxJoinGapS float64 `yaml:"max_join_gap_s" json:"max_join_gap_s"`
}

// builtins are the named profiles shipped with the pipeline.
var builtins = map[string]Profile{
	"default": {
		Name:               "default",
		Version:            2,
		FrameMs:            30,
		SilenceThreshDB:    -40,
		MinSilenceMs:       500,
		MinSpeechMs:        250,
		SpeechPadMs:        150,
		MaxSpeechDurationS: 30,
		MaxChunkDurationS:  40,
		MaxJoinGapS:        0.5,
	},
	// lecture favors long uninterrupted speech: wider chunks, more padding.
	"lecture": {
		Name:               "lecture",
		Version:            1,
		FrameMs:            30,
		SilenceThreshDB:    -45,
		MinSilenceMs:       800,
		MinSpeechMs:        400,
		SpeechPadMs:        250,
		MaxSpeechDurationS: 35,
		MaxChunkDurationS:  40,
		MaxJoinGapS:        1.0,
	},
}

// DefaultProfile returns the built-in default profile.
func DefaultProfile() Profile {
	return builtins["default"]
}

// ResolveProfile returns the named built-in profile. An empty name resolves
// to "default"; unknown names are a validation error listing what exists.
func ResolveProfile(name string) (Profile, error) {
	if name == "" {
		name = "default"
	}
	p, ok := builtins[name]
	if !ok {
		return Profile{}, pipeline.NewValidationError(
			fmt.Sprintf("unknown segmentation profile %q", name)).
			WithHint("available profiles: " + strings.Join(ProfileNames(), ", "))
	}
	return p, nil
}

// ProfileNames lists the built-in profile names in stable order.
func ProfileNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	// map order is random; keep the listing stable
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if names[j] < names[i] {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	return names
}

// Validate checks profile parameters and aggregates every problem found.
func (p Profile) Validate() error {
	var problems []string

	if p.FrameMs <= 0 || p.FrameMs > 1000 {
		problems = append(problems, fmt.Sprintf("frame_ms must be in (0, 1000], got %d", p.FrameMs))
	}
	if p.SilenceThreshDB >= 0 {
		problems = append(problems, fmt.Sprintf("silence_thresh_db must be negative dBFS, got %.1f", p.SilenceThreshDB))
	}
	if p.MinSilenceMs < 0 {
		problems = append(problems, fmt.Sprintf("min_silence_ms must be >= 0, got %d", p.MinSilenceMs))
	}
	if p.MinSpeechMs < 0 {
		problems = append(problems, fmt.Sprintf("min_speech_ms must be >= 0, got %d", p.MinSpeechMs))
	}
	if p.SpeechPadMs < 0 {
		problems = append(problems, fmt.Sprintf("speech_pad_ms must be >= 0, got %d", p.SpeechPadMs))
	}
	if p.MaxSpeechDurationS <= 0 {
		problems = append(problems, fmt.Sprintf("max_speech_duration_s must be > 0, got %.1f", p.MaxSpeechDurationS))
	}
	if p.MaxChunkDurationS <= 0 {
		problems = append(problems, fmt.Sprintf("max_chunk_duration_s must be > 0, got %.1f", p.MaxChunkDurationS))
	}
	if p.MaxSpeechDurationS > p.MaxChunkDurationS {
		problems = append(problems, fmt.Sprintf(
			"max_speech_duration_s (%.1f) must not exceed max_chunk_duration_s (%.1f)",
			p.MaxSpeechDurationS, p.MaxChunkDurationS))
	}
	if p.MaxJoinGapS < 0 {
		problems = append(problems, fmt.Sprintf("max_join_gap_s must be >= 0, got %.1f", p.MaxJoinGapS))
	}

	if len(problems) > 0 {
		return pipeline.NewValidationError(
			fmt.Sprintf("segmentation profile %q invalid: %s", p.Name, strings.Join(problems, "; ")))
	}
	return nil
}
