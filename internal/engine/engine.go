// Package engine provides the batch transcription capability behind a
// single interface with multiple subprocess-backed implementations
// (whisper.cpp CLI, CTranslate2 faster-whisper helper). Callers depend only
// on the interface; concrete adapters are chosen through the registry.
package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/text/language"

	"github.com/localscribe/localscribe/internal/media"
	"github.com/localscribe/localscribe/internal/pipeline"
	"github.com/localscribe/localscribe/internal/segment"
)

// CommandRunner is the subset of media.Runner the adapters need; tests
// substitute fakes.
type CommandRunner interface {
	Run(ctx context.Context, tool string, args []string, timeout time.Duration) (media.RunResult, error)
}

// Options are per-call transcription parameters. Model, device and
// precision are fixed at engine construction, not here.
type Options struct {
	// Language forces a transcription language (ISO 639-1); empty means
	// auto-detect.
	Language string

	// Prompt provides context for domain terminology.
	Prompt string

	// Temperature for decoding; 0 reduces hallucinated repetitions.
	Temperature float64

	// Timeout is the wall-clock budget for this call.
	Timeout time.Duration
}

// Info describes a constructed engine.
type Info struct {
	ID        string `json:"id"`
	Model     string `json:"model"`
	Device    string `json:"device"`
	Precision string `json:"precision"`
}

// Engine is the batch transcription capability. TranscribeFile returns a
// complete, time-ordered, non-overlapping segment sequence for one
// condensed chunk; timestamps are relative to the chunk start. Engines do
// not re-apply voice-activity detection or silence removal, and any
// internal windowing must be stitched into the non-overlap contract before
// returning.
//
// The underlying model loads lazily on first use and lives for the engine
// instance's lifetime; construct once, reuse across files.
type Engine interface {
	TranscribeFile(ctx context.Context, chunkPath string, opts *Options) ([]segment.Segment, error)
	Info() Info
	HealthCheck(ctx context.Context) error
	Close() error
}

// Config fixes an engine's identity at construction time.
type Config struct {
	// ID selects the adapter ("whispercpp", "fasterwhisper").
	ID string `yaml:"id"`

	// Model is the model name (e.g., "base", "small", "large-v3").
	Model string `yaml:"model"`

	// ModelDir holds model weight files for binary-backed adapters.
	ModelDir string `yaml:"model_dir"`

	// BinaryPath overrides the whisper binary location.
	BinaryPath string `yaml:"binary_path"`

	// PythonPath overrides the python interpreter for helper-based adapters.
	PythonPath string `yaml:"python_path"`

	// Device is "cpu", "cuda" or "auto".
	Device string `yaml:"device"`

	// Precision is the compute type (e.g., "int8", "float16").
	Precision string `yaml:"precision"`

	// Language is the default transcription language; empty auto-detects.
	Language string `yaml:"language"`
}

// Validate checks construction-time parameters. The language tag, when
// set, must parse as a BCP 47 tag.
func (c Config) Validate() error {
	if c.Model == "" {
		return pipeline.NewValidationError("engine model must not be empty")
	}
	if c.Language != "" {
		if _, err := language.Parse(c.Language); err != nil {
			return pipeline.NewValidationError(
				fmt.Sprintf("invalid language tag %q: %v", c.Language, err)).
				WithHint("use an ISO 639-1 code such as \"en\" or \"de\"")
		}
	}
	switch c.Device {
	case "", "auto", "cpu", "cuda":
	default:
		return pipeline.NewValidationError(
			fmt.Sprintf("unknown device %q (want auto, cpu or cuda)", c.Device))
	}
	return nil
}
