// Package refine implements the second pass over transcript segments:
// rewriting raw text into refined text while leaving count, order and
// timestamps untouched. Alignment with timestamps is a hard invariant
// relied on by downstream consumers such as subtitle generation.
package refine

import (
	"context"
	"fmt"
	"time"

	"github.com/localscribe/localscribe/internal/media"
	"github.com/localscribe/localscribe/internal/pipeline"
	"github.com/localscribe/localscribe/internal/segment"
)

// Mode names a refinement behavior.
type Mode string

const (
	// ModeGrammar fixes grammar, punctuation and capitalization and drops
	// filler disfluencies without altering content. This is the default.
	ModeGrammar Mode = "grammar"

	// ModeSummary condenses each segment to its essence.
	ModeSummary Mode = "summary"

	// ModeBullets rewrites each segment as a terse bullet point.
	ModeBullets Mode = "bullets"
)

// Refiner rewrites segment text. Implementations must return exactly as
// many segments as they received, in order, with identical timestamps and
// raw text; only RefinedText may differ. A refiner that cannot produce a
// result fails loudly instead of echoing raw text as refined.
type Refiner interface {
	RefineSegments(ctx context.Context, segs []segment.Segment, instructions string) ([]segment.Segment, error)
	Name() string
}

// Config selects and parameterizes a refiner.
type Config struct {
	// Backend is "rules" (deterministic, no model) or "llamacpp".
	Backend string `yaml:"backend"`

	// Mode picks the rewrite behavior; empty means grammar.
	Mode Mode `yaml:"mode"`

	// Instructions optionally override the mode's built-in prompt.
	Instructions string `yaml:"instructions"`

	// Model and BinaryPath configure model-backed backends.
	Model      string `yaml:"model"`
	BinaryPath string `yaml:"binary_path"`
}

// Runner matches the command runner interface used across the pipeline.
type Runner interface {
	Run(ctx context.Context, tool string, args []string, timeout time.Duration) (media.RunResult, error)
}

// New constructs the configured refiner.
func New(cfg Config, runner Runner) (Refiner, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeGrammar
	}
	switch mode {
	case ModeGrammar, ModeSummary, ModeBullets:
	default:
		return nil, pipeline.NewValidationError(
			fmt.Sprintf("unknown refinement mode %q", mode)).
			WithHint("use grammar, summary or bullets")
	}

	switch cfg.Backend {
	case "", "rules":
		if mode != ModeGrammar {
			return nil, pipeline.NewValidationError(
				fmt.Sprintf("rules backend only supports grammar mode, got %q", mode)).
				WithHint("use backend: llamacpp for summary/bullet modes")
		}
		return &rulesRefiner{}, nil
	case "llamacpp":
		return newLlamaRefiner(cfg, mode, runner)
	default:
		return nil, pipeline.NewValidationError(
			fmt.Sprintf("unknown refinement backend %q", cfg.Backend)).
			WithHint("use rules or llamacpp")
	}
}

// CheckAlignment enforces the refinement contract between in and out.
func CheckAlignment(in, out []segment.Segment) error {
	if len(in) != len(out) {
		return pipeline.NewInferenceError(
			fmt.Sprintf("refinement changed segment count: %d in, %d out", len(in), len(out)), nil)
	}
	for i := range in {
		if in[i].Start != out[i].Start || in[i].End != out[i].End {
			return pipeline.NewInferenceError(
				fmt.Sprintf("refinement changed timestamps of segment %d", in[i].ID), nil)
		}
		if in[i].RawText != out[i].RawText {
			return pipeline.NewInferenceError(
				fmt.Sprintf("refinement altered raw text of segment %d", in[i].ID), nil)
		}
	}
	return nil
}
