package refine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/localscribe/localscribe/internal/pipeline"
	"github.com/localscribe/localscribe/internal/segment"
)

const (
	llamaDefaultBinary = "llama-cli"
	llamaTimeout       = 10 * time.Minute

	// Segments are rewritten in batches to bound prompt size.
	llamaBatchSize = 16
)

var modePrompts = map[Mode]string{
	ModeGrammar: "Fix grammar, punctuation and capitalization in each numbered line. Remove filler words. Do not change the meaning or add content.",
	ModeSummary: "Condense each numbered line to its essential point in one short sentence.",
	ModeBullets: "Rewrite each numbered line as a terse bullet point starting with a dash.",
}

// llamaRefiner shells out to a llama.cpp CLI with an instruction prompt.
// Everything runs locally; the model file is whatever GGUF the caller
// configured.
type llamaRefiner struct {
	binary      string
	model       string
	instruction string
	runner      Runner

	loadOnce sync.Once
	loadErr  error
}

func newLlamaRefiner(cfg Config, mode Mode, runner Runner) (*llamaRefiner, error) {
	if cfg.Model == "" {
		return nil, pipeline.NewValidationError("llamacpp backend requires a model path").
			WithHint("set refine.model to a local GGUF file")
	}
	binary := cfg.BinaryPath
	if binary == "" {
		binary = llamaDefaultBinary
	}
	instruction := cfg.Instructions
	if instruction == "" {
		instruction = modePrompts[mode]
	}
	return &llamaRefiner{
		binary:      binary,
		model:       cfg.Model,
		instruction: instruction,
		runner:      runner,
	}, nil
}

func (l *llamaRefiner) Name() string { return "llamacpp" }

func (l *llamaRefiner) ensureLoaded() error {
	l.loadOnce.Do(func() {
		info, err := os.Stat(l.model)
		if err != nil || info.IsDir() {
			l.loadErr = pipeline.NewModelLoadError(
				fmt.Sprintf("refinement model not found at %s", l.model), err).
				WithHint("download a GGUF model and point refine.model at it")
			return
		}
		if !strings.EqualFold(filepath.Ext(l.model), ".gguf") {
			l.loadErr = pipeline.NewModelLoadError(
				fmt.Sprintf("refinement model %s is not a GGUF file", l.model), nil)
		}
	})
	return l.loadErr
}

func (l *llamaRefiner) RefineSegments(ctx context.Context, segs []segment.Segment, instructions string) ([]segment.Segment, error) {
	if err := l.ensureLoaded(); err != nil {
		return nil, err
	}
	instruction := l.instruction
	if instructions != "" {
		instruction = instructions
	}

	out := make([]segment.Segment, 0, len(segs))
	for start := 0; start < len(segs); start += llamaBatchSize {
		end := start + llamaBatchSize
		if end > len(segs) {
			end = len(segs)
		}
		batch := segs[start:end]
		texts, err := l.rewriteBatch(ctx, batch, instruction)
		if err != nil {
			return nil, err
		}
		for i, s := range batch {
			s.RefinedText = texts[i]
			out = append(out, s)
		}
	}
	return out, nil
}

func (l *llamaRefiner) rewriteBatch(ctx context.Context, batch []segment.Segment, instruction string) ([]string, error) {
	var prompt strings.Builder
	prompt.WriteString(instruction)
	prompt.WriteString("\nAnswer with the same numbered lines, nothing else.\n\n")
	for i, s := range batch {
		fmt.Fprintf(&prompt, "%d. %s\n", i+1, s.RawText)
	}

	args := []string{
		"-m", l.model,
		"--temp", "0.0",
		"--no-display-prompt",
		"-p", prompt.String(),
	}
	res, err := l.runner.Run(ctx, l.binary, args, llamaTimeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pipeline.NewTimeoutError("refine", llamaTimeout)
		}
		return nil, pipeline.NewInferenceError(
			fmt.Sprintf("refinement command failed: %s", strings.TrimSpace(res.Stderr)), err)
	}

	texts, err := parseNumberedLines(res.Stdout, len(batch))
	if err != nil {
		return nil, err
	}
	return texts, nil
}

// parseNumberedLines extracts "N. text" lines from model output. A batch
// where any line is missing is an error; refinement never silently falls
// back to raw text.
func parseNumberedLines(output string, want int) ([]string, error) {
	texts := make([]string, want)
	seen := 0
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		dot := strings.Index(line, ".")
		if dot <= 0 {
			continue
		}
		n, err := strconv.Atoi(line[:dot])
		if err != nil || n < 1 || n > want {
			continue
		}
		if texts[n-1] == "" {
			seen++
		}
		texts[n-1] = strings.TrimSpace(line[dot+1:])
	}
	if seen != want {
		return nil, pipeline.NewInferenceError(
			fmt.Sprintf("refinement output has %d of %d expected lines", seen, want), nil)
	}
	return texts, nil
}
