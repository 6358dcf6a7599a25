package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/localscribe/localscribe/internal/pipeline"
	"github.com/localscribe/localscribe/internal/segment"
)

// whisperCppEngine wraps a whisper.cpp command-line build. The CLI is
// invoked as: whisper transcribe <model> <audio> --format json; it streams
// pretty-printed JSON segment objects to stdout.
type whisperCppEngine struct {
	cfg    Config
	runner CommandRunner

	loadOnce sync.Once
	loadErr  error
}

func init() {
	Register("whispercpp", newWhisperCpp)
}

func newWhisperCpp(cfg Config, runner CommandRunner) (Engine, error) {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "whisper"
	}
	return &whisperCppEngine{cfg: cfg, runner: runner}, nil
}

// ensureLoaded validates the binary and model weights once per instance.
// Validation is deferred to first use so constructing an engine stays
// cheap; the check result is held for the instance's lifetime.
func (e *whisperCppEngine) ensureLoaded() error {
	e.loadOnce.Do(func() {
		info, err := os.Stat(e.cfg.BinaryPath)
		if err != nil {
			// not an explicit path; PATH resolution happens in the runner,
			// so only explicit paths are checked here
			if filepath.IsAbs(e.cfg.BinaryPath) {
				e.loadErr = pipeline.NewModelLoadError(
					fmt.Sprintf("whisper binary not found at %s", e.cfg.BinaryPath), err).
					WithHint("build whisper.cpp and set engine.binary_path")
				return
			}
		} else if info.Mode()&0111 == 0 {
			e.loadErr = pipeline.NewModelLoadError(
				fmt.Sprintf("whisper binary %s is not executable (mode %s)", e.cfg.BinaryPath, info.Mode()), nil)
			return
		}

		if e.cfg.ModelDir != "" {
			modelFile := filepath.Join(e.cfg.ModelDir, modelFileName(e.cfg.Model))
			if _, err := os.Stat(modelFile); err != nil {
				e.loadErr = pipeline.NewModelLoadError(
					fmt.Sprintf("model weights not found: %s", modelFile), err).
					WithHint(fmt.Sprintf("download the %s model into %s", e.cfg.Model, e.cfg.ModelDir))
			}
		}
	})
	return e.loadErr
}

// modelFileName normalizes a model name to its GGML weight file.
func modelFileName(model string) string {
	model = strings.TrimSuffix(model, ".bin")
	if !strings.HasPrefix(model, "ggml-") {
		model = "ggml-" + model
	}
	return model + ".bin"
}

func (e *whisperCppEngine) TranscribeFile(ctx context.Context, chunkPath string, opts *Options) ([]segment.Segment, error) {
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}

	model := strings.TrimSuffix(modelFileName(e.cfg.Model), ".bin")
	args := []string{"transcribe", model, chunkPath, "--format", "json"}

	temperature := 0.0
	language := e.cfg.Language
	var timeout time.Duration
	if opts != nil {
		if opts.Temperature > 0 {
			temperature = opts.Temperature
		}
		if opts.Language != "" {
			language = opts.Language
		}
		timeout = opts.Timeout
	}
	args = append(args, "--temperature", fmt.Sprintf("%.1f", temperature))
	if language != "" {
		args = append(args, "--language", language)
	}
	if opts != nil && opts.Prompt != "" {
		args = append(args, "--prompt", opts.Prompt)
	}

	result, err := e.runner.Run(ctx, e.cfg.BinaryPath, args, timeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pipeline.NewTimeoutError("transcribe", timeout)
		}
		if looksLikeResourceExhaustion(result.Stderr) {
			return nil, pipeline.NewResourceLimitError(
				"whisper ran out of device memory", fmt.Errorf("%w: %s", err, result.Stderr))
		}
		return nil, pipeline.NewInferenceError(
			fmt.Sprintf("whisper CLI failed on %s", chunkPath),
			fmt.Errorf("%w (stderr: %s)", err, result.Stderr))
	}

	segs, err := parseSegmentStream(result.Stdout)
	if err != nil {
		return nil, pipeline.NewInferenceError(
			fmt.Sprintf("cannot parse whisper output for %s", chunkPath), err)
	}

	stitched := Stitch(segs)
	if err := segment.ValidateSequence(stitched); err != nil {
		return nil, pipeline.NewInferenceError("whisper output violates segment ordering", err)
	}
	return stitched, nil
}

// parseSegmentStream decodes a stream of JSON segment objects; the CLI
// pretty-prints one object per segment rather than strict JSONL.
func parseSegmentStream(output string) ([]segment.Segment, error) {
	type rawSegment struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	}

	var segs []segment.Segment
	decoder := json.NewDecoder(bytes.NewReader([]byte(output)))
	for {
		var raw rawSegment
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode segment %d: %w", len(segs), err)
		}
		seg, err := segment.New(len(segs), raw.Start, raw.End, strings.TrimSpace(raw.Text))
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func looksLikeResourceExhaustion(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "out of memory") ||
		strings.Contains(lower, "oom") ||
		strings.Contains(lower, "cuda error")
}

func (e *whisperCppEngine) Info() Info {
	return Info{
		ID:        "whispercpp",
		Model:     e.cfg.Model,
		Device:    e.cfg.Device,
		Precision: e.cfg.Precision,
	}
}

// HealthCheck invokes the binary's version subcommand.
func (e *whisperCppEngine) HealthCheck(ctx context.Context) error {
	result, err := e.runner.Run(ctx, e.cfg.BinaryPath, []string{"version"}, 10*time.Second)
	if err != nil {
		return fmt.Errorf("whisper version check failed: %w (output: %s)", err, result.Stderr)
	}
	if strings.TrimSpace(result.Stdout) == "" {
		return fmt.Errorf("unexpected empty version output")
	}
	return nil
}

func (e *whisperCppEngine) Close() error {
	return nil
}
