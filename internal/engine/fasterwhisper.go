package engine

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/localscribe/localscribe/internal/pipeline"
	"github.com/localscribe/localscribe/internal/segment"
)

//go:embed assets/faster_whisper.py
var fasterWhisperScript []byte

// fasterWhisperEngine drives the CTranslate2 faster-whisper runtime through
// an embedded python helper that emits one JSON document on stdout.
type fasterWhisperEngine struct {
	cfg    Config
	runner CommandRunner

	loadOnce   sync.Once
	loadErr    error
	scriptPath string
}

func init() {
	Register("fasterwhisper", newFasterWhisper)
}

func newFasterWhisper(cfg Config, runner CommandRunner) (Engine, error) {
	if cfg.PythonPath == "" {
		cfg.PythonPath = "python3"
	}
	if cfg.Precision == "" {
		cfg.Precision = "int8"
	}
	return &fasterWhisperEngine{cfg: cfg, runner: runner}, nil
}

// ensureLoaded materializes the helper script and verifies the
// faster-whisper package is importable. Runs once per instance.
func (e *fasterWhisperEngine) ensureLoaded(ctx context.Context) error {
	e.loadOnce.Do(func() {
		scriptPath := filepath.Join(os.TempDir(), "localscribe_faster_whisper.py")
		if err := os.WriteFile(scriptPath, fasterWhisperScript, 0o755); err != nil {
			e.loadErr = pipeline.NewModelLoadError("cannot write helper script", err)
			return
		}
		e.scriptPath = scriptPath

		result, err := e.runner.Run(ctx, e.cfg.PythonPath,
			[]string{"-c", "import faster_whisper"}, 30*time.Second)
		if err != nil {
			e.loadErr = pipeline.NewModelLoadError(
				"faster-whisper runtime unavailable",
				fmt.Errorf("%w (stderr: %s)", err, result.Stderr)).
				WithHint("pip install faster-whisper")
		}
	})
	return e.loadErr
}

type fasterWhisperOutput struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"segments"`
}

func (e *fasterWhisperEngine) TranscribeFile(ctx context.Context, chunkPath string, opts *Options) ([]segment.Segment, error) {
	if err := e.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	device := e.cfg.Device
	if device == "" {
		device = "auto"
	}
	args := []string{
		e.scriptPath,
		"--audio", chunkPath,
		"--model", e.cfg.Model,
		"--device", device,
		"--compute-type", e.cfg.Precision,
	}

	language := e.cfg.Language
	var timeout time.Duration
	if opts != nil {
		if opts.Language != "" {
			language = opts.Language
		}
		if opts.Prompt != "" {
			args = append(args, "--prompt", opts.Prompt)
		}
		timeout = opts.Timeout
	}
	if language != "" {
		args = append(args, "--language", language)
	}

	result, err := e.runner.Run(ctx, e.cfg.PythonPath, args, timeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pipeline.NewTimeoutError("transcribe", timeout)
		}
		if looksLikeResourceExhaustion(result.Stderr) {
			return nil, pipeline.NewResourceLimitError(
				"faster-whisper ran out of device memory",
				fmt.Errorf("%w: %s", err, result.Stderr))
		}
		if result.ExitCode == 3 {
			return nil, pipeline.NewModelLoadError(
				"faster-whisper runtime unavailable", err).
				WithHint("pip install faster-whisper")
		}
		return nil, pipeline.NewInferenceError(
			fmt.Sprintf("faster-whisper helper failed on %s", chunkPath),
			fmt.Errorf("%w (stderr: %s)", err, result.Stderr))
	}

	var parsed fasterWhisperOutput
	if err := json.Unmarshal([]byte(result.Stdout), &parsed); err != nil {
		return nil, pipeline.NewInferenceError(
			fmt.Sprintf("cannot parse helper output for %s", chunkPath), err)
	}

	segs := make([]segment.Segment, 0, len(parsed.Segments))
	for i, raw := range parsed.Segments {
		seg, err := segment.New(i, raw.Start, raw.End, strings.TrimSpace(raw.Text))
		if err != nil {
			return nil, pipeline.NewInferenceError("helper emitted invalid segment", err)
		}
		seg.Language = parsed.Language
		seg.Confidence = raw.Confidence
		segs = append(segs, seg)
	}

	// the CT2 runtime windows long inputs internally; stitch restores the
	// non-overlap contract before anything leaves this adapter
	stitched := Stitch(segs)
	if err := segment.ValidateSequence(stitched); err != nil {
		return nil, pipeline.NewInferenceError("helper output violates segment ordering", err)
	}
	return stitched, nil
}

func (e *fasterWhisperEngine) Info() Info {
	return Info{
		ID:        "fasterwhisper",
		Model:     e.cfg.Model,
		Device:    e.cfg.Device,
		Precision: e.cfg.Precision,
	}
}

// HealthCheck verifies the python interpreter runs and the package imports.
func (e *fasterWhisperEngine) HealthCheck(ctx context.Context) error {
	result, err := e.runner.Run(ctx, e.cfg.PythonPath,
		[]string{"-c", "import faster_whisper"}, 10*time.Second)
	if err != nil {
		return fmt.Errorf("faster-whisper import check failed: %w (stderr: %s)", err, result.Stderr)
	}
	return nil
}

func (e *fasterWhisperEngine) Close() error {
	if e.scriptPath != "" {
		return os.Remove(e.scriptPath)
	}
	return nil
}
