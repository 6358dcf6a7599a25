// Package workflow composes the pipeline stages into a single batch run:
// decode to canonical audio, detect speech, condense to bounded chunks,
// transcribe each chunk, and refine the merged transcript. The workflow
// owns run-scoped scratch space and keeps it when a run fails so the user
// can inspect intermediates.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/localscribe/localscribe/internal/condense"
	"github.com/localscribe/localscribe/internal/config"
	"github.com/localscribe/localscribe/internal/engine"
	"github.com/localscribe/localscribe/internal/media"
	"github.com/localscribe/localscribe/internal/pipeline"
	"github.com/localscribe/localscribe/internal/refine"
	"github.com/localscribe/localscribe/internal/segment"
	"github.com/localscribe/localscribe/internal/vad"
	"github.com/localscribe/localscribe/pkg/logger"
	"github.com/localscribe/localscribe/pkg/metrics"
)

// Decoder converts arbitrary input audio into canonical PCM.
type Decoder interface {
	Decode(ctx context.Context, inputPath, outDir string) (media.CanonicalAudio, error)
}

// Condenser cuts speech spans into bounded chunk files.
type Condenser interface {
	Condense(ctx context.Context, audio media.CanonicalAudio, spans []vad.Span, outDir string) (condense.CondensedAudio, error)
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID    string            `json:"run_id"`
	Input    string            `json:"input"`
	Engine   engine.Info       `json:"engine"`
	Segments []segment.Segment `json:"segments"`
	Spans    []vad.Span        `json:"spans"`
	Stats    Stats             `json:"stats"`

	// WorkDir is set when intermediates were kept.
	WorkDir string `json:"work_dir,omitempty"`
}

// Stats summarizes what the run did.
type Stats struct {
	AudioDuration     float64 `json:"audio_duration_s"`
	SpeechDuration    float64 `json:"speech_duration_s"`
	CondensedDuration float64 `json:"condensed_duration_s"`
	ChunkCount        int     `json:"chunk_count"`
	SegmentCount      int     `json:"segment_count"`
	ElapsedMs         int64   `json:"elapsed_ms"`
}

// Pipeline wires the stages together. A Pipeline is safe for concurrent
// Run calls; access to the engine is serialized so only one inference
// runs at a time against the loaded model.
type Pipeline struct {
	cfg      *config.Config
	decoder  Decoder
	detector *vad.Detector
	cond     Condenser
	eng      engine.Engine
	refiner  refine.Refiner
	log      *slog.Logger
	engSem   *semaphore.Weighted
}

// New builds a production pipeline from configuration. The configuration
// must already be validated.
func New(cfg *config.Config, log *slog.Logger) (*Pipeline, error) {
	binaries := map[string]string{}
	if cfg.Media.FFmpegPath != "" {
		binaries["ffmpeg"] = cfg.Media.FFmpegPath
	}
	if cfg.Media.FFprobePath != "" {
		binaries["ffprobe"] = cfg.Media.FFprobePath
	}
	runner := media.NewRunner(binaries)

	profile, err := vad.ResolveProfile(cfg.VAD.Profile)
	if err != nil {
		return nil, err
	}
	detector, err := vad.NewDetector(profile)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(cfg.Engine, runner)
	if err != nil {
		return nil, err
	}

	var refiner refine.Refiner
	if !cfg.Run.SkipRefine {
		refiner, err = refine.New(cfg.Refine, runner)
		if err != nil {
			return nil, err
		}
	}

	return &Pipeline{
		cfg:      cfg,
		decoder:  ffmpegDecoder{runner: runner, timeout: cfg.DecodeTimeout()},
		detector: detector,
		cond:     ffmpegCondenser{runner: runner, profile: profile, timeout: cfg.DecodeTimeout()},
		eng:      eng,
		refiner:  refiner,
		log:      log,
		engSem:   semaphore.NewWeighted(1),
	}, nil
}

// Close releases engine resources.
func (p *Pipeline) Close() error {
	if p.eng != nil {
		return p.eng.Close()
	}
	return nil
}

// Run executes the full pipeline for one input file. Nothing leaves the
// machine: every stage works on local files and local subprocesses.
func (p *Pipeline) Run(ctx context.Context, inputPath string) (*Result, error) {
	started := time.Now()
	runID := uuid.NewString()
	log := p.log.With("run_id", runID, "input", inputPath)

	parent := p.cfg.Run.WorkDir
	if parent == "" {
		parent = os.TempDir()
	}
	workDir := filepath.Join(parent, "localscribe_"+runID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, pipeline.New(pipeline.VALIDATION_FAILED,
			fmt.Sprintf("cannot create work directory %s", workDir), err)
	}

	result, err := p.run(ctx, log, inputPath, workDir)
	elapsed := time.Since(started)

	// Intermediates are always kept on failure; a run that cannot be
	// debugged is worse than a stray temp directory.
	keep := err != nil || p.cfg.Run.KeepIntermediates
	if keep {
		log.Info("keeping intermediates", "work_dir", workDir)
	} else {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			log.Warn("failed to remove work directory", "work_dir", workDir, "error", rmErr)
		}
	}

	if err != nil {
		log.Error("run failed", "error", err, "elapsed_ms", elapsed.Milliseconds())
		return nil, err
	}

	result.RunID = runID
	result.Input = inputPath
	result.Stats.ElapsedMs = elapsed.Milliseconds()
	if keep {
		result.WorkDir = workDir
	}
	log.Info("run complete",
		"segments", result.Stats.SegmentCount,
		"chunks", result.Stats.ChunkCount,
		"elapsed_ms", elapsed.Milliseconds())
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, inputPath, workDir string) (*Result, error) {
	var audio media.CanonicalAudio
	err := p.stage(log, "decode", func() error {
		var err error
		audio, err = p.decoder.Decode(ctx, inputPath, workDir)
		return err
	})
	if err != nil {
		return nil, err
	}

	var spans []vad.Span
	err = p.stage(log, "vad", func() error {
		var err error
		spans, err = p.detector.Detect(audio)
		return err
	})
	if err != nil {
		return nil, err
	}
	p.exportSpans(log, spans, workDir)

	var condensed condense.CondensedAudio
	err = p.stage(log, "condense", func() error {
		var err error
		condensed, err = p.cond.Condense(ctx, audio, spans, workDir)
		return err
	})
	if err != nil {
		return nil, err
	}

	var segs []segment.Segment
	err = p.stage(log, "transcribe", func() error {
		var err error
		segs, err = p.transcribeChunks(ctx, condensed.Chunks)
		return err
	})
	if err != nil {
		return nil, err
	}

	if p.refiner != nil {
		err = p.stage(log, "refine", func() error {
			var err error
			segs, err = p.refineSegments(ctx, segs)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	return &Result{
		Engine:   p.eng.Info(),
		Segments: segs,
		Spans:    spans,
		Stats: Stats{
			AudioDuration:     audio.Duration,
			SpeechDuration:    vad.TotalSpeech(spans),
			CondensedDuration: condensed.TotalDuration(),
			ChunkCount:        len(condensed.Chunks),
			SegmentCount:      len(segs),
		},
	}, nil
}

// transcribeChunks runs the engine over each chunk in order, shifts the
// chunk-relative timestamps back onto the original recording's timeline,
// and validates the merged sequence.
func (p *Pipeline) transcribeChunks(ctx context.Context, chunks []condense.Chunk) ([]segment.Segment, error) {
	opts := &engine.Options{
		Language: p.cfg.Engine.Language,
		Timeout:  p.cfg.TranscribeTimeout(),
	}

	merged := make([]segment.Segment, 0)
	for _, chunk := range chunks {
		chunkSegs, err := p.transcribeOne(ctx, chunk.Path, opts)
		if err != nil {
			return nil, err
		}
		metrics.RecordChunk(p.eng.Info().ID)
		merged = append(merged, segment.OffsetAll(chunkSegs, chunk.Offset, len(merged)+1)...)
	}

	if err := segment.ValidateSequence(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// transcribeOne serializes engine access and retries a transient
// inference failure once. Validation, model-load, timeout and resource
// errors are never retried.
func (p *Pipeline) transcribeOne(ctx context.Context, chunkPath string, opts *engine.Options) ([]segment.Segment, error) {
	if err := p.engSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.engSem.Release(1)

	segs, err := p.eng.TranscribeFile(ctx, chunkPath, opts)
	if err != nil && pipeline.CodeOf(err) == pipeline.INFERENCE_FAILED {
		p.log.Warn("transcription failed, retrying once", "chunk", chunkPath, "error", err)
		segs, err = p.eng.TranscribeFile(ctx, chunkPath, opts)
	}
	return segs, err
}

func (p *Pipeline) refineSegments(ctx context.Context, segs []segment.Segment) ([]segment.Segment, error) {
	rctx, cancel := context.WithTimeout(ctx, p.cfg.RefineTimeout())
	defer cancel()

	refined, err := p.refiner.RefineSegments(rctx, segs, p.cfg.Refine.Instructions)
	if err != nil {
		return nil, err
	}
	if err := refine.CheckAlignment(segs, refined); err != nil {
		return nil, err
	}
	return refined, nil
}

// exportSpans writes the detected spans next to the other intermediates
// so a kept work dir shows what the detector saw. Failure to write the
// debug file never fails the run.
func (p *Pipeline) exportSpans(log *slog.Logger, spans []vad.Span, workDir string) {
	data, err := vad.EncodeSpans(spans)
	if err == nil {
		err = os.WriteFile(filepath.Join(workDir, "spans.json"), data, 0o644)
	}
	if err != nil {
		log.Warn("could not write spans.json", "error", err)
	}
}

// stage times fn and records its outcome in logs and metrics.
func (p *Pipeline) stage(log *slog.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	metrics.RecordStageDuration(name, elapsed.Seconds())
	metrics.RecordStage(name, err == nil)
	action := "success"
	code := ""
	if err != nil {
		action = "error"
		code = string(pipeline.CodeOf(err))
		metrics.RecordStageError(name, code)
	}
	logger.LogStage(log, name, action, elapsed.Milliseconds(), code)
	return err
}

// ffmpegDecoder adapts media.Decode to the Decoder interface.
type ffmpegDecoder struct {
	runner  *media.Runner
	timeout time.Duration
}

func (d ffmpegDecoder) Decode(ctx context.Context, inputPath, outDir string) (media.CanonicalAudio, error) {
	return media.Decode(ctx, d.runner, inputPath, outDir, d.timeout)
}

// ffmpegCondenser adapts condense.Condense to the Condenser interface.
type ffmpegCondenser struct {
	runner  *media.Runner
	profile vad.Profile
	timeout time.Duration
}

func (c ffmpegCondenser) Condense(ctx context.Context, audio media.CanonicalAudio, spans []vad.Span, outDir string) (condense.CondensedAudio, error) {
	return condense.Condense(ctx, c.runner, audio, spans, c.profile, outDir, c.timeout)
}
