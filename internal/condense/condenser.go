package condense

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/localscribe/localscribe/internal/media"
	"github.com/localscribe/localscribe/internal/pipeline"
	"github.com/localscribe/localscribe/internal/vad"
)

// CommandRunner is the subset of media.Runner the condenser needs; tests
// substitute a fake.
type CommandRunner interface {
	Run(ctx context.Context, tool string, args []string, timeout time.Duration) (media.RunResult, error)
}

// Chunk is one condensed, speech-only audio file.
type Chunk struct {
	Path     string
	Duration float64
	// Offset is the chunk's start time in the original recording, used to
	// re-offset segment timestamps when merging results.
	Offset float64
}

// CondensedAudio is the condenser's output: at least one chunk, each within
// the profile's max chunk duration.
type CondensedAudio struct {
	Chunks []Chunk
}

// TotalDuration sums all chunk durations.
func (c CondensedAudio) TotalDuration() float64 {
	var total float64
	for _, chunk := range c.Chunks {
		total += chunk.Duration
	}
	return total
}

// Condense cuts the spans out of audio and writes bounded chunks into
// outDir with a single ffmpeg concat-demuxer pass per chunk (stream copy,
// no re-encoding). An empty span list is a validation error: absence of
// speech must stay visible to the caller.
func Condense(ctx context.Context, runner CommandRunner, audio media.CanonicalAudio, spans []vad.Span, profile vad.Profile, outDir string, timeout time.Duration) (CondensedAudio, error) {
	plans, err := PlanChunks(spans, profile)
	if err != nil {
		return CondensedAudio{}, err
	}

	chunks := make([]Chunk, 0, len(plans))
	for i, plan := range plans {
		chunkPath := filepath.Join(outDir, fmt.Sprintf("chunk_%03d.wav", i))
		if err := cutChunk(ctx, runner, audio.Path, plan, chunkPath, timeout); err != nil {
			return CondensedAudio{}, err
		}

		wav, err := media.ReadWAV(chunkPath)
		if err != nil {
			return CondensedAudio{}, pipeline.NewDecodeError(chunkPath,
				fmt.Errorf("condensed chunk unreadable: %w", err))
		}

		chunks = append(chunks, Chunk{
			Path:     chunkPath,
			Duration: wav.Duration(),
			Offset:   plan.Offset,
		})
	}

	return CondensedAudio{Chunks: chunks}, nil
}

// cutChunk writes the concat manifest, runs ffmpeg, and removes the
// manifest on every exit path.
func cutChunk(ctx context.Context, runner CommandRunner, sourcePath string, plan ChunkPlan, chunkPath string, timeout time.Duration) error {
	manifest, err := writeManifest(sourcePath, plan.Ranges)
	if err != nil {
		return pipeline.NewDecodeError(sourcePath, fmt.Errorf("write concat manifest: %w", err))
	}
	defer os.Remove(manifest)

	result, err := runner.Run(ctx, "ffmpeg", []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
		"-c", "copy",
		"-fflags", "+bitexact",
		chunkPath,
	}, timeout)
	if err != nil {
		_ = os.Remove(chunkPath)
		if errors.Is(err, context.DeadlineExceeded) {
			return pipeline.NewTimeoutError("condense", timeout)
		}
		return pipeline.NewDecodeError(sourcePath,
			fmt.Errorf("ffmpeg concat: %w (stderr: %s)", err, result.Stderr))
	}
	return nil
}

// writeManifest emits an ffconcat file listing each kept range of the
// source as inpoint/outpoint pairs.
func writeManifest(sourcePath string, ranges []Range) (string, error) {
	f, err := os.CreateTemp("", "condense_*.ffconcat")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		abs = sourcePath
	}
	for _, r := range ranges {
		// single quotes in paths escape as '\''
		quoted := strings.ReplaceAll(abs, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\ninpoint %.6f\noutpoint %.6f\n", quoted, r.Start, r.End)
	}

	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
