package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/localscribe/localscribe/internal/pipeline"
)

// Canonical audio parameters. Every downstream stage assumes this format.
const (
	CanonicalSampleRate = 16000
	CanonicalChannels   = 1
)

// CanonicalAudio is a decoded, normalized audio file: PCM s16le, mono,
// 16 kHz WAV. Immutable once written; deleted by the workflow (or the
// caller) when intermediates are not kept.
type CanonicalAudio struct {
	Path       string
	SampleRate int
	Channels   int
	Duration   float64
}

// Decode normalizes inputPath into outDir as canonical WAV. Re-decoding the
// same input yields bit-identical output. Inputs already in canonical form
// are copied byte-for-byte instead of being resampled; the output contract
// is identical either way.
func Decode(ctx context.Context, runner *Runner, inputPath, outDir string, timeout time.Duration) (CanonicalAudio, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return CanonicalAudio{}, pipeline.NewDecodeError(inputPath, err)
	}
	if info.Size() == 0 {
		return CanonicalAudio{}, pipeline.NewValidationError(
			fmt.Sprintf("input file %s is empty", inputPath))
	}

	probe, err := Probe(ctx, runner, inputPath)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return CanonicalAudio{}, pipeline.NewTimeoutError("decode", timeout)
		}
		return CanonicalAudio{}, pipeline.NewDecodeError(inputPath, err)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outPath := filepath.Join(outDir, base+"_16k.wav")

	if isCanonical(probe) {
		if err := copyFile(inputPath, outPath); err != nil {
			return CanonicalAudio{}, pipeline.NewDecodeError(inputPath, err)
		}
	} else {
		// bitexact keeps the output free of run-dependent metadata so
		// decoding is idempotent
		result, err := runner.Run(ctx, "ffmpeg", []string{
			"-y",
			"-i", inputPath,
			"-ac", fmt.Sprintf("%d", CanonicalChannels),
			"-ar", fmt.Sprintf("%d", CanonicalSampleRate),
			"-acodec", "pcm_s16le",
			"-map_metadata", "-1",
			"-fflags", "+bitexact",
			"-flags:a", "+bitexact",
			"-f", "wav",
			outPath,
		}, timeout)
		if err != nil {
			_ = os.Remove(outPath)
			if errors.Is(err, context.DeadlineExceeded) {
				return CanonicalAudio{}, pipeline.NewTimeoutError("decode", timeout)
			}
			return CanonicalAudio{}, pipeline.NewDecodeError(inputPath,
				fmt.Errorf("ffmpeg: %w (stderr: %s)", err, tail(result.Stderr, 500)))
		}
	}

	wav, err := ReadWAV(outPath)
	if err != nil {
		_ = os.Remove(outPath)
		return CanonicalAudio{}, pipeline.NewDecodeError(inputPath, err)
	}

	return CanonicalAudio{
		Path:       outPath,
		SampleRate: wav.SampleRate,
		Channels:   wav.Channels,
		Duration:   wav.Duration(),
	}, nil
}

func isCanonical(info ProbeInfo) bool {
	return info.CodecName == "pcm_s16le" &&
		info.SampleRate == CanonicalSampleRate &&
		info.Channels == CanonicalChannels &&
		strings.Contains(info.FormatName, "wav")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
