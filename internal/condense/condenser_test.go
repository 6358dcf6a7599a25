package condense

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localscribe/localscribe/internal/media"
	"github.com/localscribe/localscribe/internal/pipeline"
	"github.com/localscribe/localscribe/internal/vad"
)

// FakeRunner stands in for ffmpeg: it records invocations, snapshots the
// concat manifest, and writes a small valid WAV at the output path.
type FakeRunner struct {
	ErrorToReturn error
	Calls         [][]string
	Manifests     []string
	OutputSec     float64
}

func (f *FakeRunner) Run(ctx context.Context, tool string, args []string, timeout time.Duration) (media.RunResult, error) {
	f.Calls = append(f.Calls, append([]string{tool}, args...))
	if f.ErrorToReturn != nil {
		return media.RunResult{ExitCode: 1, Stderr: "fake failure"}, f.ErrorToReturn
	}

	// snapshot the manifest while it exists
	for i, a := range args {
		if a == "-i" && i+1 < len(args) {
			data, err := os.ReadFile(args[i+1])
			if err != nil {
				return media.RunResult{}, err
			}
			f.Manifests = append(f.Manifests, string(data))
		}
	}

	sec := f.OutputSec
	if sec == 0 {
		sec = 1
	}
	out := args[len(args)-1]
	samples := make([]int16, int(sec*media.CanonicalSampleRate))
	if err := media.WriteWAV(out, media.CanonicalSampleRate, 1, samples); err != nil {
		return media.RunResult{}, err
	}
	return media.RunResult{ExitCode: 0}, nil
}

func canonicalFixture(t *testing.T) media.CanonicalAudio {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decoded_16k.wav")
	require.NoError(t, media.WriteWAV(path, media.CanonicalSampleRate, 1, make([]int16, media.CanonicalSampleRate)))
	return media.CanonicalAudio{Path: path, SampleRate: media.CanonicalSampleRate, Channels: 1, Duration: 90}
}

func TestCondenseWritesChunksAndCleansManifests(t *testing.T) {
	fake := &FakeRunner{OutputSec: 12}
	audio := canonicalFixture(t)
	outDir := t.TempDir()
	spans := []vad.Span{{Start: 2, End: 6}, {Start: 11, End: 15}, {Start: 20, End: 24}}

	result, err := Condense(context.Background(), fake, audio, spans, testProfile(), outDir, time.Minute)
	require.NoError(t, err)

	require.Len(t, result.Chunks, 1)
	assert.InDelta(t, 2.0, result.Chunks[0].Offset, 1e-9)
	assert.InDelta(t, 12.0, result.Chunks[0].Duration, 0.01)
	assert.FileExists(t, result.Chunks[0].Path)

	require.Len(t, fake.Manifests, 1)
	manifest := fake.Manifests[0]
	assert.Contains(t, manifest, "ffconcat version 1.0")
	assert.Contains(t, manifest, "inpoint 2.000000")
	assert.Contains(t, manifest, "outpoint 24.000000")

	// manifests are temp files and must be gone afterward
	leftovers, err := filepath.Glob(filepath.Join(os.TempDir(), "condense_*.ffconcat"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestCondenseEmptySpansFailsLoudly(t *testing.T) {
	fake := &FakeRunner{}

	_, err := Condense(context.Background(), fake, canonicalFixture(t), nil, testProfile(), t.TempDir(), time.Minute)

	require.Error(t, err)
	assert.Equal(t, pipeline.VALIDATION_FAILED, pipeline.CodeOf(err))
	assert.Empty(t, fake.Calls, "no ffmpeg invocation for empty spans")
}

func TestCondenseCleansManifestOnFfmpegFailure(t *testing.T) {
	fake := &FakeRunner{ErrorToReturn: errors.New("exit status 1")}

	_, err := Condense(context.Background(), fake, canonicalFixture(t), []vad.Span{{Start: 0, End: 5}}, testProfile(), t.TempDir(), time.Minute)

	require.Error(t, err)
	assert.Equal(t, pipeline.DECODE_FAILED, pipeline.CodeOf(err))

	leftovers, globErr := filepath.Glob(filepath.Join(os.TempDir(), "condense_*.ffconcat"))
	require.NoError(t, globErr)
	assert.Empty(t, leftovers)
}

func TestCondenseTimeout(t *testing.T) {
	fake := &FakeRunner{ErrorToReturn: context.DeadlineExceeded}

	_, err := Condense(context.Background(), fake, canonicalFixture(t), []vad.Span{{Start: 0, End: 5}}, testProfile(), t.TempDir(), time.Second)

	require.Error(t, err)
	assert.Equal(t, pipeline.TIMEOUT_EXCEEDED, pipeline.CodeOf(err))
}

func TestCondenseMultipleChunks(t *testing.T) {
	fake := &FakeRunner{OutputSec: 36}
	spans := []vad.Span{
		{Start: 0, End: 20},
		{Start: 22, End: 38},
		{Start: 52, End: 70},
		{Start: 72, End: 88},
	}

	result, err := Condense(context.Background(), fake, canonicalFixture(t), spans, testProfile(), t.TempDir(), time.Minute)
	require.NoError(t, err)

	require.Len(t, result.Chunks, 2)
	assert.Len(t, fake.Calls, 2)
	assert.Less(t, result.Chunks[0].Offset, result.Chunks[1].Offset)
}
