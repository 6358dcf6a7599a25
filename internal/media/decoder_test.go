package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localscribe/localscribe/internal/pipeline"
)

func TestDecodeRejectsMissingInput(t *testing.T) {
	runner := NewRunner(nil)

	_, err := Decode(context.Background(), runner, "/nonexistent/input.mp3", t.TempDir(), time.Minute)

	require.Error(t, err)
	assert.Equal(t, pipeline.DECODE_FAILED, pipeline.CodeOf(err))
	assert.Contains(t, err.Error(), "/nonexistent/input.mp3")
}

func TestDecodeRejectsEmptyInput(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.wav")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	_, err := Decode(context.Background(), NewRunner(nil), empty, dir, time.Minute)

	require.Error(t, err)
	assert.Equal(t, pipeline.VALIDATION_FAILED, pipeline.CodeOf(err))
}

func TestIsCanonical(t *testing.T) {
	tests := []struct {
		name string
		info ProbeInfo
		want bool
	}{
		{"canonical", ProbeInfo{CodecName: "pcm_s16le", SampleRate: 16000, Channels: 1, FormatName: "wav"}, true},
		{"stereo", ProbeInfo{CodecName: "pcm_s16le", SampleRate: 16000, Channels: 2, FormatName: "wav"}, false},
		{"wrong rate", ProbeInfo{CodecName: "pcm_s16le", SampleRate: 44100, Channels: 1, FormatName: "wav"}, false},
		{"mp3", ProbeInfo{CodecName: "mp3", SampleRate: 16000, Channels: 1, FormatName: "mp3"}, false},
		{"float wav", ProbeInfo{CodecName: "pcm_f32le", SampleRate: 16000, Channels: 1, FormatName: "wav"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isCanonical(tt.info))
		})
	}
}

func TestCopyFileIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	require.NoError(t, WriteWAV(src, CanonicalSampleRate, 1, sineSamples(300, 0.2, 0.5)))

	dst1 := filepath.Join(dir, "dst1.wav")
	dst2 := filepath.Join(dir, "dst2.wav")
	require.NoError(t, copyFile(src, dst1))
	require.NoError(t, copyFile(src, dst2))

	a, err := os.ReadFile(dst1)
	require.NoError(t, err)
	b, err := os.ReadFile(dst2)
	require.NoError(t, err)
	orig, err := os.ReadFile(src)
	require.NoError(t, err)

	assert.Equal(t, orig, a)
	assert.Equal(t, a, b)
}
