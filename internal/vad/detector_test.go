package vad

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localscribe/localscribe/internal/media"
	"github.com/localscribe/localscribe/internal/pipeline"
)

// buildAudio writes a canonical WAV alternating silence and 440 Hz tone
// according to the given (speech bool, seconds) schedule.
func buildAudio(t *testing.T, schedule []struct {
	speech bool
	sec    float64
}) media.CanonicalAudio {
	t.Helper()

	var samples []int16
	for _, part := range schedule {
		n := int(part.sec * media.CanonicalSampleRate)
		for i := 0; i < n; i++ {
			if part.speech {
				v := 0.5 * math.Sin(2*math.Pi*440*float64(i)/media.CanonicalSampleRate)
				samples = append(samples, int16(v*32767))
			} else {
				samples = append(samples, 0)
			}
		}
	}

	path := filepath.Join(t.TempDir(), "audio.wav")
	require.NoError(t, media.WriteWAV(path, media.CanonicalSampleRate, 1, samples))
	return media.CanonicalAudio{
		Path:       path,
		SampleRate: media.CanonicalSampleRate,
		Channels:   1,
		Duration:   float64(len(samples)) / media.CanonicalSampleRate,
	}
}

func TestDetectPureSilenceReturnsEmpty(t *testing.T) {
	audio := buildAudio(t, []struct {
		speech bool
		sec    float64
	}{{false, 3}})

	det, err := NewDetector(DefaultProfile())
	require.NoError(t, err)

	spans, err := det.Detect(audio)
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestDetectThreeBursts(t *testing.T) {
	// 30s layout: 2s silence, 4s speech, 5s silence, 4s speech, 5s silence,
	// 4s speech, 6s silence => 12s of speech in 3 spans
	audio := buildAudio(t, []struct {
		speech bool
		sec    float64
	}{
		{false, 2}, {true, 4}, {false, 5}, {true, 4}, {false, 5}, {true, 4}, {false, 6},
	})

	det, err := NewDetector(DefaultProfile())
	require.NoError(t, err)

	spans, err := det.Detect(audio)
	require.NoError(t, err)

	require.Len(t, spans, 3)
	require.NoError(t, ValidateSpans(spans, audio.Duration))

	// first burst covers [2, 6]; padding of 150ms widens it slightly
	assert.InDelta(t, 2.0, spans[0].Start, 0.3)
	assert.InDelta(t, 6.0, spans[0].End, 0.3)
	assert.InDelta(t, 12.0, TotalSpeech(spans), 1.5)
}

func TestDetectIsDeterministic(t *testing.T) {
	audio := buildAudio(t, []struct {
		speech bool
		sec    float64
	}{{false, 1}, {true, 3}, {false, 2}, {true, 2}, {false, 1}})

	det, err := NewDetector(DefaultProfile())
	require.NoError(t, err)

	first, err := det.Detect(audio)
	require.NoError(t, err)
	second, err := det.Detect(audio)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPaddingDoesNotOverlapSpans(t *testing.T) {
	// two bursts separated by 600ms of silence; 400ms padding on each side
	// would overlap by 200ms without the midpoint clamp
	profile := DefaultProfile()
	profile.SpeechPadMs = 400

	audio := buildAudio(t, []struct {
		speech bool
		sec    float64
	}{{false, 1}, {true, 2}, {false, 0.6}, {true, 2}, {false, 1}})

	det, err := NewDetector(profile)
	require.NoError(t, err)

	spans, err := det.Detect(audio)
	require.NoError(t, err)

	require.Len(t, spans, 2)
	require.NoError(t, ValidateSpans(spans, audio.Duration))
	// clamped edges meet at the midpoint of the silence gap
	assert.InDelta(t, spans[0].End, spans[1].Start, 1e-9)
	assert.InDelta(t, 3.3, spans[0].End, 0.1)
}

func TestLongRunIsSplit(t *testing.T) {
	profile := DefaultProfile()
	profile.MaxSpeechDurationS = 2

	audio := buildAudio(t, []struct {
		speech bool
		sec    float64
	}{{true, 5}})

	det, err := NewDetector(profile)
	require.NoError(t, err)

	spans, err := det.Detect(audio)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(spans), 3)
	require.NoError(t, ValidateSpans(spans, audio.Duration))
	for _, s := range spans {
		assert.LessOrEqual(t, s.Duration(), profile.MaxSpeechDurationS+0.5)
	}
}

func TestNewDetectorRejectsInvalidProfile(t *testing.T) {
	profile := DefaultProfile()
	profile.FrameMs = 0
	profile.SilenceThreshDB = 10

	_, err := NewDetector(profile)

	require.Error(t, err)
	assert.Equal(t, pipeline.VALIDATION_FAILED, pipeline.CodeOf(err))
	assert.Contains(t, err.Error(), "frame_ms")
	assert.Contains(t, err.Error(), "silence_thresh_db")
}

func TestDetectRejectsNonCanonicalAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	require.NoError(t, media.WriteWAV(path, 44100, 2, make([]int16, 44100)))

	det, err := NewDetector(DefaultProfile())
	require.NoError(t, err)

	_, err = det.Detect(media.CanonicalAudio{Path: path, SampleRate: 44100, Channels: 2, Duration: 0.5})

	require.Error(t, err)
	assert.Equal(t, pipeline.VALIDATION_FAILED, pipeline.CodeOf(err))
}
