package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localscribe/localscribe/internal/pipeline"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "localscribe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "whispercpp", cfg.Engine.ID)
	assert.Equal(t, "base", cfg.Engine.Model)
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfigFile(t, `
engine:
  id: fasterwhisper
  model: small
  device: cpu
vad:
  profile: lecture
run:
  keep_intermediates: true
  transcribe_timeout_s: 600
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "fasterwhisper", cfg.Engine.ID)
	assert.Equal(t, "small", cfg.Engine.Model)
	assert.Equal(t, "lecture", cfg.VAD.Profile)
	assert.True(t, cfg.Run.KeepIntermediates)
	assert.Equal(t, 10*time.Minute, cfg.TranscribeTimeout())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/localscribe.yaml")
	require.Error(t, err)
	assert.Equal(t, pipeline.VALIDATION_FAILED, pipeline.CodeOf(err))
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "engine: [not a mapping")
	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, pipeline.VALIDATION_FAILED, pipeline.CodeOf(err))
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "engine:\n  model: base\n")
	t.Setenv("LOCALSCRIBE_MODEL", "large-v3")
	t.Setenv("LOCALSCRIBE_VAD_PROFILE", "lecture")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "large-v3", cfg.Engine.Model)
	assert.Equal(t, "lecture", cfg.VAD.Profile)
}

func TestValidateAggregatesProblems(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Engine.Device = "tpu"
	cfg.VAD.Profile = "nonsense"
	cfg.Log.Level = "loud"
	cfg.Run.DecodeTimeoutS = -1

	err = cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, pipeline.VALIDATION_FAILED, pipeline.CodeOf(err))
	assert.Contains(t, err.Error(), "device")
	assert.Contains(t, err.Error(), "nonsense")
	assert.Contains(t, err.Error(), "log level")
	assert.Contains(t, err.Error(), "decode_timeout_s")
}

func TestTimeoutDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.DecodeTimeout())
	assert.Equal(t, 30*time.Minute, cfg.TranscribeTimeout())
	assert.Equal(t, 10*time.Minute, cfg.RefineTimeout())
}
