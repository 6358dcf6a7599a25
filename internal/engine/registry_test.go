package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localscribe/localscribe/internal/pipeline"
)

func TestRegistryKnowsBuiltinAdapters(t *testing.T) {
	ids := IDs()
	assert.Contains(t, ids, "whispercpp")
	assert.Contains(t, ids, "fasterwhisper")
	assert.IsIncreasing(t, ids)
}

func TestNewUnknownEngine(t *testing.T) {
	_, err := New(Config{ID: "bogus", Model: "base"}, &FakeRunner{})

	require.Error(t, err)
	assert.Equal(t, pipeline.VALIDATION_FAILED, pipeline.CodeOf(err))
	assert.Contains(t, err.Error(), "whispercpp")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"ok", Config{ID: "whispercpp", Model: "base", Language: "en", Device: "cpu"}, ""},
		{"empty model", Config{ID: "whispercpp"}, "model"},
		{"bad language", Config{ID: "whispercpp", Model: "base", Language: "notalang!"}, "language"},
		{"bad device", Config{ID: "whispercpp", Model: "base", Device: "tpu"}, "device"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
