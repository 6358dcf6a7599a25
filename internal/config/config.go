// Package config loads pipeline configuration from an optional YAML file,
// applies environment overrides, and validates everything in one pass so
// the user sees all problems at once.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/localscribe/localscribe/internal/engine"
	"github.com/localscribe/localscribe/internal/pipeline"
	"github.com/localscribe/localscribe/internal/refine"
	"github.com/localscribe/localscribe/internal/vad"
)

// Config is the full pipeline configuration.
type Config struct {
	Engine engine.Config `yaml:"engine"`
	VAD    VADConfig     `yaml:"vad"`
	Refine refine.Config `yaml:"refine"`
	Media  MediaConfig   `yaml:"media"`
	Log    LogConfig     `yaml:"log"`
	Run    RunConfig     `yaml:"run"`
}

// VADConfig selects a detection profile by name.
type VADConfig struct {
	Profile string `yaml:"profile"`
}

// MediaConfig points at the external audio tools.
type MediaConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
}

// LogConfig mirrors the logger package options.
type LogConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
	File        string `yaml:"file"`
}

// RunConfig holds per-run behavior.
type RunConfig struct {
	// WorkDir is the parent directory for run-scoped scratch space.
	// Empty means the system temp directory.
	WorkDir string `yaml:"work_dir"`

	// KeepIntermediates retains decoded and condensed audio after a
	// successful run. Intermediates are always kept on failure.
	KeepIntermediates bool `yaml:"keep_intermediates"`

	// SkipRefine disables the refinement pass entirely.
	SkipRefine bool `yaml:"skip_refine"`

	// Per-stage timeouts in seconds. Zero means the stage default.
	DecodeTimeoutS     int `yaml:"decode_timeout_s"`
	TranscribeTimeoutS int `yaml:"transcribe_timeout_s"`
	RefineTimeoutS     int `yaml:"refine_timeout_s"`
}

// Load reads the YAML file at path (if non-empty), then layers
// environment overrides and defaults on top.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, pipeline.New(pipeline.VALIDATION_FAILED,
				fmt.Sprintf("cannot read config file %s", path), err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, pipeline.New(pipeline.VALIDATION_FAILED,
				fmt.Sprintf("cannot parse config file %s", path), err)
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Engine.ID = getEnv("LOCALSCRIBE_ENGINE", cfg.Engine.ID)
	cfg.Engine.Model = getEnv("LOCALSCRIBE_MODEL", cfg.Engine.Model)
	cfg.Engine.ModelDir = getEnv("LOCALSCRIBE_MODEL_DIR", cfg.Engine.ModelDir)
	cfg.Engine.Device = getEnv("LOCALSCRIBE_DEVICE", cfg.Engine.Device)
	cfg.Engine.Language = getEnv("LOCALSCRIBE_LANGUAGE", cfg.Engine.Language)
	cfg.VAD.Profile = getEnv("LOCALSCRIBE_VAD_PROFILE", cfg.VAD.Profile)
	cfg.Media.FFmpegPath = getEnv("LOCALSCRIBE_FFMPEG", cfg.Media.FFmpegPath)
	cfg.Media.FFprobePath = getEnv("LOCALSCRIBE_FFPROBE", cfg.Media.FFprobePath)
	cfg.Log.Level = getEnv("LOCALSCRIBE_LOG_LEVEL", cfg.Log.Level)
	if v := os.Getenv("LOCALSCRIBE_KEEP_INTERMEDIATES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Run.KeepIntermediates = b
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Engine.ID == "" {
		cfg.Engine.ID = "whispercpp"
	}
	if cfg.Engine.Model == "" {
		cfg.Engine.Model = "base"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Environment == "" {
		cfg.Log.Environment = "production"
	}
}

// Validate checks the whole configuration and reports every problem in
// a single error.
func (c *Config) Validate() error {
	var problems []string

	if err := c.Engine.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := vad.ResolveProfile(c.VAD.Profile); err != nil {
		problems = append(problems, err.Error())
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		problems = append(problems, fmt.Sprintf("invalid log level %q (must be: debug, info, warn, error)", c.Log.Level))
	}

	for name, v := range map[string]int{
		"decode_timeout_s":     c.Run.DecodeTimeoutS,
		"transcribe_timeout_s": c.Run.TranscribeTimeoutS,
		"refine_timeout_s":     c.Run.RefineTimeoutS,
	} {
		if v < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative", name))
		}
	}

	if len(problems) > 0 {
		return pipeline.NewValidationError(
			"configuration validation failed:\n  - " + strings.Join(problems, "\n  - "))
	}
	return nil
}

// DecodeTimeout returns the configured decode timeout or the default.
func (c *Config) DecodeTimeout() time.Duration {
	return timeoutOr(c.Run.DecodeTimeoutS, 5*time.Minute)
}

// TranscribeTimeout returns the per-chunk transcription timeout.
func (c *Config) TranscribeTimeout() time.Duration {
	return timeoutOr(c.Run.TranscribeTimeoutS, 30*time.Minute)
}

// RefineTimeout returns the refinement pass timeout.
func (c *Config) RefineTimeout() time.Duration {
	return timeoutOr(c.Run.RefineTimeoutS, 10*time.Minute)
}

func timeoutOr(seconds int, def time.Duration) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return def
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
