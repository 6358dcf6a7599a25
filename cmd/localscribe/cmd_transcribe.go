package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/localscribe/localscribe/internal/config"
	"github.com/localscribe/localscribe/internal/pipeline"
	"github.com/localscribe/localscribe/internal/refine"
	"github.com/localscribe/localscribe/internal/segment"
	"github.com/localscribe/localscribe/internal/workflow"
	"github.com/localscribe/localscribe/pkg/logger"
)

func newTranscribeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe one audio file to text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigFromFlags(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := logger.Init(logger.Config{
				Level:       cfg.Log.Level,
				Environment: cfg.Log.Environment,
				File:        cfg.Log.File,
			})
			if err != nil {
				return err
			}

			p, err := workflow.New(cfg, log)
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("format")
			var out []byte
			switch format {
			case "json":
				out, err = segment.EncodeJSON(res.Segments)
				if err != nil {
					return err
				}
				out = append(out, '\n')
			case "text":
				out = []byte(segment.EncodeText(res.Segments))
			default:
				return pipeline.NewValidationError(
					fmt.Sprintf("unknown output format %q (want json or text)", format))
			}

			dest, _ := cmd.Flags().GetString("output")
			if dest == "" || dest == "-" {
				if _, err := cmd.OutOrStdout().Write(out); err != nil {
					return err
				}
			} else {
				if err := os.WriteFile(dest, out, 0o644); err != nil {
					return err
				}
				log.Info("transcript written", "path", dest, "segments", len(res.Segments))
			}

			if show, _ := cmd.Flags().GetBool("show-metrics"); show {
				dumpMetrics(cmd.ErrOrStderr())
			}
			return nil
		},
	}

	c.Flags().String("engine", "", "transcription engine (whispercpp, fasterwhisper)")
	c.Flags().String("model", "", "model name (tiny, base, small, medium, large-v3)")
	c.Flags().String("model-dir", "", "directory holding model weights")
	c.Flags().String("device", "", "inference device (auto, cpu, cuda)")
	c.Flags().String("language", "", "transcription language (empty = auto-detect)")
	c.Flags().String("vad-profile", "", "speech detection profile")
	c.Flags().String("refine-mode", "", "refinement mode (grammar, summary, bullets)")
	c.Flags().String("refine-instructions", "", "free-text refinement instructions")
	c.Flags().Bool("skip-refine", false, "skip the refinement pass")
	c.Flags().Bool("keep-intermediates", false, "keep decoded and condensed audio after the run")
	c.Flags().StringP("output", "o", "", "write the transcript here instead of stdout")
	c.Flags().String("format", "text", "output format (json, text)")
	c.Flags().Bool("show-metrics", false, "print pipeline counters and timings to stderr after the run")
	return c
}

// dumpMetrics prints every gathered metric sample, one per line, in the
// usual name{labels} value shape.
func dumpMetrics(w io.Writer) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		fmt.Fprintf(w, "metrics unavailable: %v\n", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(w, "%s %g\n", name, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(w, "%s count=%d sum=%g\n", name, h.GetSampleCount(), h.GetSampleSum())
			case m.GetGauge() != nil:
				fmt.Fprintf(w, "%s %g\n", name, m.GetGauge().GetValue())
			}
		}
	}
}

// loadConfigFromFlags reads the optional config file, then lets explicit
// command-line flags win over both file and environment.
func loadConfigFromFlags(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	setIf := func(flag string, dst *string) {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			*dst = v
		}
	}
	setIf("engine", &cfg.Engine.ID)
	setIf("model", &cfg.Engine.Model)
	setIf("model-dir", &cfg.Engine.ModelDir)
	setIf("device", &cfg.Engine.Device)
	setIf("language", &cfg.Engine.Language)
	setIf("vad-profile", &cfg.VAD.Profile)
	setIf("refine-instructions", &cfg.Refine.Instructions)
	setIf("log-level", &cfg.Log.Level)

	if v, _ := cmd.Flags().GetString("refine-mode"); v != "" {
		cfg.Refine.Mode = refine.Mode(v)
	}
	if v, _ := cmd.Flags().GetBool("skip-refine"); v {
		cfg.Run.SkipRefine = true
	}
	if v, _ := cmd.Flags().GetBool("keep-intermediates"); v {
		cfg.Run.KeepIntermediates = true
	}
	return cfg, nil
}
