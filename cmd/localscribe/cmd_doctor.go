package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localscribe/localscribe/internal/engine"
	"github.com/localscribe/localscribe/internal/media"
	"github.com/localscribe/localscribe/internal/pipeline"
)

func newDoctorCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "doctor",
		Short: "Check that external tools and the configured engine are usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigFromFlags(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failed := 0

			binaries := map[string]string{}
			if cfg.Media.FFmpegPath != "" {
				binaries["ffmpeg"] = cfg.Media.FFmpegPath
			}
			if cfg.Media.FFprobePath != "" {
				binaries["ffprobe"] = cfg.Media.FFprobePath
			}
			runner := media.NewRunner(binaries)

			for _, tool := range []string{"ffmpeg", "ffprobe"} {
				if err := runner.HealthCheck(tool); err != nil {
					fmt.Fprintf(out, "%-12s FAIL: %v\n", tool, err)
					failed++
				} else {
					fmt.Fprintf(out, "%-12s ok\n", tool)
				}
			}

			eng, err := engine.New(cfg.Engine, runner)
			if err != nil {
				fmt.Fprintf(out, "%-12s FAIL: %v\n", "engine", err)
				failed++
			} else {
				defer eng.Close()
				if err := eng.HealthCheck(cmd.Context()); err != nil {
					fmt.Fprintf(out, "%-12s FAIL: %v\n", cfg.Engine.ID, err)
					failed++
				} else {
					info := eng.Info()
					fmt.Fprintf(out, "%-12s ok (model %s, device %s)\n", info.ID, info.Model, info.Device)
				}
			}

			if failed > 0 {
				return pipeline.NewValidationError(
					fmt.Sprintf("%d check(s) failed", failed)).
					WithHint("install the missing tools or adjust the config")
			}
			fmt.Fprintln(out, "all checks passed")
			return nil
		},
	}
	c.Flags().String("engine", "", "transcription engine to check")
	c.Flags().String("model", "", "model name")
	c.Flags().String("model-dir", "", "directory holding model weights")
	c.Flags().String("device", "", "inference device")
	return c
}
