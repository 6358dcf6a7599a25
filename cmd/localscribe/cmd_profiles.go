package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localscribe/localscribe/internal/vad"
)

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the built-in speech detection profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range vad.ProfileNames() {
				p, err := vad.ResolveProfile(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s (v%d)\n", p.Name, p.Version)
				fmt.Fprintf(out, "  frame: %dms  silence threshold: %.0f dBFS\n", p.FrameMs, p.SilenceThreshDB)
				fmt.Fprintf(out, "  min silence: %dms  min speech: %dms  padding: %dms\n",
					p.MinSilenceMs, p.MinSpeechMs, p.SpeechPadMs)
				fmt.Fprintf(out, "  max speech: %.0fs  max chunk: %.0fs  join gap: %.1fs\n",
					p.MaxSpeechDurationS, p.MaxChunkDurationS, p.MaxJoinGapS)
			}
			return nil
		},
	}
}
