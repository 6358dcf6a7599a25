package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/localscribe/localscribe/internal/pipeline"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "localscribe",
		Short:   "Local batch speech-to-text pipeline",
		Long:    "Transcribes recorded audio entirely on this machine: decode, silence removal, whisper transcription, and transcript refinement. No audio or text ever leaves the host.",
		Version: version,

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newTranscribeCmd())
	rootCmd.AddCommand(newProfilesCmd())
	rootCmd.AddCommand(newEnginesCmd())
	rootCmd.AddCommand(newDoctorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitStatus(err))
	}
}

// exitStatus maps classified pipeline errors to their exit codes and
// everything else (flag errors, usage errors) to 1.
func exitStatus(err error) int {
	var pe *pipeline.PipeError
	if errors.As(err, &pe) {
		return pipeline.ExitCode(pe)
	}
	return 1
}
