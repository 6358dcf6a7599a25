package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localscribe/localscribe/internal/engine"
)

func newEnginesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the available transcription engines",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range engine.IDs() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
