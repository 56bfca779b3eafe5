package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func analyzeCmd(build newRunner) *cobra.Command {
	var (
		forceReview bool
		out         string
		format      string
	)
	cmd := &cobra.Command{
		Use:   "analyze <script.pdf>",
		Short: "Run a fresh analysis of a screenplay PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}

			r, cleanup, err := build(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			state, runErr := r.StartAnalysis(cmd.Context(), path, forceReview)
			return finish(cmd.OutOrStdout(), state, runErr, out, format)
		},
	}
	cmd.Flags().BoolVar(&forceReview, "force-review", false, "Stop for human review even when the analysis passes")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the full workflow state as JSON to this file")
	cmd.Flags().StringVar(&format, "format", formatJSON, "Report format (json, yaml)")
	return cmd
}
