package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"script-backend/internal/workflow"
)

func resumeCmd(build newRunner) *cobra.Command {
	var (
		approve   bool
		reject    bool
		feedback  string
		reanalyze bool
		out       string
		format    string
	)
	cmd := &cobra.Command{
		Use:   "resume <state.json>",
		Short: "Answer a review request and continue the run",
		Long: `Resume replays a saved workflow state through the review gate.
Approving finishes the run; rejecting with --reanalyze runs one revision
with the feedback as guidance. The updated state overwrites the input file
unless --out is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read state: %w", err)
			}
			prior, err := workflow.DecodeState(data)
			if err != nil {
				return err
			}
			fb := workflow.Feedback{Text: feedback, Approved: approve && !reject, RequestReanalysis: reanalyze}
			if err := fb.Validate(); err != nil {
				return err
			}
			if out == "" {
				out = args[0]
			}

			r, cleanup, err := build(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			state, runErr := r.ResumeWithFeedback(cmd.Context(), prior, fb)
			return finish(cmd.OutOrStdout(), state, runErr, out, format)
		},
	}
	cmd.Flags().BoolVar(&approve, "approve", false, "Approve the analysis")
	cmd.Flags().BoolVar(&reject, "reject", false, "Reject the analysis")
	cmd.Flags().StringVarP(&feedback, "feedback", "m", "", "Reviewer notes")
	cmd.Flags().BoolVar(&reanalyze, "reanalyze", false, "Run a revision using the feedback")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the updated state here instead of over the input")
	cmd.Flags().StringVar(&format, "format", formatJSON, "Report format (json, yaml)")
	cmd.MarkFlagsMutuallyExclusive("approve", "reject")
	cmd.MarkFlagsOneRequired("approve", "reject")
	return cmd
}
