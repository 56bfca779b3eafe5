// Package main provides scriptctl, a local driver for script analysis runs.
// State files written by analyze can be fed back to resume.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"script-backend/internal/analyzer"
	"script-backend/internal/bootstrap"
	"script-backend/internal/extract"
	"script-backend/internal/shared/config"
	"script-backend/internal/workflow"
)

// runner is the workflow surface the commands drive.
type runner interface {
	StartAnalysis(ctx context.Context, documentPath string, forceReview bool) (*workflow.State, error)
	ResumeWithFeedback(ctx context.Context, prior *workflow.State, fb workflow.Feedback) (*workflow.State, error)
}

// newRunner builds an orchestrator that reads local files. The returned
// func releases its connections.
type newRunner func(ctx context.Context) (runner, func(), error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd(defaultRunner).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd(build newRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "scriptctl",
		Short:         "Analyze screenplays and answer review requests locally",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(analyzeCmd(build), resumeCmd(build))
	return cmd
}

func defaultRunner(ctx context.Context) (runner, func(), error) {
	cfg := config.Load()
	client, err := bootstrap.BuildLLM(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	mongoClient, rates := bootstrap.BuildRates(ctx, cfg)
	cleanup := func() {
		if mongoClient != nil {
			_ = mongoClient.Disconnect(context.Background())
		}
	}
	o := workflow.New(
		extract.NewPDFExtractor(extract.FileOpener{}),
		analyzer.New(client, rates),
		workflow.Options{Timeout: cfg.WorkflowTimeout, MaxRevisions: cfg.MaxRevisions},
	)
	return o, cleanup, nil
}
