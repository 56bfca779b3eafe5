package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"script-backend/internal/bootstrap"
	"script-backend/internal/queue"
	"script-backend/internal/shared/config"
)

const (
	// visibilityMargin is added to the workflow timeout so a message stays
	// hidden for the whole run plus persistence.
	visibilityMargin          = 120 * time.Second
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg := config.Load()

	queueURL := strings.TrimSpace(cfg.SQSQueueURL)
	if queueURL == "" {
		log.Fatal("SQS_QUEUE_URL is required")
	}
	region := strings.TrimSpace(cfg.AWSRegion)
	if region == "" {
		region = queue.DefaultRegion
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	app, err := bootstrap.BuildContext(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	p := newPoller(sqs.NewFromConfig(awsCfg), queueURL, app.AnalysesService, cfg.WorkerConcurrency)
	p.visibility = envSeconds("SQS_VISIBILITY_TIMEOUT_SECONDS", cfg.WorkflowTimeout+visibilityMargin)

	log.Printf("worker started queue=%s concurrency=%d visibility=%s", queueURL, cap(p.slots), p.visibility)
	p.run(ctx)

	shutdown := envSeconds("WORKER_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec*time.Second)
	log.Printf("shutdown requested, waiting up to %s for in-flight runs", shutdown)
	if !p.drain(shutdown) {
		log.Printf("shutdown timeout reached; exiting with in-flight runs")
	}
}

func envSeconds(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("ignoring %s=%q", key, raw)
		return def
	}
	return time.Duration(n) * time.Second
}

func isShutdown(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
