package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"script-backend/internal/bootstrap"
	"script-backend/internal/shared/config"
	"script-backend/internal/shared/metrics"
	"script-backend/internal/shared/telemetry"
	"script-backend/internal/workerproc"
)

// persistMargin covers storing the outcome after a run hits its timeout.
const persistMargin = 15 * time.Second

var (
	initOnce  sync.Once
	initErr   error
	processor workerproc.Processor
	runBudget time.Duration
)

func initApp() {
	cfg := config.Load()
	app, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	processor = app.AnalysesService
	runBudget = cfg.WorkflowTimeout + persistMargin
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		return events.SQSEventResponse{BatchItemFailures: failAll(event.Records)}, initErr
	}
	return handleBatch(ctx, processor, event, runBudget), nil
}

// handleBatch runs records in order. Only retryable failures are reported;
// poison messages are logged and dropped so they do not cycle until the
// redrive limit. Records that could not finish before the invocation
// deadline are handed back untouched.
func handleBatch(ctx context.Context, p workerproc.Processor, event events.SQSEvent, budget time.Duration) events.SQSEventResponse {
	var failures []events.SQSBatchItemFailure
	for i, record := range event.Records {
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < budget {
			deferred := event.Records[i:]
			telemetry.Warn("lambda.analysis.deferred", map[string]any{
				"records":      len(deferred),
				"remaining_ms": time.Until(deadline).Milliseconds(),
			})
			return events.SQSEventResponse{BatchItemFailures: append(failures, failAll(deferred)...)}
		}

		metrics.IncWorkerJob(metrics.JobReceived)
		err := workerproc.HandleMessage(ctx, p, record.Body)
		fields := map[string]any{"sqs_message_id": record.MessageId}
		switch {
		case err == nil:
			metrics.IncWorkerJob(metrics.JobCompleted)
		case workerproc.Unrecoverable(err):
			meta := workerproc.ComputeMeta(record.Body)
			fields["body_len"] = meta.BodyLen
			fields["body_sha256"] = meta.BodySHA
			fields["error"] = err.Error()
			telemetry.Error("lambda.analysis.discarded", fields)
			metrics.IncWorkerJob(metrics.JobDiscarded)
		default:
			fields["error"] = err.Error()
			telemetry.Error("lambda.analysis.failed", fields)
			metrics.IncWorkerJob(metrics.JobFailed)
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func failAll(records []events.SQSMessage) []events.SQSBatchItemFailure {
	out := make([]events.SQSBatchItemFailure, 0, len(records))
	for _, r := range records {
		out = append(out, events.SQSBatchItemFailure{ItemIdentifier: r.MessageId})
	}
	return out
}

func main() {
	lambda.Start(handler)
}
