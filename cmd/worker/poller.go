package main

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"script-backend/internal/shared/metrics"
	"script-backend/internal/shared/telemetry"
	"script-backend/internal/workerproc"
)

const (
	retryBaseDelay = 30 * time.Second
	retryMaxDelay  = 15 * time.Minute
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// poller long-polls one queue and runs each analysis message on a bounded
// set of goroutines.
type poller struct {
	client     sqsAPI
	queueURL   string
	processor  workerproc.Processor
	visibility time.Duration
	slots      chan struct{}
	wg         sync.WaitGroup
	now        func() time.Time
}

func newPoller(client sqsAPI, queueURL string, processor workerproc.Processor, concurrency int) *poller {
	return &poller{
		client:    client,
		queueURL:  queueURL,
		processor: processor,
		slots:     make(chan struct{}, max(1, concurrency)),
		now:       time.Now,
	}
}

// run receives until ctx is canceled. Runs already started keep going.
func (p *poller) run(ctx context.Context) {
	for ctx.Err() == nil {
		resp, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:                    aws.String(p.queueURL),
			MaxNumberOfMessages:         int32(min(10, cap(p.slots))),
			WaitTimeSeconds:             20,
			VisibilityTimeout:           int32(p.visibility / time.Second),
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{sqstypes.MessageSystemAttributeNameApproximateReceiveCount},
		})
		if err != nil {
			if isShutdown(ctx, err) {
				return
			}
			log.Printf("receive message: %v", err)
			continue
		}
		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				return
			case p.slots <- struct{}{}:
			}
			metrics.IncWorkerJob(metrics.JobReceived)
			p.wg.Add(1)
			go func(m sqstypes.Message) {
				defer p.wg.Done()
				defer func() { <-p.slots }()
				p.handle(context.WithoutCancel(ctx), m)
			}(msg)
		}
	}
}

// drain waits for in-flight runs and reports whether they all finished.
func (p *poller) drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (p *poller) handle(ctx context.Context, msg sqstypes.Message) {
	decoded, meta, err := workerproc.ParseMessage(aws.ToString(msg.Body))
	fields := logFields(msg, decoded.AnalysisID, decoded.RequestID)
	if err != nil {
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.analysis.unparseable", fields)
		if p.ack(ctx, msg, fields) {
			metrics.IncWorkerJob(metrics.JobDiscarded)
		}
		return
	}

	fields["queue_wait_ms"] = decoded.Age(p.now()).Milliseconds()
	telemetry.Info("worker.analysis.received", fields)
	delete(fields, "queue_wait_ms")

	if err := workerproc.Process(ctx, p.processor, decoded); err != nil {
		fields["error"] = err.Error()
		telemetry.Error("worker.analysis.failed", fields)
		metrics.IncWorkerJob(metrics.JobFailed)
		p.backoff(ctx, msg, fields)
		return
	}
	if p.ack(ctx, msg, fields) {
		telemetry.Info("worker.analysis.completed", fields)
		metrics.IncWorkerJob(metrics.JobCompleted)
	}
}

func (p *poller) ack(ctx context.Context, msg sqstypes.Message, fields map[string]any) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		telemetry.Error("worker.analysis.delete_failed", withError(fields, "missing receipt handle"))
		return false
	}
	if _, err := p.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		telemetry.Error("worker.analysis.delete_failed", withError(fields, err.Error()))
		return false
	}
	return true
}

// backoff shortens the visibility timeout of a failed message so the retry
// comes after retryDelay rather than a full run's worth of visibility.
func (p *poller) backoff(ctx context.Context, msg sqstypes.Message, fields map[string]any) {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		return
	}
	delay := retryDelay(receiveCount(msg))
	if _, err := p.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(p.queueURL),
		ReceiptHandle:     aws.String(receipt),
		VisibilityTimeout: int32(delay / time.Second),
	}); err != nil {
		telemetry.Warn("worker.analysis.backoff_failed", withError(fields, err.Error()))
	}
}

// retryDelay doubles from retryBaseDelay per prior receive, capped at
// retryMaxDelay.
func retryDelay(receives int) time.Duration {
	d := retryBaseDelay
	for i := 1; i < receives && d < retryMaxDelay; i++ {
		d *= 2
	}
	return min(d, retryMaxDelay)
}

func logFields(msg sqstypes.Message, analysisID, requestID string) map[string]any {
	fields := map[string]any{
		"analysis_id":    analysisID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func withError(fields map[string]any, msg string) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = msg
	return out
}

func receiveCount(msg sqstypes.Message) int {
	n, err := strconv.Atoi(msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)])
	if err != nil {
		return 0
	}
	return n
}
