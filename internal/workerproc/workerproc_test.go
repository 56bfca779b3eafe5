package workerproc

import (
	"context"
	"errors"
	"testing"

	"script-backend/internal/queue"
)

type recordingProcessor struct {
	ids []string
	err error
}

func (r *recordingProcessor) ProcessAnalysis(ctx context.Context, analysisID string) error {
	r.ids = append(r.ids, analysisID)
	return r.err
}

func encode(t *testing.T, msg queue.Message) string {
	t.Helper()
	body, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(body)
}

func TestHandleMessageRunsProcessor(t *testing.T) {
	p := &recordingProcessor{}
	body := encode(t, queue.Message{AnalysisID: "a-1", RequestID: "r-1", Version: 1})

	if err := HandleMessage(context.Background(), p, body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(p.ids) != 1 || p.ids[0] != "a-1" {
		t.Fatalf("processed %v", p.ids)
	}
}

func TestHandleMessageWrapsProcessorError(t *testing.T) {
	boom := errors.New("db down")
	p := &recordingProcessor{err: boom}
	body := encode(t, queue.Message{AnalysisID: "a-2", RequestID: "r-2"})

	err := HandleMessage(context.Background(), p, body)
	var procErr ErrProcess
	if !errors.As(err, &procErr) {
		t.Fatalf("expected ErrProcess, got %T", err)
	}
	if procErr.AnalysisID != "a-2" || !errors.Is(err, boom) {
		t.Fatalf("unexpected error: %+v", procErr)
	}
	if Unrecoverable(err) {
		t.Fatal("processor failures should be retried")
	}
}

func TestHandleMessageRejectsBadPayloads(t *testing.T) {
	cases := map[string]string{
		"empty":      "  ",
		"bad json":   "{nope",
		"missing id": `{"requestId":"r-3"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p := &recordingProcessor{}
			err := HandleMessage(context.Background(), p, body)
			if err == nil {
				t.Fatal("expected error")
			}
			if !Unrecoverable(err) {
				t.Fatalf("expected unrecoverable, got %v", err)
			}
			if len(p.ids) != 0 {
				t.Fatalf("processor should not run, got %v", p.ids)
			}
		})
	}
}

func TestParseMessageMeta(t *testing.T) {
	_, meta, err := ParseMessage("{nope")
	var decodeErr ErrDecode
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if meta.BodyLen != 5 || len(meta.BodySHA) != 64 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestProcessNilProcessor(t *testing.T) {
	err := Process(context.Background(), nil, queue.Message{AnalysisID: "a-4"})
	if err == nil || Unrecoverable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}
