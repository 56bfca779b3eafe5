package analyses

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"script-backend/internal/breakdown/breakdowntest"
	"script-backend/internal/queue"
	"script-backend/internal/shared/storage/object/local"
	"script-backend/internal/workflow"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type queueStub struct {
	mu       sync.Mutex
	messages []queue.Message
	err      error
}

func (q *queueStub) Send(ctx context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.messages = append(q.messages, msg)
	return nil
}

type fakeRunner struct {
	mu      sync.Mutex
	start   func(path string, forceReview bool) (*workflow.State, error)
	resume  func(prior *workflow.State, fb workflow.Feedback) (*workflow.State, error)
	started []string
	resumed []workflow.Feedback
}

func (f *fakeRunner) StartAnalysis(ctx context.Context, path string, forceReview bool) (*workflow.State, error) {
	f.mu.Lock()
	f.started = append(f.started, path)
	f.mu.Unlock()
	if f.start == nil {
		return awaitingState(path), nil
	}
	return f.start(path, forceReview)
}

func (f *fakeRunner) ResumeWithFeedback(ctx context.Context, prior *workflow.State, fb workflow.Feedback) (*workflow.State, error) {
	f.mu.Lock()
	f.resumed = append(f.resumed, fb)
	f.mu.Unlock()
	if f.resume == nil {
		s := prior.Clone()
		s.Feedback = &fb
		s.Status = workflow.StatusCompletedWithApproval
		return s, nil
	}
	return f.resume(prior, fb)
}

func awaitingState(path string) *workflow.State {
	s := workflow.NewState(path, true, fixedNow)
	s.Analysis = breakdowntest.Sample(2, 150)
	s.Status = workflow.StatusAwaitingFeedback
	s.ReviewRequired = true
	s.ReviewReason = "force_review"
	s.CallsUsed = 2
	s.TotalCallsUsed = 2
	end := fixedNow.Add(3 * time.Second)
	s.EndedAt = &end
	s.ElapsedSeconds = 3
	return s
}

func failedState(path, msg string) *workflow.State {
	s := workflow.NewState(path, false, fixedNow)
	s.Status = workflow.StatusAnalysisFailed
	s.Errors = []string{msg}
	s.CallsUsed = 1
	s.TotalCallsUsed = 1
	return s
}

func pdfBody(size int) *bytes.Reader {
	body := make([]byte, size)
	copy(body, "%PDF-1.4\n")
	for i := len("%PDF-1.4\n"); i < size; i++ {
		body[i] = 'x'
	}
	return bytes.NewReader(body)
}

func newTestService(t *testing.T, q *queueStub, runner *fakeRunner) (*Service, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	svc := &Service{
		Repo:     repo,
		Store:    local.New(t.TempDir()),
		Workflow: runner,
		Now:      func() time.Time { return fixedNow },
	}
	if q != nil {
		svc.Queue = q
	}
	return svc, repo
}

func seedRecord(t *testing.T, repo *MemoryRepo, id string, state *workflow.State) Record {
	t.Helper()
	rec := Record{
		ID:            id,
		FileName:      "script.pdf",
		FileSizeBytes: 4096,
		StorageKey:    "scripts/2026-03-01/abc_script.pdf",
		Status:        StatusQueued,
		CreatedAt:     fixedNow,
		UpdatedAt:     fixedNow,
	}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("create record: %v", err)
	}
	if state != nil {
		if err := repo.SaveState(context.Background(), id, state, "", nil); err != nil {
			t.Fatalf("save state: %v", err)
		}
	}
	got, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	return got
}
