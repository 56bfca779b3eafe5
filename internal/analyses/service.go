package analyses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"script-backend/internal/queue"
	"script-backend/internal/shared/storage/object"
	"script-backend/internal/shared/telemetry"
	"script-backend/internal/shared/util"
	"script-backend/internal/workflow"
)

// Upload bounds for script files.
const (
	MinUploadBytes = 1 << 10
	MaxUploadBytes = 50 << 20
)

// Runner is the workflow surface the service drives.
type Runner interface {
	StartAnalysis(ctx context.Context, documentPath string, forceReview bool) (*workflow.State, error)
	ResumeWithFeedback(ctx context.Context, prior *workflow.State, fb workflow.Feedback) (*workflow.State, error)
}

// Service contains business logic for script analyses.
type Service struct {
	Repo     Repo
	Store    object.ObjectStore
	Workflow Runner
	// Queue hands runs to a worker. When nil, runs happen in-process.
	Queue queue.Client
	// ClaimLease bounds how long a crashed run keeps its record.
	ClaimLease time.Duration
	Now        func() time.Time
}

// DefaultClaimLease is how long a processing record may go without an update
// before another delivery takes it over.
const DefaultClaimLease = 15 * time.Minute

func (s *Service) claimLease() time.Duration {
	if s.ClaimLease > 0 {
		return s.ClaimLease
	}
	return DefaultClaimLease
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Submit stores an uploaded script and schedules its first run.
func (s *Service) Submit(ctx context.Context, fileName string, size int64, r io.Reader, forceReview bool) (Record, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !util.HasExt(name, ".pdf") {
		return Record{}, fmt.Errorf("%w: only .pdf files are accepted", ErrInvalidInput)
	}
	if err := checkSize(size); err != nil {
		return Record{}, err
	}

	obj, err := s.Store.Save(ctx, name, io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return Record{}, fmt.Errorf("store upload: %w", err)
	}
	if err := checkSize(obj.Size); err != nil {
		s.discardUpload(ctx, obj.Key)
		return Record{}, err
	}

	now := s.now()
	rec := Record{
		ID:            uuid.NewString(),
		FileName:      name,
		FileSizeBytes: obj.Size,
		StorageKey:    obj.Key,
		ForceReview:   forceReview,
		Status:        StatusQueued,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Repo.Create(ctx, rec); err != nil {
		s.discardUpload(ctx, obj.Key)
		return Record{}, fmt.Errorf("create record: %w", err)
	}
	telemetry.InfoCtx(ctx, "analysis.submitted", map[string]any{
		"request_id":   requestIDFromContext(ctx),
		"analysis_id":  rec.ID,
		"file_name":    rec.FileName,
		"size_bytes":   rec.FileSizeBytes,
		"force_review": rec.ForceReview,
	})

	if err := s.dispatch(ctx, rec.ID); err != nil {
		return rec, err
	}
	return rec, nil
}

// discardUpload removes a stored script that never got a record.
func (s *Service) discardUpload(ctx context.Context, key string) {
	if err := s.Store.Delete(detached(ctx), key); err != nil {
		telemetry.WarnCtx(ctx, "analysis.upload_orphaned", map[string]any{
			"storage_key": key,
			"error":       err.Error(),
		})
	}
}

// SubmitFeedback records a reviewer's response and schedules the resumed run.
func (s *Service) SubmitFeedback(ctx context.Context, id string, fb workflow.Feedback) (Record, error) {
	fb.Text = strings.TrimSpace(fb.Text)
	if fb.Text == "" {
		return Record{}, fmt.Errorf("%w: feedback text is required", ErrInvalidInput)
	}
	if err := fb.Validate(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	rec, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Busy() {
		return rec, ErrBusy
	}
	if rec.State == nil || !resumable(rec.State.Status) {
		return rec, fmt.Errorf("%w: status is %s", workflow.ErrNotResumable, rec.Status)
	}

	ok, err := s.Repo.SetPendingFeedback(ctx, id, fb)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		// Another response requeued it between the read and the write.
		return rec, ErrBusy
	}
	rec.PendingFeedback = &fb
	rec.Status = StatusQueued
	telemetry.InfoCtx(ctx, "analysis.feedback", map[string]any{
		"request_id":         requestIDFromContext(ctx),
		"analysis_id":        id,
		"approved":           fb.Approved,
		"request_reanalysis": fb.RequestReanalysis,
	})

	if err := s.dispatch(ctx, id); err != nil {
		return rec, err
	}
	return rec, nil
}

// ProcessAnalysis runs or resumes the workflow for a queued record and
// stores the resulting state. A delivery that finds the record already
// claimed or settled does nothing.
func (s *Service) ProcessAnalysis(ctx context.Context, id string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			msg := sanitizeError(err)
			telemetry.ErrorCtx(ctx, "analysis.panic", map[string]any{"analysis_id": id, "error": msg})
			if ferr := s.Repo.SetFailure(detached(ctx), id, ErrorCodeInternal, msg); ferr != nil {
				telemetry.ErrorCtx(ctx, "analysis.panic_unrecorded", map[string]any{"analysis_id": id, "error": ferr.Error()})
			}
		}
	}()

	if s.Workflow == nil {
		return errors.New("workflow not configured")
	}
	claimed, err := s.Repo.Claim(ctx, id, s.now().Add(-s.claimLease()))
	if err != nil {
		return fmt.Errorf("claim analysis: %w", err)
	}
	rec, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("analysis lookup: %w", err)
	}
	if !claimed {
		fields := map[string]any{
			"analysis_id": id,
			"status":      rec.Status,
		}
		if rec.Busy() {
			// Held by a live run; redeliver once it settles or its lease lapses.
			telemetry.InfoCtx(ctx, "analysis.in_flight", fields)
			return fmt.Errorf("%w: run in progress", ErrBusy)
		}
		telemetry.InfoCtx(ctx, "analysis.skipped", fields)
		return nil
	}

	var (
		state  *workflow.State
		runErr error
	)
	resume := rec.PendingFeedback != nil && rec.State != nil
	if resume {
		state, runErr = s.Workflow.ResumeWithFeedback(ctx, rec.State, *rec.PendingFeedback)
		if state == nil {
			// Nothing ran; keep the prior state and report why.
			state = rec.State
		}
	} else {
		state, runErr = s.Workflow.StartAnalysis(ctx, rec.StorageKey, rec.ForceReview)
	}
	if state == nil {
		return fmt.Errorf("workflow returned no state: %w", runErr)
	}

	code, msg := failureOf(state, runErr)
	if err := s.Repo.SaveState(ctx, id, state, code, msg); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	fields := map[string]any{
		"request_id":       requestIDFromContext(ctx),
		"analysis_id":      id,
		"status":           string(state.Status),
		"resume":           resume,
		"total_calls_used": state.TotalCallsUsed,
		"revisions":        state.Revisions,
		"elapsed_seconds":  state.ElapsedSeconds,
	}
	if msg != nil {
		fields["error_code"] = code
		fields["error"] = *msg
		telemetry.ErrorCtx(ctx, "analysis.status", fields)
	} else {
		telemetry.InfoCtx(ctx, "analysis.status", fields)
	}
	return nil
}

// Get returns a record by ID.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	if strings.TrimSpace(id) == "" {
		return Record{}, fmt.Errorf("%w: analysis id is required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns records newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Record, error) {
	return s.Repo.List(ctx, limit, offset)
}

func (s *Service) dispatch(ctx context.Context, id string) error {
	if s.Queue == nil {
		go func() {
			if err := s.ProcessAnalysis(detached(ctx), id); err != nil {
				telemetry.Error("analysis.process_failed", map[string]any{"analysis_id": id, "error": err.Error()})
			}
		}()
		return nil
	}
	msg := queue.NewMessage(id, requestIDFromContext(ctx), s.now())
	if err := s.Queue.Send(ctx, msg); err != nil {
		return fmt.Errorf("enqueue analysis: %w", err)
	}
	return nil
}

func checkSize(size int64) error {
	if size < MinUploadBytes {
		return fmt.Errorf("%w: file is smaller than %d bytes", ErrInvalidInput, MinUploadBytes)
	}
	if size > MaxUploadBytes {
		return fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, MaxUploadBytes)
	}
	return nil
}

func resumable(status workflow.Status) bool {
	switch status {
	case workflow.StatusAwaitingFeedback, workflow.StatusAnalysisCompleted, workflow.StatusAnalysisFailed:
		return true
	}
	return false
}

// failureOf returns the error code and message to store with state, or
// ("", nil) for a successful or paused run.
func failureOf(state *workflow.State, runErr error) (string, *string) {
	if runErr != nil {
		code, _ := classifyFailure(runErr)
		msg := sanitizeError(runErr)
		return code, &msg
	}
	if !state.Status.IsFailure() || len(state.Errors) == 0 {
		return "", nil
	}
	last := errors.New(state.Errors[len(state.Errors)-1])
	code, _ := classifyFailure(last)
	msg := sanitizeError(last)
	return code, &msg
}

// classifyFailure maps a run error to a stored code and whether a fresh
// submission could succeed.
func classifyFailure(err error) (string, bool) {
	if err == nil {
		return ErrorCodeInternal, false
	}
	var verr *workflow.ValidationError
	switch {
	case errors.Is(err, workflow.ErrTimeout):
		return ErrorCodeTimeout, true
	case errors.As(err, &verr):
		return ErrorCodeValidation, false
	case errors.Is(err, workflow.ErrNotResumable):
		return ErrorCodeValidation, false
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeLLMTimeout, true
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "workflow timed out"):
		return ErrorCodeTimeout, true
	case strings.Contains(msg, "revision limit"):
		return ErrorCodeRevisionLimit, false
	case strings.Contains(msg, "file not found"),
		strings.Contains(msg, "not a pdf"),
		strings.Contains(msg, "no text could be extracted"),
		strings.Contains(msg, "extract"):
		return ErrorCodeExtraction, false
	case strings.Contains(msg, "provider error"):
		return ErrorCodeLLMProvider, true
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return ErrorCodeLLMTimeout, true
	case strings.Contains(msg, "failed validation"),
		strings.Contains(msg, "decode model output"),
		strings.Contains(msg, "no json payload"),
		strings.Contains(msg, "truncated"),
		strings.Contains(msg, "generative calls"):
		return ErrorCodeLLMOutput, true
	case strings.Contains(msg, "storage"), strings.Contains(msg, "save state"):
		return ErrorCodeStorage, true
	}
	return ErrorCodeInternal, false
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	return util.Truncate(msg, maxLen)
}
