package analyses

import (
	"context"
	"sort"
	"sync"
	"time"

	"script-backend/internal/workflow"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Record
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID: make(map[string]Record),
		now:  time.Now,
	}
}

// Create stores the record.
func (r *MemoryRepo) Create(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[rec.ID] = copyRecord(rec)
	return nil
}

// GetByID returns a record by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

// Claim moves a queued or abandoned record to processing.
func (r *MemoryRepo) Claim(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	return r.updateIf(ctx, id, func(rec Record) bool {
		return claimable(rec, staleBefore)
	}, func(rec *Record) {
		rec.Status = StatusProcessing
	})
}

// SaveState stores a finished workflow state.
func (r *MemoryRepo) SaveState(ctx context.Context, id string, s *workflow.State, errorCode string, errorMessage *string) error {
	now := r.now().UTC()
	return r.update(ctx, id, func(rec *Record) {
		rec.applyState(s.Clone(), errorCode, errorMessage, now)
	})
}

// SetFailure marks the record failed with the given reason.
func (r *MemoryRepo) SetFailure(ctx context.Context, id, errorCode, errorMessage string) error {
	return r.update(ctx, id, func(rec *Record) {
		rec.Status = string(workflow.StatusFailed)
		rec.PendingFeedback = nil
		rec.ErrorCode = errorCode
		rec.ErrorMessage = &errorMessage
	})
}

// SetPendingFeedback records feedback and requeues a settled record.
func (r *MemoryRepo) SetPendingFeedback(ctx context.Context, id string, fb workflow.Feedback) (bool, error) {
	return r.updateIf(ctx, id, func(rec Record) bool {
		return resumable(workflow.Status(rec.Status))
	}, func(rec *Record) {
		rec.PendingFeedback = &fb
		rec.Status = StatusQueued
	})
}

// List returns records newest first with limit/offset.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	out := make([]Record, 0, len(r.byID))
	for _, rec := range r.byID {
		out = append(out, copyRecord(rec))
	}
	r.mu.RUnlock()

	if offset >= len(out) {
		return []Record{}, nil
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

func (r *MemoryRepo) update(ctx context.Context, id string, fn func(*Record)) error {
	_, err := r.updateIf(ctx, id, nil, fn)
	return err
}

// updateIf applies fn under the write lock when guard accepts the record.
func (r *MemoryRepo) updateIf(ctx context.Context, id string, guard func(Record) bool, fn func(*Record)) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if guard != nil && !guard(rec) {
		return false, nil
	}
	fn(&rec)
	rec.UpdatedAt = r.now().UTC()
	r.byID[id] = rec
	return true, nil
}

func copyRecord(rec Record) Record {
	rec.State = rec.State.Clone()
	if rec.PendingFeedback != nil {
		fb := *rec.PendingFeedback
		rec.PendingFeedback = &fb
	}
	if rec.ErrorMessage != nil {
		msg := *rec.ErrorMessage
		rec.ErrorMessage = &msg
	}
	return rec
}

var _ Repo = (*MemoryRepo)(nil)
