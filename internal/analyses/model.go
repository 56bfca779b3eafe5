package analyses

import (
	"time"

	"script-backend/internal/breakdown"
	"script-backend/internal/workflow"
)

// Job statuses used before a workflow run has produced a state.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
)

// Record is one uploaded script and the latest terminal workflow state for it.
type Record struct {
	ID                string             `json:"id"`
	FileName          string             `json:"fileName"`
	FileSizeBytes     int64              `json:"fileSizeBytes"`
	StorageKey        string             `json:"storageKey"`
	ForceReview       bool               `json:"forceReview"`
	Status            string             `json:"status"`
	State             *workflow.State    `json:"state,omitempty"`
	PendingFeedback   *workflow.Feedback `json:"pendingFeedback,omitempty"`
	Summary           breakdown.Summary  `json:"summary"`
	CallsUsed         int                `json:"callsUsed"`
	ProcessingSeconds float64            `json:"processingSeconds"`
	ErrorCode         string             `json:"errorCode,omitempty"`
	ErrorMessage      *string            `json:"errorMessage,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// Busy reports whether a run is queued or in flight.
func (r Record) Busy() bool {
	return r.Status == StatusQueued || r.Status == StatusProcessing
}

// claimable reports whether a run may take r: it is queued, or its last run
// stopped updating before staleBefore.
func claimable(r Record, staleBefore time.Time) bool {
	switch r.Status {
	case StatusQueued:
		return true
	case StatusProcessing:
		return r.UpdatedAt.Before(staleBefore)
	}
	return false
}

// applyState copies a finished workflow state and its derived columns onto r.
func (r *Record) applyState(s *workflow.State, code string, msg *string, now time.Time) {
	r.State = s
	r.Status = string(s.Status)
	r.PendingFeedback = nil
	r.Summary = breakdown.Summarize(s.Analysis)
	r.CallsUsed = s.TotalCallsUsed
	r.ProcessingSeconds = s.ElapsedSeconds
	r.ErrorCode = code
	r.ErrorMessage = msg
	r.UpdatedAt = now
}
