// Package workflow drives one script analysis through extraction, structured
// analysis and an optional human review gate.
package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"script-backend/internal/breakdown"
)

// Status is the stage marker of a workflow run.
type Status string

const (
	StatusStarted               Status = "started"
	StatusAnalysisCompleted     Status = "analysis_completed"
	StatusAnalysisFailed        Status = "analysis_failed"
	StatusAwaitingFeedback      Status = "awaiting_human_feedback"
	StatusCompletedWithApproval Status = "analysis_completed_with_approval"
	StatusNeedsRevision         Status = "analysis_needs_revision"
	StatusCompleted             Status = "completed"
	StatusFailed                Status = "failed"
)

// MaxFeedbackLength bounds the reviewer's free text.
const MaxFeedbackLength = 2000

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusStarted, StatusAnalysisCompleted, StatusAnalysisFailed, StatusAwaitingFeedback,
		StatusCompletedWithApproval, StatusNeedsRevision, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsFailure reports whether s marks a failed run.
func (s Status) IsFailure() bool {
	return s == StatusAnalysisFailed || s == StatusFailed
}

// IsSuccess reports whether s is a terminal success.
func (s Status) IsSuccess() bool {
	return s == StatusAnalysisCompleted || s == StatusCompletedWithApproval || s == StatusCompleted
}

// hasAnalysis reports whether a state in status s must carry an analysis.
func (s Status) hasAnalysis() bool {
	switch s {
	case StatusStarted, StatusAnalysisFailed, StatusFailed:
		return false
	}
	return true
}

// Feedback is a reviewer's response to a suspended run.
type Feedback struct {
	Text              string `json:"text"`
	Approved          bool   `json:"approved"`
	RequestReanalysis bool   `json:"request_reanalysis"`
}

// Validate checks reviewer input bounds.
func (f Feedback) Validate() error {
	if n := len([]rune(f.Text)); n > MaxFeedbackLength {
		return fmt.Errorf("feedback text is %d characters, limit is %d", n, MaxFeedbackLength)
	}
	return nil
}

// State is the record threaded through every stage of a run. Analysis is
// replaced wholesale and never modified in place once set.
type State struct {
	DocumentPath   string              `json:"document_path"`
	Analysis       *breakdown.Analysis `json:"analysis,omitempty"`
	Status         Status              `json:"status"`
	Errors         []string            `json:"errors"`
	CallsUsed      int                 `json:"calls_used"`
	TotalCallsUsed int                 `json:"total_calls_used"`
	Feedback       *Feedback           `json:"feedback,omitempty"`
	RevisionNotes  string              `json:"revision_notes,omitempty"`
	Revisions      int                 `json:"revisions"`
	ForceReview    bool                `json:"force_review"`
	ReviewRequired bool                `json:"review_required"`
	ReviewReason   string              `json:"review_reason,omitempty"`
	WordCount      int                 `json:"word_count,omitempty"`
	PageCount      int                 `json:"page_count,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	EndedAt        *time.Time          `json:"ended_at,omitempty"`
	ElapsedSeconds float64             `json:"elapsed_seconds,omitempty"`
}

// NewState creates a fresh state for documentPath.
func NewState(documentPath string, forceReview bool, now time.Time) *State {
	return &State{
		DocumentPath: documentPath,
		Status:       StatusStarted,
		Errors:       []string{},
		ForceReview:  forceReview,
		StartedAt:    now.UTC(),
	}
}

// DecodeState parses a persisted state and rejects unknown statuses.
func DecodeState(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode workflow state: %w", err)
	}
	if !s.Status.IsValid() {
		return nil, fmt.Errorf("decode workflow state: unknown status %q", s.Status)
	}
	if s.Errors == nil {
		s.Errors = []string{}
	}
	return &s, nil
}

// Clone returns a copy that shares only the immutable analysis.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Errors = append([]string{}, s.Errors...)
	if s.Feedback != nil {
		fb := *s.Feedback
		out.Feedback = &fb
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return &out
}

func (s *State) appendError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// fail moves s to the terminal failed status with msg recorded.
func (s *State) fail(msg string) {
	s.appendError(msg)
	s.Status = StatusFailed
	s.Analysis = nil
	s.ReviewRequired = false
}

func (s *State) finish(now time.Time) {
	end := now.UTC()
	s.EndedAt = &end
	s.ElapsedSeconds = end.Sub(s.StartedAt).Seconds()
}

// Check verifies the structural invariants of a terminal state.
func (s *State) Check() error {
	if s == nil {
		return &ValidationError{Problems: []string{"state is nil"}}
	}
	var problems []string
	if strings.TrimSpace(s.DocumentPath) == "" {
		problems = append(problems, "document_path is empty")
	}
	if !s.Status.IsValid() {
		problems = append(problems, fmt.Sprintf("status %q is not a known status", s.Status))
	} else {
		if s.Status.hasAnalysis() && s.Analysis == nil {
			problems = append(problems, fmt.Sprintf("status %s requires an analysis", s.Status))
		}
		if !s.Status.hasAnalysis() && s.Analysis != nil {
			problems = append(problems, fmt.Sprintf("status %s must not carry an analysis", s.Status))
		}
		if s.Status.IsFailure() && len(s.Errors) == 0 {
			problems = append(problems, fmt.Sprintf("status %s requires at least one error", s.Status))
		}
	}
	if s.Analysis != nil {
		if err := breakdown.Validate(s.Analysis); err != nil {
			problems = append(problems, "analysis: "+err.Error())
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
