package workflow

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"script-backend/internal/shared/telemetry"
)

// Review reasons.
const (
	ReasonNoAnalysis  = "no_analysis"
	ReasonNoScenes    = "no_scenes"
	ReasonZeroCost    = "zero_total_cost"
	ReasonForceReview = "force_review"
)

// FeedbackGate decides whether a human must review the analysis and
// applies a recorded review decision. It reads s.Feedback but never clears
// it, so repeated runs without new feedback agree.
type FeedbackGate struct{}

// ReviewReason returns why s needs review, or "" when it does not.
func (FeedbackGate) ReviewReason(s *State) string {
	switch {
	case s.Analysis == nil:
		return ReasonNoAnalysis
	case s.Analysis.SceneCount() == 0:
		return ReasonNoScenes
	case s.Analysis.TotalCost() == 0:
		return ReasonZeroCost
	case s.ForceReview:
		return ReasonForceReview
	}
	return ""
}

// Run sets the post-review status of s.
func (g FeedbackGate) Run(ctx context.Context, s *State) {
	_, span := tracer.Start(ctx, "workflow.feedback_gate")
	defer span.End()

	reason := g.ReviewReason(s)
	switch {
	case s.Feedback != nil:
		s.ReviewRequired = false
		s.ReviewReason = ""
		if s.Feedback.Approved && s.Analysis != nil {
			s.Status = StatusCompletedWithApproval
		} else {
			s.Status = StatusNeedsRevision
			if s.Feedback.Text != "" {
				s.RevisionNotes = s.Feedback.Text
			}
		}
	case reason != "":
		s.ReviewRequired = true
		s.ReviewReason = reason
		s.Status = StatusAwaitingFeedback
	default:
		s.ReviewRequired = false
		s.ReviewReason = ""
		s.Status = StatusAnalysisCompleted
	}

	span.SetAttributes(
		attribute.String("gate.status", string(s.Status)),
		attribute.String("gate.review_reason", reason),
	)
	telemetry.InfoCtx(ctx, "workflow.stage", map[string]any{
		"stage":         "feedback_gate",
		"document_path": s.DocumentPath,
		"status":        string(s.Status),
		"review_reason": reason,
		"has_feedback":  s.Feedback != nil,
	})
}
