package analyses

import (
	"context"
	"time"

	"script-backend/internal/workflow"
)

// Repo defines persistence operations for script analyses.
type Repo interface {
	Create(ctx context.Context, rec Record) error
	GetByID(ctx context.Context, id string) (Record, error)
	// Claim moves a queued record to processing, or takes over a processing
	// record last touched before staleBefore. It reports false when another
	// run holds the record or it is not waiting to run.
	Claim(ctx context.Context, id string, staleBefore time.Time) (bool, error)
	// SaveState stores a finished run in one write and clears pending feedback.
	SaveState(ctx context.Context, id string, s *workflow.State, errorCode string, errorMessage *string) error
	// SetFailure marks a run failed when no workflow state could be produced.
	SetFailure(ctx context.Context, id, errorCode, errorMessage string) error
	// SetPendingFeedback queues feedback for the next worker run. It reports
	// false when the record is no longer waiting on a reviewer.
	SetPendingFeedback(ctx context.Context, id string, fb workflow.Feedback) (bool, error)
	List(ctx context.Context, limit, offset int) ([]Record, error)
}
