package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"script-backend/internal/breakdown"
	"script-backend/internal/workflow"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `
SELECT id, file_name, file_size_bytes, storage_key, force_review, status, state, pending_feedback,
       total_scenes, total_characters, total_locations, estimated_budget, budget_category,
       calls_used, processing_seconds, error_code, error_message, created_at, updated_at
FROM script_analyses`

// Create inserts a new record.
func (r *PGRepo) Create(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO script_analyses (
	id, file_name, file_size_bytes, storage_key, force_review, status, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	_, err := r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.FileName,
		rec.FileSizeBytes,
		rec.StorageKey,
		rec.ForceReview,
		rec.Status,
		rec.CreatedAt,
	)
	return err
}

// GetByID returns a record by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Record, error) {
	row := r.DB.QueryRowContext(ctx, selectColumns+`
WHERE id = $1
LIMIT 1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// Claim moves a queued or abandoned record to processing in one guarded
// update, so only one worker wins a redelivered message.
func (r *PGRepo) Claim(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	const query = `
UPDATE script_analyses
SET status = $1,
    updated_at = now()
WHERE id = $2::uuid
  AND (status = $3 OR (status = $1 AND updated_at < $4))`
	return execGuarded(ctx, r.DB, query, StatusProcessing, id, StatusQueued, staleBefore)
}

// SaveState stores a finished workflow state with its summary columns.
func (r *PGRepo) SaveState(ctx context.Context, id string, s *workflow.State, errorCode string, errorMessage *string) error {
	const query = `
UPDATE script_analyses
SET status = $1,
    state = $2::jsonb,
    pending_feedback = NULL,
    total_scenes = $3,
    total_characters = $4,
    total_locations = $5,
    estimated_budget = $6,
    budget_category = NULLIF($7::text, ''),
    calls_used = $8,
    processing_seconds = $9,
    error_code = NULLIF($10::text, ''),
    error_message = $11::text,
    updated_at = now()
WHERE id = $12::uuid`

	if s == nil {
		return workflow.ErrNilState
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	sum := breakdown.Summarize(s.Analysis)
	return execOne(ctx, r.DB, query,
		string(s.Status),
		payload,
		sum.TotalScenes,
		sum.TotalCharacters,
		sum.TotalLocations,
		sum.EstimatedBudget,
		sum.BudgetCategory,
		s.TotalCallsUsed,
		s.ElapsedSeconds,
		errorCode,
		errorMessage,
		id,
	)
}

// SetFailure marks a run failed without a workflow state.
func (r *PGRepo) SetFailure(ctx context.Context, id, errorCode, errorMessage string) error {
	const query = `
UPDATE script_analyses
SET status = $1,
    pending_feedback = NULL,
    error_code = NULLIF($2::text, ''),
    error_message = $3::text,
    updated_at = now()
WHERE id = $4::uuid`
	return execOne(ctx, r.DB, query, string(workflow.StatusFailed), errorCode, errorMessage, id)
}

// SetPendingFeedback stores feedback and requeues the record if it is still
// waiting on a reviewer.
func (r *PGRepo) SetPendingFeedback(ctx context.Context, id string, fb workflow.Feedback) (bool, error) {
	const query = `
UPDATE script_analyses
SET pending_feedback = $1::jsonb,
    status = $2,
    updated_at = now()
WHERE id = $3::uuid
  AND status IN ($4, $5, $6)`

	payload, err := json.Marshal(fb)
	if err != nil {
		return false, fmt.Errorf("encode feedback: %w", err)
	}
	return execGuarded(ctx, r.DB, query, payload, StatusQueued, id,
		string(workflow.StatusAwaitingFeedback),
		string(workflow.StatusAnalysisCompleted),
		string(workflow.StatusAnalysisFailed),
	)
}

// List returns records ordered newest-first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.DB.QueryContext(ctx, selectColumns+`
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var state sql.NullString
	var pending sql.NullString
	var totalScenes sql.NullInt64
	var totalCharacters sql.NullInt64
	var totalLocations sql.NullInt64
	var estimatedBudget sql.NullFloat64
	var budgetCategory sql.NullString
	var callsUsed sql.NullInt64
	var processingSeconds sql.NullFloat64
	var errorCode sql.NullString
	var errorMessage sql.NullString
	if err := row.Scan(
		&rec.ID,
		&rec.FileName,
		&rec.FileSizeBytes,
		&rec.StorageKey,
		&rec.ForceReview,
		&rec.Status,
		&state,
		&pending,
		&totalScenes,
		&totalCharacters,
		&totalLocations,
		&estimatedBudget,
		&budgetCategory,
		&callsUsed,
		&processingSeconds,
		&errorCode,
		&errorMessage,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return Record{}, err
	}
	if state.Valid {
		s, err := workflow.DecodeState([]byte(state.String))
		if err != nil {
			return Record{}, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		rec.State = s
	}
	if pending.Valid {
		var fb workflow.Feedback
		if err := json.Unmarshal([]byte(pending.String), &fb); err != nil {
			return Record{}, fmt.Errorf("record %s: decode pending feedback: %w", rec.ID, err)
		}
		rec.PendingFeedback = &fb
	}
	rec.Summary = breakdown.Summary{
		TotalScenes:     int(totalScenes.Int64),
		TotalCharacters: int(totalCharacters.Int64),
		TotalLocations:  int(totalLocations.Int64),
		EstimatedBudget: estimatedBudget.Float64,
		BudgetCategory:  budgetCategory.String,
	}
	rec.CallsUsed = int(callsUsed.Int64)
	rec.ProcessingSeconds = processingSeconds.Float64
	rec.ErrorCode = errorCode.String
	if errorMessage.Valid {
		rec.ErrorMessage = &errorMessage.String
	}
	return rec, nil
}

func execOne(ctx context.Context, db *sql.DB, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// execGuarded runs a conditional update and reports whether a row changed.
func execGuarded(ctx context.Context, db *sql.DB, query string, args ...any) (bool, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var _ Repo = (*PGRepo)(nil)
