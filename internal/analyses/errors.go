package analyses

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrBusy                  = errors.New("analysis is already queued or processing")
	ErrJobQueueNotConfigured = errors.New("job queue not configured")
)

const (
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeTimeout       = "WORKFLOW_TIMEOUT"
	ErrorCodeLLMTimeout    = "LLM_TIMEOUT"
	ErrorCodeLLMOutput     = "LLM_OUTPUT_INVALID"
	ErrorCodeLLMProvider   = "LLM_PROVIDER_ERROR"
	ErrorCodeExtraction    = "EXTRACTION_ERROR"
	ErrorCodeRevisionLimit = "REVISION_LIMIT"
	ErrorCodeStorage       = "STORAGE_ERROR"
	ErrorCodeInternal      = "INTERNAL_ERROR"
)
