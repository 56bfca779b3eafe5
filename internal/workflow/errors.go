package workflow

import (
	"errors"
	"strings"
)

var (
	// ErrTimeout is returned when a run exceeds its deadline.
	ErrTimeout = errors.New("workflow timed out")
	// ErrNotResumable is returned when feedback arrives for a run that is
	// not waiting on it.
	ErrNotResumable = errors.New("workflow state is not awaiting feedback")
	// ErrNilState is returned when a nil prior state is resumed.
	ErrNilState = errors.New("workflow state is nil")
)

// StageKind names the dependency that failed inside the analysis stage.
type StageKind string

const (
	KindExtraction StageKind = "extraction"
	KindAnalysis   StageKind = "analysis"
)

// StageError wraps a dependency failure. Its message is the dependency's
// message so recorded errors read exactly as the dependency reported them.
type StageError struct {
	Kind StageKind
	Err  error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return string(e.Kind) + " failed"
	}
	return e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// ValidationError reports a structurally malformed terminal state.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid workflow state: " + strings.Join(e.Problems, "; ")
}
