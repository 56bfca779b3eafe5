package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"script-backend/internal/shared/metrics"
	"script-backend/internal/shared/telemetry"
)

var tracer = otel.Tracer("script-backend/internal/workflow")

const (
	DefaultTimeout      = 300 * time.Second
	DefaultMaxRevisions = 3
)

// Options tune an Orchestrator. Zero values take the defaults.
type Options struct {
	Timeout      time.Duration
	MaxRevisions int
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRevisions <= 0 {
		o.MaxRevisions = DefaultMaxRevisions
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Orchestrator sequences the analysis stage and the feedback gate under one
// deadline. It holds no per-run state and is safe for concurrent use.
type Orchestrator struct {
	stage AnalysisStage
	gate  FeedbackGate
	opts  Options
}

// New builds an Orchestrator over the given collaborators.
func New(extractor Extractor, analyzer Analyzer, opts Options) *Orchestrator {
	return &Orchestrator{
		stage: AnalysisStage{Extractor: extractor, Analyzer: analyzer},
		opts:  opts.withDefaults(),
	}
}

// StartAnalysis runs a fresh analysis of documentPath. The run may stop at
// awaiting_human_feedback; resume it with ResumeWithFeedback.
func (o *Orchestrator) StartAnalysis(ctx context.Context, documentPath string, forceReview bool) (*State, error) {
	s := NewState(documentPath, forceReview, o.opts.Now())
	return o.run(ctx, s, false)
}

// ResumeWithFeedback replays a stored state with a reviewer's response at
// the gate. A failed analysis has nothing to approve, so any response to it
// starts a revision with the feedback text as guidance.
func (o *Orchestrator) ResumeWithFeedback(ctx context.Context, prior *State, fb Feedback) (*State, error) {
	if prior == nil {
		return nil, ErrNilState
	}
	if err := fb.Validate(); err != nil {
		return nil, err
	}
	s := prior.Clone()
	s.EndedAt = nil
	s.ElapsedSeconds = 0
	s.Feedback = &fb

	switch prior.Status {
	case StatusAwaitingFeedback, StatusAnalysisCompleted, StatusAnalysisFailed:
		return o.run(ctx, s, true)
	default:
		return nil, fmt.Errorf("%w: status is %s", ErrNotResumable, prior.Status)
	}
}

// run drives s to a terminal status on a private copy, publishing a snapshot
// after every stage so a timeout can report the progress made so far.
func (o *Orchestrator) run(ctx context.Context, s *State, atGate bool) (*State, error) {
	ctx, span := tracer.Start(ctx, "workflow.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("workflow.document_path", s.DocumentPath),
		attribute.Bool("workflow.resume", atGate),
	)
	metrics.IncWorkflowStarted()
	began := o.opts.Now()

	runCtx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	snap := &snapshot{state: s.Clone()}
	done := make(chan *State, 1)
	go func() {
		done <- o.loop(runCtx, s, atGate, snap)
	}()

	var (
		final  *State
		runErr error
	)
	select {
	case final = <-done:
		if err := runCtx.Err(); err != nil && ctx.Err() == nil {
			final, runErr = o.timedOut(final)
		} else if ctx.Err() != nil {
			final, runErr = canceled(final, ctx.Err())
		}
	case <-runCtx.Done():
		if ctx.Err() != nil {
			final, runErr = canceled(snap.get(), ctx.Err())
		} else {
			final, runErr = o.timedOut(snap.get())
		}
	}

	final.finish(o.opts.Now())
	o.record(ctx, final, began)
	if runErr != nil {
		span.SetStatus(codes.Error, runErr.Error())
		return final, runErr
	}
	if err := final.Check(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		telemetry.ErrorCtx(ctx, "workflow.invalid_state", map[string]any{
			"document_path": final.DocumentPath,
			"status":        string(final.Status),
			"error":         err.Error(),
		})
		return final, err
	}
	return final, nil
}

func (o *Orchestrator) loop(ctx context.Context, s *State, atGate bool, snap *snapshot) *State {
	for {
		// The caller has already reported a timeout; spend nothing more.
		if ctx.Err() != nil {
			return s
		}
		if !atGate {
			o.stage.Run(ctx, s)
			snap.set(s)
			if s.Status == StatusAnalysisFailed {
				return s
			}
		}
		atGate = false

		o.gate.Run(ctx, s)
		snap.set(s)
		if s.Status != StatusNeedsRevision {
			return s
		}
		if s.Revisions >= o.opts.MaxRevisions {
			s.fail(fmt.Sprintf("revision limit of %d reached", o.opts.MaxRevisions))
			return s
		}
		// The decision is consumed; the revised analysis goes through review again.
		s.Feedback = nil
		s.Revisions++
		metrics.IncRevision()
		telemetry.InfoCtx(ctx, "workflow.revision", map[string]any{
			"document_path": s.DocumentPath,
			"revision":      s.Revisions,
		})
	}
}

func (o *Orchestrator) timedOut(s *State) (*State, error) {
	err := fmt.Errorf("%w after %s", ErrTimeout, o.opts.Timeout)
	s.fail(err.Error())
	return s, err
}

func canceled(s *State, cause error) (*State, error) {
	err := fmt.Errorf("workflow canceled: %w", cause)
	s.fail(err.Error())
	return s, err
}

func (o *Orchestrator) record(ctx context.Context, s *State, began time.Time) {
	durationMs := float64(o.opts.Now().Sub(began).Milliseconds())
	metrics.IncWorkflowFinished(string(s.Status))
	metrics.ObserveWorkflowDurationMs(durationMs)
	fields := map[string]any{
		"document_path":    s.DocumentPath,
		"status":           string(s.Status),
		"calls_used":       s.CallsUsed,
		"total_calls_used": s.TotalCallsUsed,
		"revisions":        s.Revisions,
		"duration_ms":      durationMs,
	}
	if s.Status.IsFailure() {
		fields["errors"] = len(s.Errors)
		telemetry.ErrorCtx(ctx, "workflow.finished", fields)
		return
	}
	telemetry.InfoCtx(ctx, "workflow.finished", fields)
}

// snapshot is the last consistent copy of a running state.
type snapshot struct {
	mu    sync.Mutex
	state *State
}

func (p *snapshot) set(s *State) {
	c := s.Clone()
	p.mu.Lock()
	p.state = c
	p.mu.Unlock()
}

func (p *snapshot) get() *State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Clone()
}

// IsTimeout reports whether err came from a run deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
