package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"script-backend/internal/breakdown"
	"script-backend/internal/shared/metrics"
	"script-backend/internal/shared/telemetry"
)

// Generative calls billed per analysis attempt. Extraction is presumed to
// have consumed the first call whenever the attempt fails, whatever actually
// ran; this is a billing approximation, not a measurement.
const (
	callsOnSuccess = 2
	callsOnFailure = 1
	// analyzerCallBudget is what the analyzer may spend of callsOnSuccess.
	analyzerCallBudget = 1
)

// CallsPerRun is the generative call budget of one analysis attempt.
const CallsPerRun = callsOnSuccess

// Document is extracted script text with its counts.
type Document struct {
	Text      string
	WordCount int
	PageCount int
}

// Extractor turns a stored document into text.
type Extractor interface {
	Extract(ctx context.Context, path string) (Document, error)
}

// AnalyzeInput is what the analyzer sees for one attempt.
type AnalyzeInput struct {
	Document
	// RevisionNotes carries reviewer guidance from a rejected attempt.
	RevisionNotes string
}

// AnalyzeResult is the analyzer's single result contract.
type AnalyzeResult struct {
	Analysis *breakdown.Analysis
	// Calls is the number of generative calls the analyzer made.
	Calls int
}

// Analyzer produces a structured breakdown from script text.
type Analyzer interface {
	Analyze(ctx context.Context, in AnalyzeInput) (AnalyzeResult, error)
}

// AnalysisStage runs extraction then analysis, once each, with no retry.
type AnalysisStage struct {
	Extractor Extractor
	Analyzer  Analyzer
}

// Run advances s to analysis_completed or analysis_failed.
func (st AnalysisStage) Run(ctx context.Context, s *State) {
	ctx, span := tracer.Start(ctx, "workflow.analysis_stage")
	defer span.End()

	analysis, doc, err := st.analyze(ctx, s)
	if err != nil {
		kind := KindAnalysis
		var se *StageError
		if errors.As(err, &se) {
			kind = se.Kind
		}
		s.appendError(err.Error())
		s.Analysis = nil
		s.Status = StatusAnalysisFailed
		s.CallsUsed = callsOnFailure
		s.TotalCallsUsed += callsOnFailure
		metrics.IncStageError(string(kind))
		metrics.AddGenerativeCalls(callsOnFailure)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("stage.error_kind", string(kind)))
		telemetry.ErrorCtx(ctx, "workflow.stage", map[string]any{
			"stage":         "analysis",
			"document_path": s.DocumentPath,
			"status":        string(s.Status),
			"error_kind":    string(kind),
			"error":         err.Error(),
		})
		return
	}

	s.Analysis = analysis
	s.Status = StatusAnalysisCompleted
	s.CallsUsed = callsOnSuccess
	s.TotalCallsUsed += callsOnSuccess
	s.WordCount = doc.WordCount
	s.PageCount = doc.PageCount
	metrics.AddGenerativeCalls(callsOnSuccess)
	span.SetAttributes(
		attribute.Int("analysis.scenes", analysis.SceneCount()),
		attribute.Float64("analysis.total_cost", analysis.TotalCost()),
	)
	telemetry.InfoCtx(ctx, "workflow.stage", map[string]any{
		"stage":         "analysis",
		"document_path": s.DocumentPath,
		"status":        string(s.Status),
		"scenes":        analysis.SceneCount(),
		"words":         doc.WordCount,
		"pages":         doc.PageCount,
	})
}

func (st AnalysisStage) analyze(ctx context.Context, s *State) (*breakdown.Analysis, Document, error) {
	if st.Extractor == nil || st.Analyzer == nil {
		return nil, Document{}, &StageError{Kind: KindAnalysis, Err: errors.New("analysis stage is not configured")}
	}
	doc, err := st.Extractor.Extract(ctx, s.DocumentPath)
	if err != nil {
		return nil, doc, &StageError{Kind: KindExtraction, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, doc, &StageError{Kind: KindExtraction, Err: err}
	}
	res, err := st.Analyzer.Analyze(ctx, AnalyzeInput{Document: doc, RevisionNotes: s.RevisionNotes})
	if err != nil {
		return nil, doc, &StageError{Kind: KindAnalysis, Err: err}
	}
	if res.Calls > analyzerCallBudget {
		return nil, doc, &StageError{Kind: KindAnalysis, Err: fmt.Errorf("analyzer used %d generative calls, budget is %d", res.Calls, analyzerCallBudget)}
	}
	if res.Analysis == nil {
		return nil, doc, &StageError{Kind: KindAnalysis, Err: errors.New("analyzer returned no analysis")}
	}
	if err := breakdown.Validate(res.Analysis); err != nil {
		return nil, doc, &StageError{Kind: KindAnalysis, Err: fmt.Errorf("analysis failed validation: %w", err)}
	}
	return res.Analysis, doc, nil
}
