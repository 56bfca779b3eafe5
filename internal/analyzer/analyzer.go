// Package analyzer turns script text into a structured breakdown with a
// single generative model call.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"script-backend/internal/breakdown"
	"script-backend/internal/costrates"
	"script-backend/internal/llm"
	"script-backend/internal/shared/telemetry"
	"script-backend/internal/workflow"
)

// callsPerAttempt is the analyzer's share of the per-attempt call budget.
const callsPerAttempt = 1

// DefaultMaxChars caps the screenplay text sent to the model.
const DefaultMaxChars = 400_000

// Analyzer implements workflow.Analyzer over an llm.Client.
type Analyzer struct {
	client   llm.Client
	rates    costrates.Source
	maxChars int
}

// New builds an Analyzer. rates may be nil.
func New(client llm.Client, rates costrates.Source) *Analyzer {
	return &Analyzer{client: client, rates: rates, maxChars: DefaultMaxChars}
}

// Analyze makes exactly one model call and returns a validated breakdown.
func (a *Analyzer) Analyze(ctx context.Context, in workflow.AnalyzeInput) (workflow.AnalyzeResult, error) {
	card := a.rateCard(ctx)
	budget := llm.NewBudget(a.client, callsPerAttempt, "analysis")

	gen, err := budget.Generate(ctx, llm.Request{
		System: systemPrompt,
		User:   buildUserPrompt(in, card, a.maxChars),
		JSON:   true,
	})
	result := workflow.AnalyzeResult{Calls: budget.Used()}
	if err != nil {
		return result, fmt.Errorf("generate analysis: %w", err)
	}

	analysis, err := decode(gen)
	if err != nil {
		return result, err
	}
	breakdown.Normalize(analysis)
	if analysis.Script.TotalWords == 0 {
		analysis.Script.TotalWords = in.WordCount
	}
	if err := breakdown.Validate(analysis); err != nil {
		return result, fmt.Errorf("model output failed validation: %w", err)
	}
	result.Analysis = analysis
	return result, nil
}

func (a *Analyzer) rateCard(ctx context.Context) *costrates.Card {
	if a.rates == nil {
		return nil
	}
	card, err := a.rates.Card(ctx)
	if err != nil {
		telemetry.Warn("analyzer.rates_unavailable", map[string]any{"error": err.Error()})
		return nil
	}
	return &card
}

// envelope accepts models that wrap the breakdown in a named field.
type envelope struct {
	ComprehensiveAnalysis json.RawMessage `json:"comprehensive_analysis"`
	Analysis              json.RawMessage `json:"analysis"`
}

func decode(gen llm.Generation) (*breakdown.Analysis, error) {
	payload, err := gen.Payload()
	if err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err == nil {
		switch {
		case isObject(env.ComprehensiveAnalysis):
			payload = env.ComprehensiveAnalysis
		case isObject(env.Analysis):
			payload = env.Analysis
		}
	}
	var out breakdown.Analysis
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	return &out, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

var _ workflow.Analyzer = (*Analyzer)(nil)
