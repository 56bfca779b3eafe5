package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"script-backend/internal/breakdown"
	"script-backend/internal/workflow"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// report is the short form printed after each command.
type report struct {
	Status         workflow.Status   `json:"status"`
	ReviewReason   string            `json:"review_reason,omitempty"`
	CallsUsed      int               `json:"calls_used"`
	TotalCallsUsed int               `json:"total_calls_used"`
	Revisions      int               `json:"revisions"`
	ElapsedSeconds float64           `json:"elapsed_seconds"`
	Summary        breakdown.Summary `json:"summary"`
	Errors         []string          `json:"errors,omitempty"`
	StateFile      string            `json:"state_file,omitempty"`
}

func checkFormat(format string) error {
	switch format {
	case formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown format %q (want json or yaml)", format)
}

// finish saves the state, prints the report and turns failed runs into a
// non-zero exit.
func finish(w io.Writer, state *workflow.State, runErr error, out, format string) error {
	if state == nil {
		if runErr != nil {
			return runErr
		}
		return fmt.Errorf("workflow returned no state")
	}
	if out != "" {
		if err := writeState(out, state); err != nil {
			return err
		}
	}
	if err := printReport(w, newReport(state, out), format); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if state.Status.IsFailure() {
		return fmt.Errorf("analysis ended in %s", state.Status)
	}
	return nil
}

func newReport(s *workflow.State, stateFile string) report {
	return report{
		Status:         s.Status,
		ReviewReason:   s.ReviewReason,
		CallsUsed:      s.CallsUsed,
		TotalCallsUsed: s.TotalCallsUsed,
		Revisions:      s.Revisions,
		ElapsedSeconds: s.ElapsedSeconds,
		Summary:        breakdown.Summarize(s.Analysis),
		Errors:         s.Errors,
		StateFile:      stateFile,
	}
}

func writeState(path string, s *workflow.State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// printReport renders r. YAML keys follow the JSON names.
func printReport(w io.Writer, r report, format string) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
