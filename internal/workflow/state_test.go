package workflow

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"script-backend/internal/breakdown/breakdowntest"
)

func TestStateRoundTrip(t *testing.T) {
	s := NewState("scripts/pilot.pdf", true, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	s.Analysis = breakdowntest.Sample(5, 320.5)
	s.Status = StatusAwaitingFeedback
	s.Errors = []string{"upstream unavailable"}
	s.CallsUsed = 2
	s.TotalCallsUsed = 3
	s.Feedback = &Feedback{Text: "ok", Approved: true}
	s.finish(s.StartedAt.Add(90 * time.Second))

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := DecodeState(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != s.Status || got.CallsUsed != s.CallsUsed {
		t.Fatalf("status/calls = %s/%d", got.Status, got.CallsUsed)
	}
	if !reflect.DeepEqual(got.Errors, s.Errors) {
		t.Fatalf("errors = %v", got.Errors)
	}
	if !reflect.DeepEqual(got.Analysis, s.Analysis) {
		t.Fatalf("analysis differs after round trip")
	}
	if got.ElapsedSeconds != 90 {
		t.Fatalf("elapsed = %v", got.ElapsedSeconds)
	}
}

func TestDecodeStateRejectsUnknownStatus(t *testing.T) {
	if _, err := DecodeState([]byte(`{"document_path":"a.pdf","status":"paused"}`)); err == nil {
		t.Fatalf("expected error")
	}
	got, err := DecodeState([]byte(`{"document_path":"a.pdf","status":"completed","analysis":{}}`))
	if err != nil {
		t.Fatalf("completed should decode: %v", err)
	}
	if got.Errors == nil {
		t.Fatalf("errors should decode to an empty list")
	}
}

func TestCheck(t *testing.T) {
	ok := NewState("a.pdf", false, time.Now())
	ok.Status = StatusAnalysisCompleted
	ok.Analysis = breakdowntest.Sample(1, 1)
	if err := ok.Check(); err != nil {
		t.Fatalf("valid state: %v", err)
	}

	cases := map[string]*State{
		"failed without errors":  {DocumentPath: "a.pdf", Status: StatusFailed},
		"completed without data": {DocumentPath: "a.pdf", Status: StatusAnalysisCompleted},
		"unknown status":         {DocumentPath: "a.pdf", Status: "paused"},
		"missing path":           {Status: StatusStarted},
		"failed with analysis":   {DocumentPath: "a.pdf", Status: StatusAnalysisFailed, Errors: []string{"x"}, Analysis: breakdowntest.Sample(1, 1)},
	}
	for name, s := range cases {
		var verr *ValidationError
		if err := s.Check(); !errors.As(err, &verr) {
			t.Fatalf("%s: err = %v", name, err)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewState("a.pdf", false, time.Now())
	s.Feedback = &Feedback{Text: "a"}
	c := s.Clone()
	c.appendError("boom")
	c.Feedback.Text = "b"
	if len(s.Errors) != 0 || s.Feedback.Text != "a" {
		t.Fatalf("clone shares mutable fields")
	}
}
