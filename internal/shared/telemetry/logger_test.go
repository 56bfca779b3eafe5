package telemetry

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"testing"
)

func captureStdout(t *testing.T, fn func()) []byte {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = orig
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("read: %v", err)
	}
	return buf.Bytes()
}

func TestInfoWritesJSONLine(t *testing.T) {
	out := captureStdout(t, func() {
		Info("workflow.stage", map[string]any{"stage": "analysis", "calls_used": 2})
	})

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(out), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", out, err)
	}
	if entry["msg"] != "workflow.stage" {
		t.Fatalf("msg = %v", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Fatalf("level = %v", entry["level"])
	}
	if entry["stage"] != "analysis" {
		t.Fatalf("stage = %v", entry["stage"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("missing ts in %v", entry)
	}
}

func TestErrorLevel(t *testing.T) {
	out := captureStdout(t, func() {
		Error("workflow.failed", nil)
	})
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(out), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["level"] != "error" {
		t.Fatalf("level = %v", entry["level"])
	}
}
