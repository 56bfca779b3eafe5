package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// serveLogged runs one request and returns the log lines it wrote.
func serveLogged(t *testing.T, router *gin.Engine, req *http.Request) []map[string]any {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	router.ServeHTTP(httptest.NewRecorder(), req)
	_ = w.Close()
	os.Stdout = orig

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("read log output: %v", err)
	}
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log json %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func loggedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Logging())
	router.GET("/api/v1/analyses/:id", func(c *gin.Context) {
		if c.Param("id") == "missing" {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/api/v1/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func TestLoggingIncludesRequestFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/analysis-1", nil)
	req.Header.Set("X-Request-Id", "req-42")
	entries := serveLogged(t, loggedRouter(), req)
	if len(entries) == 0 {
		t.Fatal("no log line written")
	}
	entry := entries[len(entries)-1]

	want := map[string]any{
		"msg":         "request.complete",
		"level":       "info",
		"request_id":  "req-42",
		"route":       "/api/v1/analyses/:id",
		"analysis_id": "analysis-1",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Fatalf("%s = %v, want %v", k, entry[k], v)
		}
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Fatal("missing duration_ms")
	}
}

func TestLoggingWarnsOnClientError(t *testing.T) {
	entries := serveLogged(t, loggedRouter(), httptest.NewRequest(http.MethodGet, "/api/v1/analyses/missing", nil))
	if len(entries) == 0 || entries[len(entries)-1]["level"] != "warn" {
		t.Fatalf("entries = %v", entries)
	}
}

func TestLoggingSkipsHealthyProbes(t *testing.T) {
	entries := serveLogged(t, loggedRouter(), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if len(entries) != 0 {
		t.Fatalf("expected no log lines, got %v", entries)
	}
}
