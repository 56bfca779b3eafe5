package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"script-backend/internal/workflow"
)

func setupRouter(t *testing.T, q *queueStub) (*gin.Engine, *MemoryRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, repo := newTestService(t, q, &fakeRunner{})
	router := gin.New()
	NewHandler(svc).RegisterRoutes(router.Group("/api/v1"))
	return router, repo
}

func multipartUpload(t *testing.T, fileName string, body io.Reader, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return buf, w.FormDataContentType()
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestSubmitScriptAccepted(t *testing.T) {
	q := &queueStub{}
	router, repo := setupRouter(t, q)

	body, contentType := multipartUpload(t, "pilot.pdf", pdfBody(4096), map[string]string{"forceReview": "true"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scripts", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	out := decodeBody(t, resp)
	id, _ := out["analysisId"].(string)
	if id == "" || out["status"] != StatusQueued {
		t.Fatalf("unexpected response %v", out)
	}
	if loc := resp.Header().Get("Location"); loc != "/api/v1/analyses/"+id {
		t.Fatalf("unexpected Location %q", loc)
	}
	rec, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !rec.ForceReview {
		t.Fatalf("expected forceReview to be stored")
	}
	if len(q.messages) != 1 {
		t.Fatalf("expected one queued message, got %d", len(q.messages))
	}
}

func TestSubmitScriptValidation(t *testing.T) {
	router, _ := setupRouter(t, &queueStub{})

	cases := []struct {
		name     string
		fileName string
		size     int
		fields   map[string]string
	}{
		{name: "non pdf", fileName: "pilot.txt", size: 4096},
		{name: "too small", fileName: "pilot.pdf", size: 200},
		{name: "bad forceReview", fileName: "pilot.pdf", size: 4096, fields: map[string]string{"forceReview": "maybe"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartUpload(t, tc.fileName, pdfBody(tc.size), tc.fields)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/scripts", body)
			req.Header.Set("Content-Type", contentType)
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
			}
			if !strings.Contains(resp.Body.String(), "validation_error") {
				t.Fatalf("expected validation_error code, got %s", resp.Body.String())
			}
		})
	}
}

func TestSubmitScriptMissingFile(t *testing.T) {
	router, _ := setupRouter(t, &queueStub{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scripts", strings.NewReader(""))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGetAnalysisIncludesResult(t *testing.T) {
	router, repo := setupRouter(t, &queueStub{})
	seedRecord(t, repo, "a-1", awaitingState("k"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/a-1", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	out := decodeBody(t, resp)
	if out["status"] != string(workflow.StatusAwaitingFeedback) {
		t.Fatalf("unexpected status %v", out["status"])
	}
	if out["reviewReason"] != "force_review" {
		t.Fatalf("unexpected review reason %v", out["reviewReason"])
	}
	result, ok := out["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected result object, got %T", out["result"])
	}
	if _, ok := result["cost_breakdown"]; !ok {
		t.Fatalf("expected cost_breakdown in result")
	}
}

func TestGetAnalysisNotFound(t *testing.T) {
	router, _ := setupRouter(t, &queueStub{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/missing", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestListAnalyses(t *testing.T) {
	router, repo := setupRouter(t, &queueStub{})
	seedRecord(t, repo, "a-1", awaitingState("k"))
	seedRecord(t, repo, "a-2", nil)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/analyses?limit=10", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var items []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestFeedbackEndpoint(t *testing.T) {
	q := &queueStub{}
	router, repo := setupRouter(t, q)
	seedRecord(t, repo, "a-1", awaitingState("k"))
	seedRecord(t, repo, "a-2", nil)

	cases := []struct {
		name string
		id   string
		body string
		code int
	}{
		{name: "accepted", id: "a-1", body: `{"feedback":"Scene 2 should be night","approved":false,"requestReanalysis":true}`, code: http.StatusAccepted},
		{name: "busy", id: "a-2", body: `{"feedback":"ok","approved":true}`, code: http.StatusConflict},
		{name: "empty", id: "a-1", body: `{"feedback":"","approved":true}`, code: http.StatusBadRequest},
		{name: "bad json", id: "a-1", body: `{`, code: http.StatusBadRequest},
		{name: "missing", id: "nope", body: `{"feedback":"ok"}`, code: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses/"+tc.id+"/feedback", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, resp.Code, resp.Body.String())
			}
		})
	}

	rec, _ := repo.GetByID(context.Background(), "a-1")
	if rec.PendingFeedback == nil || !rec.PendingFeedback.RequestReanalysis {
		t.Fatalf("expected pending reanalysis feedback, got %+v", rec.PendingFeedback)
	}
	if len(q.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(q.messages))
	}
}
