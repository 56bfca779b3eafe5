package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWorkflowFinishedByStatus(t *testing.T) {
	before := testutil.ToFloat64(workflowFinishedTotal.WithLabelValues("analysis_completed"))
	IncWorkflowFinished("analysis_completed")
	after := testutil.ToFloat64(workflowFinishedTotal.WithLabelValues("analysis_completed"))
	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, got %v -> %v", before, after)
	}
}

func TestAddGenerativeCallsIgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(generativeCallsTotal)
	AddGenerativeCalls(0)
	AddGenerativeCalls(-3)
	AddGenerativeCalls(2)
	if got := testutil.ToFloat64(generativeCallsTotal) - before; got != 2 {
		t.Fatalf("expected +2, got %v", got)
	}
}

func TestObserveHTTPRequestLabels(t *testing.T) {
	ObserveHTTPRequest(http.MethodGet, "", http.StatusNotFound, 0.01)
	ObserveHTTPRequest(http.MethodPost, "/api/v1/scripts", http.StatusAccepted, 0.2)
	if n := testutil.CollectAndCount(httpRequestDuration, "script_http_request_duration_seconds"); n < 2 {
		t.Fatalf("expected at least 2 series, got %d", n)
	}
	w := httptest.NewRecorder()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", Handler())
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), `route="unmatched"`) || !strings.Contains(w.Body.String(), `class="2xx"`) {
		t.Fatalf("missing labels in exposition")
	}
}

func TestWorkerJobOutcomes(t *testing.T) {
	before := testutil.ToFloat64(workerJobsTotal.WithLabelValues(JobDiscarded))
	IncWorkerJob(JobDiscarded)
	IncWorkerJob(JobCompleted)
	if got := testutil.ToFloat64(workerJobsTotal.WithLabelValues(JobDiscarded)) - before; got != 1 {
		t.Fatalf("expected +1 discarded, got %v", got)
	}
}

func TestHandlerServesText(t *testing.T) {
	gin.SetMode(gin.TestMode)
	IncWorkflowStarted()
	r := gin.New()
	r.GET("/metrics", Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "script_workflow_started_total") {
		t.Fatalf("metrics output missing started counter:\n%s", w.Body.String())
	}
}
