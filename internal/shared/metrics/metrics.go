package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector this service exports.
var Registry = prometheus.NewRegistry()

var (
	factory = promauto.With(Registry)

	workflowStartedTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "script_workflow_started_total",
		Help: "Workflow runs started, including resumes.",
	})
	workflowFinishedTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "script_workflow_finished_total",
		Help: "Workflow runs finished, by terminal status.",
	}, []string{"status"})
	workflowRevisionsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "script_workflow_revisions_total",
		Help: "Revision cycles started after rejected feedback.",
	})
	stageErrorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "script_stage_errors_total",
		Help: "Analysis stage failures, by kind.",
	}, []string{"kind"})
	generativeCallsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "script_generative_calls_total",
		Help: "Generative model calls billed to workflow runs.",
	})
	workerJobsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "script_worker_jobs_total",
		Help: "Queue jobs handled by workers, by outcome.",
	}, []string{"outcome"})
	httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "script_http_request_duration_seconds",
		Help:    "API request latency, by route and status class.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "class"})
	workflowDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "script_workflow_duration_ms",
		Help:    "Workflow run duration in milliseconds.",
		Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000, 300000},
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IncWorkflowStarted increments the started counter.
func IncWorkflowStarted() {
	workflowStartedTotal.Inc()
}

// IncWorkflowFinished counts a run that ended in status.
func IncWorkflowFinished(status string) {
	workflowFinishedTotal.WithLabelValues(status).Inc()
}

// IncRevision counts a revision cycle.
func IncRevision() {
	workflowRevisionsTotal.Inc()
}

// IncStageError counts a stage failure of the given kind.
func IncStageError(kind string) {
	stageErrorsTotal.WithLabelValues(kind).Inc()
}

// AddGenerativeCalls adds billed generative calls.
func AddGenerativeCalls(n int) {
	if n <= 0 {
		return
	}
	generativeCallsTotal.Add(float64(n))
}

// ObserveWorkflowDurationMs records a run duration in milliseconds.
func ObserveWorkflowDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	workflowDuration.Observe(value)
}

// Worker job outcomes.
const (
	JobReceived  = "received"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobDiscarded = "discarded"
)

// IncWorkerJob counts a queue job outcome.
func IncWorkerJob(outcome string) {
	workerJobsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest records one API request. Unmatched routes share a
// single label so scanners cannot grow the series count.
func ObserveHTTPRequest(method, route string, status int, seconds float64) {
	if route == "" {
		route = "unmatched"
	}
	class := strconv.Itoa(status/100) + "xx"
	httpRequestDuration.WithLabelValues(method, route, class).Observe(seconds)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}
