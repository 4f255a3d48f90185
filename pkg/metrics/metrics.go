// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 180},
		},
		[]string{"method", "route", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// PipelineRunsTotal counts planning pipeline runs by outcome.
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Planning pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	// PipelineRunDuration tracks wall-clock duration of whole pipeline runs.
	PipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Planning pipeline run duration",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 90, 120, 150, 180, 240},
		},
		[]string{"outcome"},
	)

	// StageDuration tracks the duration of individual pipeline stages.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"stage", "status"},
	)

	// ToolCallsTotal counts tool invocations made by stages.
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tool_calls_total",
			Help: "Tool calls issued by pipeline stages",
		},
		[]string{"tool", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// ParseDegradedTotal counts best-effort parsers falling back to defaults.
	ParseDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parse_degraded_total",
			Help: "Parses that fell back to a default value",
		},
		[]string{"parser"},
	)

	// PlanVersionsTotal counts plan versions appended to the store.
	PlanVersionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_versions_total",
			Help: "Plan versions created",
		},
		[]string{"source"},
	)

	// VersionConflictsTotal counts version-number races detected by the store.
	VersionConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plan_version_conflicts_total",
			Help: "Concurrent writes that collided on a plan version number",
		},
	)

	// FavoritesToggledTotal counts favorite toggles by resulting state.
	FavoritesToggledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favorites_toggled_total",
			Help: "Favorite toggles by resulting state",
		},
		[]string{"active"},
	)

	// EventsPublishedTotal counts plan events published to NATS.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_events_published_total",
			Help: "Plan events published to JetStream",
		},
		[]string{"type", "status"},
	)

	// ActivityStreams tracks open activity SSE connections.
	ActivityStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "activity_streams_active",
			Help: "Number of open activity event streams",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	RequestDuration.WithLabelValues(method, route, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordRun records the outcome of a pipeline run.
func RecordRun(outcome string, duration float64) {
	PipelineRunsTotal.WithLabelValues(outcome).Inc()
	PipelineRunDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordStage records metrics for a completed or failed pipeline stage.
func RecordStage(stage, status string, duration float64) {
	StageDuration.WithLabelValues(stage, status).Observe(duration)
}

// RecordLLMUsage records token usage for one generation call.
func RecordLLMUsage(model string, tokensIn, tokensOut int) {
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordToolCall records a single tool invocation.
func RecordToolCall(tool, status string) {
	ToolCallsTotal.WithLabelValues(tool, status).Inc()
}
