// Package metrics defines the Prometheus instrumentation for the reasoning
// service. All metrics use bounded label sets.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tool call outcomes (bounded set)
const (
	OutcomeSuccess          = "success"
	OutcomeNotFound         = "not_found"
	OutcomeInvalidArguments = "invalid_arguments"
	OutcomeAccessDenied     = "access_denied"
	OutcomeExecutionError   = "execution_error"
)

// Tool Dispatch Metrics
var (
	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsight_tool_calls_total",
		Help: "Total number of tool dispatches by tool and outcome",
	}, []string{"tool", "outcome"})

	ToolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finsight_tool_call_duration_ms",
		Help:    "Tool handler duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"tool"})

	AccessDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsight_access_denials_total",
		Help: "Total number of authorization denials by tool and reason code",
	}, []string{"tool", "reason"})
)

// Reasoning Request Metrics
var (
	ReasoningRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsight_reasoning_requests_total",
		Help: "Total number of reasoning requests by strategy and terminal state",
	}, []string{"strategy", "outcome"})

	ReasoningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finsight_reasoning_duration_ms",
		Help:    "End-to-end reasoning request duration in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})

	ReasoningToolSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finsight_reasoning_tool_steps",
		Help:    "Number of tool calls made per reasoning request",
		Buckets: []float64{0, 1, 2, 3, 4, 5},
	})
)

// LLM Metrics
var (
	LLMRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finsight_llm_request_duration_ms",
		Help:    "LLM completion request duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000},
	})

	LLMTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsight_llm_tokens_total",
		Help: "Total LLM tokens consumed by direction (input/output)",
	}, []string{"direction"})

	LLMRequestFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finsight_llm_request_failures_total",
		Help: "Total number of failed LLM completion requests",
	})
)

// HTTP and Persistence Metrics
var (
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finsight_api_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"method", "path"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsight_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finsight_database_query_duration_ms",
		Help:    "Database query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"query_type"})

	AuditLogs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsight_audit_logs_total",
		Help: "Total number of audit log writes by event type and status",
	}, []string{"event_type", "status"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsight_errors_total",
		Help: "Total number of errors by type",
	}, []string{"type", "component"})
)

// RecordToolCall records a single tool dispatch outcome
func RecordToolCall(tool, outcome string, durationMs float64) {
	ToolCalls.WithLabelValues(tool, outcome).Inc()
	ToolCallDuration.WithLabelValues(tool).Observe(durationMs)
}

// RecordAccessDenial records an authorization denial
func RecordAccessDenial(tool, reason string) {
	AccessDenials.WithLabelValues(tool, reason).Inc()
}

// RecordReasoningRequest records a completed reasoning request
func RecordReasoningRequest(strategy, outcome string, durationMs float64, toolSteps int) {
	ReasoningRequests.WithLabelValues(strategy, outcome).Inc()
	ReasoningDuration.Observe(durationMs)
	ReasoningToolSteps.Observe(float64(toolSteps))
}

// RecordLLMRequest records an LLM completion round trip
func RecordLLMRequest(durationMs float64) {
	LLMRequestDuration.Observe(durationMs)
}

// RecordLLMTokens records token consumption for a completion
func RecordLLMTokens(input, output int) {
	LLMTokens.WithLabelValues("input").Add(float64(input))
	LLMTokens.WithLabelValues("output").Add(float64(output))
}

// RecordLLMFailure records a failed LLM completion request
func RecordLLMFailure() {
	LLMRequestFailures.Inc()
}

// RecordAPIRequest records API request metrics
func RecordAPIRequest(method, path, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, path).Observe(durationMs)
	HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
}

// RecordDatabaseQuery records database query duration
func RecordDatabaseQuery(queryType string, durationMs float64) {
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(durationMs)
}

// RecordAuditLog records an audit log write
func RecordAuditLog(eventType string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	AuditLogs.WithLabelValues(eventType, status).Inc()
}

// RecordError increments the error counter
func RecordError(errorType, component string) {
	Errors.WithLabelValues(errorType, component).Inc()
}
