package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for report runs.
//
// Tracked:
//   - Provider round trips, their latency and token usage
//   - Tool executions by tool and outcome
//   - Reasoning iterations per session
//   - Capacity-driven retries and run outcomes
//
// A nil *Metrics is valid and records nothing, so components take one
// without checking.
type Metrics struct {
	// LLMRequests counts provider round trips.
	// Labels: provider, model, status (success|error)
	LLMRequests *prometheus.CounterVec

	// LLMRequestDuration measures provider latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// Tokens tracks token consumption.
	// Labels: provider, model, direction (input|output)
	Tokens *prometheus.CounterVec

	// ToolCalls counts tool executions.
	// Labels: tool, status (success|failure|error)
	ToolCalls *prometheus.CounterVec

	// ToolDuration measures tool execution time in seconds.
	// Labels: tool
	ToolDuration *prometheus.HistogramVec

	// Iterations observes the iteration count of each reasoning session.
	Iterations prometheus.Histogram

	// CapacityRetries counts narrowing steps after capacity errors.
	// Labels: depth (history|summary)
	CapacityRetries *prometheus.CounterVec

	// Runs counts report runs by outcome.
	// Labels: outcome (success|skipped|error)
	Runs *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics
// handler, or a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LLMRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kronologi_llm_requests_total",
				Help: "Total number of provider round trips by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kronologi_llm_request_duration_seconds",
				Help:    "Duration of provider round trips in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"provider", "model"},
		),

		Tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kronologi_tokens_total",
				Help: "Total number of tokens used by provider, model, and direction",
			},
			[]string{"provider", "model", "direction"},
		),

		ToolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kronologi_tool_calls_total",
				Help: "Total number of tool executions by tool and status",
			},
			[]string{"tool", "status"},
		),

		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kronologi_tool_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"tool"},
		),

		Iterations: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kronologi_reasoning_iterations",
				Help:    "Number of model round trips per reasoning session",
				Buckets: []float64{1, 2, 3, 5, 8, 10, 15, 20},
			},
		),

		CapacityRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kronologi_capacity_retries_total",
				Help: "Total number of depth reductions after capacity errors",
			},
			[]string{"depth"},
		),

		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kronologi_runs_total",
				Help: "Total number of report runs by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordLLMRequest records one provider round trip.
func (m *Metrics) RecordLLMRequest(provider, model string, err error, duration time.Duration, inputTokens, outputTokens int64) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.LLMRequests.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	if inputTokens > 0 {
		m.Tokens.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.Tokens.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordToolCall records one tool execution. Status is "success" or
// "failure" for a returned result and "error" for an unexpected error.
func (m *Metrics) RecordToolCall(tool, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordIterations records the length of a finished reasoning session.
func (m *Metrics) RecordIterations(n int) {
	if m == nil {
		return
	}
	m.Iterations.Observe(float64(n))
}

// RecordCapacityRetry records one depth reduction.
func (m *Metrics) RecordCapacityRetry(depth string) {
	if m == nil {
		return
	}
	m.CapacityRetries.WithLabelValues(depth).Inc()
}

// RecordRun records the outcome of a report run.
func (m *Metrics) RecordRun(outcome string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
}
