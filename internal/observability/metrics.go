// Package observability provides Prometheus metrics for the gateway.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects gateway telemetry: turn throughput, model call latency
// and token spend, tool execution patterns, and live session counts.
type Metrics struct {
	// TurnCounter counts completed turns.
	// Labels: status (success|safety|error)
	TurnCounter *prometheus.CounterVec

	// ModelCallDuration measures model call latency in seconds.
	// Labels: mode (chat|vision)
	ModelCallDuration *prometheus.HistogramVec

	// ModelCallCounter counts model calls.
	// Labels: mode, status (success|error)
	ModelCallCounter *prometheus.CounterVec

	// TokensUsed tracks token consumption reported by the model API.
	// Labels: type (prompt|total)
	TokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool
	ToolExecutionDuration *prometheus.HistogramVec

	// ActiveSessions tracks the number of live sessions.
	ActiveSessions prometheus.Gauge
}

// NewMetrics creates the metric set and registers it with reg. Pass a fresh
// registry in tests to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TurnCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_turns_total",
				Help: "Completed conversation turns by outcome.",
			},
			[]string{"status"},
		),
		ModelCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parley_model_call_duration_seconds",
				Help:    "Model API call latency.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"mode"},
		),
		ModelCallCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_model_calls_total",
				Help: "Model API calls by mode and status.",
			},
			[]string{"mode", "status"},
		),
		TokensUsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_tokens_total",
				Help: "Tokens reported by the model API.",
			},
			[]string{"type"},
		),
		ToolExecutionCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_tool_executions_total",
				Help: "Tool invocations by name and status.",
			},
			[]string{"tool", "status"},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parley_tool_execution_duration_seconds",
				Help:    "Tool execution time.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "parley_active_sessions",
				Help: "Currently live sessions.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.TurnCounter,
			m.ModelCallDuration,
			m.ModelCallCounter,
			m.TokensUsed,
			m.ToolExecutionCounter,
			m.ToolExecutionDuration,
			m.ActiveSessions,
		)
	}
	return m
}

// IncTurn records one completed turn.
func (m *Metrics) IncTurn(status string) {
	m.TurnCounter.WithLabelValues(status).Inc()
}

// ObserveModelCall records latency and outcome of one model call.
func (m *Metrics) ObserveModelCall(mode string, elapsed time.Duration, ok bool) {
	m.ModelCallDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	m.ModelCallCounter.WithLabelValues(mode, statusLabel(ok)).Inc()
}

// AddTokens accumulates token usage from one model response.
func (m *Metrics) AddTokens(prompt, total int64) {
	m.TokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.TokensUsed.WithLabelValues("total").Add(float64(total))
}

// ObserveToolExecution records one tool invocation.
func (m *Metrics) ObserveToolExecution(tool string, elapsed time.Duration, ok bool) {
	m.ToolExecutionDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
	m.ToolExecutionCounter.WithLabelValues(tool, statusLabel(ok)).Inc()
}

// SetActiveSessions updates the live session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

func statusLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
