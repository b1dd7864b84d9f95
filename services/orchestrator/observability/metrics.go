// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and instrumentation for the
// orchestrator.
//
// # Description
//
// This package implements Prometheus metrics for monitoring decision
// generation and thinking-session traffic. Metrics include:
//   - Request counters (by endpoint, status)
//   - LLM call latency histograms (by backend, operation)
//   - Confidence score distribution (by level)
//   - Session reply regeneration attempts and rule violations (by phase)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "waypoint"

const (
	decisionSubsystem = "decision"
	sessionSubsystem  = "session"
	llmSubsystem      = "llm"
)

// Metrics holds all Prometheus metrics for the orchestrator.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring decision and
// session performance. Initialize once at startup via InitMetrics(), or
// with NewMetrics(registerer) when an isolated registry is needed (tests).
//
// # Thread Safety
//
// All operations are thread-safe.
type Metrics struct {
	// RequestsTotal counts API requests by endpoint and status.
	// Labels: endpoint (generate, refine, clarify, validate, reorder,
	// session_message, session_advance), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// ConfidenceScore observes the composite confidence of each produced
	// decision. Labels: level (very_low, low, medium, high)
	ConfidenceScore *prometheus.HistogramVec

	// LLMCallSeconds measures LLM round-trip latency.
	// Labels: backend (openai, anthropic), operation (decision, session)
	LLMCallSeconds *prometheus.HistogramVec

	// LLMErrorsTotal counts provider failures by backend and error code.
	LLMErrorsTotal *prometheus.CounterVec

	// ReplyAttemptsTotal counts session reply generation attempts by phase.
	// Regenerations show up as attempts beyond the first.
	ReplyAttemptsTotal *prometheus.CounterVec

	// PhaseViolationsTotal counts rule violations by phase and category.
	PhaseViolationsTotal *prometheus.CounterVec

	// DegradedRepliesTotal counts replies returned unvalidated after the
	// regeneration cap. Labels: phase
	DegradedRepliesTotal *prometheus.CounterVec

	// ActiveSessions tracks sessions currently held by the store.
	ActiveSessions prometheus.Gauge

	// PersistFailuresTotal counts best-effort persistence failures.
	// Labels: object (decision, session, message)
	PersistFailuresTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance used by the running service.
// Initialized by InitMetrics().
var DefaultMetrics *Metrics

// InitMetrics initializes the default metrics instance on the global
// Prometheus registry.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *Metrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics creates and registers all metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: decisionSubsystem,
				Name:      "requests_total",
				Help:      "Total API requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		ConfidenceScore: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: decisionSubsystem,
				Name:      "confidence_score",
				Help:      "Composite confidence score of produced decisions",
				Buckets:   []float64{0.2, 0.4, 0.6, 0.8, 0.9, 1.0},
			},
			[]string{"level"},
		),

		LLMCallSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: llmSubsystem,
				Name:      "call_seconds",
				Help:      "LLM round-trip latency in seconds",
				Buckets:   []float64{0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"backend", "operation"},
		),

		LLMErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: llmSubsystem,
				Name:      "errors_total",
				Help:      "LLM provider failures by backend and error code",
			},
			[]string{"backend", "error_code"},
		),

		ReplyAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "reply_attempts_total",
				Help:      "Session reply generation attempts by phase",
			},
			[]string{"phase"},
		),

		PhaseViolationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "phase_violations_total",
				Help:      "Phase rule violations by phase and category",
			},
			[]string{"phase", "category"},
		),

		DegradedRepliesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "degraded_replies_total",
				Help:      "Replies returned unvalidated after the regeneration cap",
			},
			[]string{"phase"},
		),

		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "active_sessions",
				Help:      "Sessions currently held by the store",
			},
		),

		PersistFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: decisionSubsystem,
				Name:      "persist_failures_total",
				Help:      "Best-effort persistence failures by object type",
			},
			[]string{"object"},
		),
	}
}

// =============================================================================
// Endpoint Names
// =============================================================================

// Endpoint labels an API operation for metrics.
type Endpoint string

const (
	EndpointGenerate       Endpoint = "generate"
	EndpointRefine         Endpoint = "refine"
	EndpointClarify        Endpoint = "clarify"
	EndpointValidate       Endpoint = "validate"
	EndpointReorder        Endpoint = "reorder"
	EndpointSessionMessage Endpoint = "session_message"
	EndpointSessionAdvance Endpoint = "session_advance"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed API request.
func (m *Metrics) RecordRequest(endpoint Endpoint, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
}

// RecordConfidence records a produced decision's composite confidence.
func (m *Metrics) RecordConfidence(level string, score float64) {
	m.ConfidenceScore.WithLabelValues(level).Observe(score)
}

// RecordLLMCall records the latency of one LLM round trip.
func (m *Metrics) RecordLLMCall(backend, operation string, seconds float64) {
	m.LLMCallSeconds.WithLabelValues(backend, operation).Observe(seconds)
}

// RecordLLMError records a provider failure.
func (m *Metrics) RecordLLMError(backend, errorCode string) {
	m.LLMErrorsTotal.WithLabelValues(backend, errorCode).Inc()
}

// RecordReply records the outcome of one governed session reply: how many
// attempts it took, the violation categories that fired, and whether the
// reply was returned degraded.
func (m *Metrics) RecordReply(phase string, attempts int, violations []string, degraded bool) {
	m.ReplyAttemptsTotal.WithLabelValues(phase).Add(float64(attempts))
	for _, category := range violations {
		m.PhaseViolationsTotal.WithLabelValues(phase, category).Inc()
	}
	if degraded {
		m.DegradedRepliesTotal.WithLabelValues(phase).Inc()
	}
}

// RecordPersistFailure records a best-effort persistence failure.
func (m *Metrics) RecordPersistFailure(object string) {
	m.PersistFailuresTotal.WithLabelValues(object).Inc()
}

// SessionCreated increments the active sessions gauge.
func (m *Metrics) SessionCreated() {
	m.ActiveSessions.Inc()
}

// SessionRemoved decrements the active sessions gauge.
func (m *Metrics) SessionRemoved() {
	m.ActiveSessions.Dec()
}
