// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the router service.
//
// # Description
//
// Metrics cover the request pipeline end to end:
//   - Request counters by routing decision and outcome
//   - Per-stage latency histograms (gate, classify, respond, convert, persist)
//   - Active request gauge
//   - Security trigger and store failure counters
//
// # Integration
//
// Exposed via the /metrics endpoint. Use with Prometheus + Grafana for
// dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const metricsNamespace = "agentrouter"

const chatSubsystem = "chat"

// Stage labels one phase of the request pipeline for latency histograms.
type Stage string

const (
	StageGate     Stage = "security_gate"
	StageClassify Stage = "classify"
	StageRespond  Stage = "respond"
	StageConvert  Stage = "convert"
	StagePersist  Stage = "persist"
)

// RouterMetrics holds all Prometheus metrics for the chat pipeline.
//
// Initialize once at startup via InitMetrics(); registering twice panics on
// duplicate registration, which is the desired startup-time failure.
type RouterMetrics struct {
	// RequestsTotal counts chat requests.
	// Labels: decision (MathResponder, ...), status (success, error, degraded)
	RequestsTotal *prometheus.CounterVec

	// StageDurationSeconds measures per-stage pipeline latency.
	// Labels: stage (security_gate, classify, respond, convert, persist)
	StageDurationSeconds *prometheus.HistogramVec

	// ActiveRequests tracks chat requests currently in flight.
	ActiveRequests prometheus.Gauge

	// SecurityTriggersTotal counts gate verdicts that altered routing.
	// Labels: verdict (suspicious, unsupported_language)
	SecurityTriggersTotal *prometheus.CounterVec

	// StoreFailuresTotal counts conversation store failures by operation.
	// Labels: operation (append, history, list)
	StoreFailuresTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, initialized by InitMetrics().
var DefaultMetrics *RouterMetrics

// InitMetrics creates and registers all metrics on the default registry.
// Call once at application startup.
func InitMetrics() *RouterMetrics {
	DefaultMetrics = &RouterMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "requests_total",
				Help:      "Total chat requests by routing decision and outcome",
			},
			[]string{"decision", "status"},
		),

		StageDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage latency in seconds",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0, 30.0},
			},
			[]string{"stage"},
		),

		ActiveRequests: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "active_requests",
				Help:      "Chat requests currently in flight",
			},
		),

		SecurityTriggersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "security_triggers_total",
				Help:      "Gate verdicts that altered routing, by verdict",
			},
			[]string{"verdict"},
		),

		StoreFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "store_failures_total",
				Help:      "Conversation store failures by operation",
			},
			[]string{"operation"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records one completed chat request. A nil receiver is a
// no-op so library-style callers and tests need no metrics setup.
func (m *RouterMetrics) RecordRequest(decision, status string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(decision, status).Inc()
}

// ObserveStage records the elapsed time of one pipeline stage.
func (m *RouterMetrics) ObserveStage(stage Stage, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageDurationSeconds.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
}

// RequestStarted increments the in-flight gauge.
func (m *RouterMetrics) RequestStarted() {
	if m == nil {
		return
	}
	m.ActiveRequests.Inc()
}

// RequestEnded decrements the in-flight gauge.
func (m *RouterMetrics) RequestEnded() {
	if m == nil {
		return
	}
	m.ActiveRequests.Dec()
}

// RecordSecurityTrigger counts a gate verdict that altered routing.
func (m *RouterMetrics) RecordSecurityTrigger(verdict string) {
	if m == nil {
		return
	}
	m.SecurityTriggersTotal.WithLabelValues(verdict).Inc()
}

// RecordStoreFailure counts a conversation store failure.
func (m *RouterMetrics) RecordStoreFailure(operation string) {
	if m == nil {
		return
	}
	m.StoreFailuresTotal.WithLabelValues(operation).Inc()
}
