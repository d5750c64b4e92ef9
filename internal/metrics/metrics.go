// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

// Package metrics provides Prometheus metrics collection for discoveryd.
//
// Metrics are exposed at the /metrics endpoint in Prometheus text format.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, endpoint and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests processed",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTPRequestDuration observes request latency by method and endpoint.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// HTTPRequestsInFlight tracks currently active HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Active HTTP requests",
		},
	)

	// FeedbackEventsTotal counts applied feedback events by action.
	FeedbackEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_events_total",
			Help: "Feedback events applied to preference profiles",
		},
		[]string{"action"},
	)

	// FeedbackRejectedTotal counts malformed feedback events by reason.
	FeedbackRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_rejected_total",
			Help: "Feedback events ignored as malformed",
		},
		[]string{"reason"},
	)

	// RefreshesTotal counts pool refreshes by ranking mode
	// (local, delegated, fallback, exhausted).
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refreshes_total",
			Help: "Pool refresh operations by ranking mode",
		},
		[]string{"mode"},
	)

	// RefreshesDroppedTotal counts refresh requests dropped by the fetch guard.
	RefreshesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refreshes_dropped_total",
			Help: "Refresh requests dropped while another was in flight",
		},
	)

	// GuardDefensiveResetsTotal counts forced resets of a stuck fetch guard.
	// A non-zero value indicates a logic error upstream.
	GuardDefensiveResetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guard_defensive_resets_total",
			Help: "Defensive resets of a stuck refresh guard",
		},
	)

	// DelegateFailuresTotal counts delegated-ranking failures by cause
	// (timeout, error, malformed, breaker_open).
	DelegateFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delegate_failures_total",
			Help: "Delegated ranking failures triggering local fallback",
		},
		[]string{"cause"},
	)

	// FilterTierResultsTotal counts filter operations by the tier that
	// produced the final result (exact, relaxed, search, none).
	FilterTierResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_tier_results_total",
			Help: "Filter operations by resolving tier",
		},
		[]string{"tier"},
	)

	// SessionSavesTotal counts persisted session writes by kind
	// (debounced, immediate).
	SessionSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_saves_total",
			Help: "Persisted discovery session writes",
		},
		[]string{"kind"},
	)

	// SessionRestoresTotal counts restore attempts by outcome
	// (hit, miss, stale, foreign).
	SessionRestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_restores_total",
			Help: "Discovery session restore attempts by outcome",
		},
		[]string{"outcome"},
	)

	// ProfileStoreErrorsTotal counts durable preference store failures.
	ProfileStoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_store_errors_total",
			Help: "Durable preference store failures by operation",
		},
		[]string{"operation"},
	)

	// CatalogFetchesTotal counts catalog fetches by outcome (ok, error).
	CatalogFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_fetches_total",
			Help: "Catalog pool fetches by outcome",
		},
		[]string{"outcome"},
	)

	// SearchRequestsTotal counts text-search collaborator calls by outcome
	// (ok, empty, error).
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Text-search collaborator calls by outcome",
		},
		[]string{"outcome"},
	)

	// CircuitBreakerState reports breaker state by name
	// (0=closed, 1=open, 2=half-open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	// CircuitBreakerTransitions counts breaker state transitions.
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordAPIRequest records a completed HTTP request.
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordAPIStatus is a convenience wrapper taking a numeric status code.
func RecordAPIStatus(method, endpoint string, code int, duration time.Duration) {
	RecordAPIRequest(method, endpoint, strconv.Itoa(code), duration)
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		HTTPRequestsInFlight.Inc()
	} else {
		HTTPRequestsInFlight.Dec()
	}
}
