// Package metrics exposes prometheus collectors for streak propagation and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	streakUnits         *prometheus.CounterVec
	transactionAttempts *prometheus.CounterVec
	propagationDuration prometheus.Histogram
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which tests use to get isolated counters.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		streakUnits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catchup_streak_units_total",
				Help: "Streak propagation units by kind and outcome",
			},
			[]string{"unit", "outcome"},
		),
		transactionAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catchup_store_transaction_attempts_total",
				Help: "Atomic store operations attempted, by result",
			},
			[]string{"result"},
		),
		propagationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catchup_streak_propagation_duration_seconds",
				Help:    "Duration of a full answer propagation",
				Buckets: prometheus.DefBuckets,
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.streakUnits, m.transactionAttempts, m.propagationDuration, m.httpRequests, m.httpDuration)
	}
	return m
}

// The methods below are safe on a nil *Metrics.

func (m *Metrics) StreakUnit(unit, outcome string) {
	if m == nil {
		return
	}
	m.streakUnits.WithLabelValues(unit, outcome).Inc()
}

func (m *Metrics) TransactionAttempt(result string) {
	if m == nil {
		return
	}
	m.transactionAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) PropagationFinished(started time.Time) {
	if m == nil {
		return
	}
	m.propagationDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) HTTPRequest(path, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(path, method, statusLabel(status)).Inc()
	m.httpDuration.WithLabelValues(path, method).Observe(elapsed.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
