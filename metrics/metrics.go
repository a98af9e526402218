// Package metrics exposes Prometheus collectors for login security events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuditRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetauth_audit_records_total",
			Help: "Audit records written, by result",
		},
		[]string{"result"},
	)

	AuditWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetauth_audit_write_errors_total",
			Help: "Audit store writes that failed",
		},
	)

	Lockouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetauth_lockouts_total",
			Help: "Accounts locked, by trigger",
		},
		[]string{"trigger"}, // threshold, window, admin
	)

	SuspiciousMarked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetauth_suspicious_marked_total",
			Help: "Audit records flagged as suspicious",
		},
	)

	SuspicionCheckErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetauth_suspicion_check_errors_total",
			Help: "Suspicion checks that failed open",
		},
	)

	SessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetauth_sessions_ended_total",
			Help: "Sessions closed, by reason",
		},
		[]string{"reason"},
	)

	RecordsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetauth_audit_records_purged_total",
			Help: "Audit records removed by retention cleanup",
		},
	)

	RetentionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetauth_retention_runs_total",
			Help: "Scheduled maintenance runs, by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetauth_http_requests_total",
			Help: "HTTP requests, by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetauth_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)
)

// ObserveRecord counts one written audit record.
func ObserveRecord(result string) {
	AuditRecords.WithLabelValues(result).Inc()
}

// ObserveSessionsEnded counts n closed sessions.
func ObserveSessionsEnded(reason string, n int) {
	if n <= 0 {
		return
	}
	SessionsEnded.WithLabelValues(reason).Add(float64(n))
}

// ObservePurge counts n purged records.
func ObservePurge(n int) {
	if n <= 0 {
		return
	}
	RecordsPurged.Add(float64(n))
}
