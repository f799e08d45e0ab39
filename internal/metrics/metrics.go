// Package metrics defines Prometheus metrics for the security
// subsystem.
//
// Metric naming follows Prometheus conventions:
//   - buildgate_ prefix for all custom metrics
//   - _total suffix for counters
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LoginsTotal counts login attempts by outcome (allow/deny).
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildgate_logins_total",
			Help: "Total number of login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// PermissionChecksTotal counts permission checks by action and outcome.
	PermissionChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildgate_permission_checks_total",
			Help: "Total number of permission checks by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	// ActiveSessions tracks the number of live sessions in the cache.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "buildgate_active_sessions",
			Help: "Number of sessions currently held in the session cache.",
		},
	)

	// SessionEvictionsTotal counts sessions evicted on expiry.
	SessionEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "buildgate_session_evictions_total",
			Help: "Total number of sessions evicted after expiry.",
		},
	)

	// AuditEventsTotal counts audit events by type.
	AuditEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildgate_audit_events_total",
			Help: "Total number of audit events dispatched by event type.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		LoginsTotal,
		PermissionChecksTotal,
		ActiveSessions,
		SessionEvictionsTotal,
		AuditEventsTotal,
	)
}

// Outcome labels a decision for the outcome metric dimension.
func Outcome(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}
