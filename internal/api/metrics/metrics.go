// Package metrics defines and registers the custom Prometheus metrics of the
// job dispatch API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dispatch"

// ── Identity metrics ──────────────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Label:
//   - result: "success" or "failure"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// RegistrationsTotal counts successful identity registrations.
// Label:
//   - path: "bootstrap" for the first admin, "admin" for admin-authenticated registrations
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of identities registered, by registration path.",
	},
	[]string{"path"},
)

// AuthDenialsTotal counts requests rejected by authentication or authorization.
// Label:
//   - status: "401" or "403"
var AuthDenialsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_denials_total",
		Help:      "Total number of requests denied for missing authentication or insufficient permissions.",
	},
	[]string{"status"},
)

// ── Job metrics ───────────────────────────────────────────────────────────────

// JobMutationsTotal counts successful job mutations.
// Label:
//   - kind: "created", "status_changed", "technician_assigned" or "deleted"
var JobMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_mutations_total",
		Help:      "Total number of successful job mutations, by kind.",
	},
	[]string{"kind"},
)

// AuditEventsDroppedTotal counts audit events discarded by the asynchronous recorder.
var AuditEventsDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_dropped_total",
		Help:      "Total number of job audit events dropped because the recorder was saturated or closed.",
	},
)
