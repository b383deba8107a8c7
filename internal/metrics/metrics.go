// Package metrics defines the Prometheus metrics of the tenancy backend. It is
// the single source of truth for metric names, labels and help strings.
// Metrics register with the default registry on package init.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tenancy"

// AuthzDecisionsTotal counts resolver decisions.
// Labels:
//   - check: "organization", "website" or "organization_or_website"
//   - result: "allow" or "deny"
//   - reason: deny reason (e.g. "insufficient_privileges"), or the allowing scope
var AuthzDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authz_decisions_total",
		Help:      "Total number of role authorization decisions.",
	},
	[]string{"check", "result", "reason"},
)

// InvitesTotal counts invitation lifecycle transitions.
// Labels:
//   - scope: "organization" or "website"
//   - event: "issued", "reissued", "accepted", "revoked"
var InvitesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invites_total",
		Help:      "Total number of invitation lifecycle events.",
	},
	[]string{"scope", "event"},
)

// NotificationsTotal counts outbound notification attempts.
// Labels:
//   - kind: message kind (e.g. "org_invite")
//   - stage: "enqueue" or "deliver"
//   - result: "ok" or "error"
var NotificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Total number of notification enqueue and delivery attempts.",
	},
	[]string{"kind", "stage", "result"},
)

// RPCRequestsTotal counts handled gRPC requests by method and status code.
var RPCRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_requests_total",
		Help:      "Total number of unary gRPC requests handled.",
	},
	[]string{"method", "code"},
)

// RPCDuration measures unary gRPC handling time.
var RPCDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rpc_duration_seconds",
		Help:      "Duration of unary gRPC requests.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method"},
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Result maps an error to the "ok"/"error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
