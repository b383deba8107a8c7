package rbac

import (
	"context"

	"tenant-access-control/internal/metrics"
)

// MetricsObserver counts decisions in metrics.AuthzDecisionsTotal.
type MetricsObserver struct{}

func (MetricsObserver) ObserveDecision(_ context.Context, d Decision) {
	result, reason := "allow", string(d.Via)
	if !d.Allowed {
		result, reason = "deny", d.Reason
	}
	metrics.AuthzDecisionsTotal.WithLabelValues(d.Check, result, reason).Inc()
}

// Observers fans a decision out to every non-nil observer in order.
type Observers []Observer

func (obs Observers) ObserveDecision(ctx context.Context, d Decision) {
	for _, o := range obs {
		if o != nil {
			o.ObserveDecision(ctx, d)
		}
	}
}
