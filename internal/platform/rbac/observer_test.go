package rbac

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"tenant-access-control/internal/metrics"
)

func TestMetricsObserver(t *testing.T) {
	c := metrics.AuthzDecisionsTotal.WithLabelValues("website", "deny", "insufficient_privileges")
	before := testutil.ToFloat64(c)

	rec := &recordingObserver{}
	obs := Observers{MetricsObserver{}, nil, rec}
	obs.ObserveDecision(context.Background(), Decision{Check: "website", Reason: "insufficient_privileges"})

	if got := testutil.ToFloat64(c); got != before+1 {
		t.Errorf("deny counter = %v, want %v", got, before+1)
	}
	if len(rec.decisions) != 1 {
		t.Errorf("fan-out delivered %d decisions, want 1", len(rec.decisions))
	}
}
