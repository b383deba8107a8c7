package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAuthzDecisionsTotal(t *testing.T) {
	c := AuthzDecisionsTotal.WithLabelValues("organization", "deny", "insufficient_privileges")
	before := testutil.ToFloat64(c)
	c.Inc()
	if got := testutil.ToFloat64(c); got != before+1 {
		t.Errorf("counter = %v, want %v", got, before+1)
	}
}

func TestHandler_ExposesNamespace(t *testing.T) {
	InvitesTotal.WithLabelValues("organization", "issued").Inc()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tenancy_invites_total") {
		t.Error("metrics output missing tenancy_invites_total")
	}
}

func TestResult(t *testing.T) {
	if Result(nil) != "ok" || Result(errors.New("x")) != "error" {
		t.Error("Result labels wrong")
	}
}
