package otel

import (
	"context"
	"testing"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"tenant-access-control/internal/membership/domain"
	"tenant-access-control/internal/platform/rbac"
)

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec   otellog.Record
	calls int
}

func (r *recordCapture) Emit(_ context.Context, rec otellog.Record) {
	r.rec = rec
	r.calls++
}

func attrsOf(rec otellog.Record) map[string]otellog.Value {
	attrs := make(map[string]otellog.Value)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})
	return attrs
}

func TestNewDecisionEmitter_NilProvider(t *testing.T) {
	em := NewDecisionEmitter(nil)
	if em != nil {
		t.Fatal("NewDecisionEmitter(nil) should return nil")
	}
	// nil receiver must be safe
	em.ObserveDecision(context.Background(), rbac.Decision{Check: "organization"})
}

func TestNewDecisionEmitter_Provider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewDecisionEmitter(provider)
	if em == nil {
		t.Fatal("NewDecisionEmitter returned nil")
	}
	em.ObserveDecision(context.Background(), rbac.Decision{Check: "organization", Allowed: true})
}

func TestObserveDecision_Allow(t *testing.T) {
	cap := &recordCapture{}
	em := newDecisionEmitterWithLogger(cap)
	em.ObserveDecision(context.Background(), rbac.Decision{
		Check:      "website",
		UserID:     "u1",
		ResourceID: "w1",
		Allowed:    true,
		Via:        domain.ScopeOrganization,
	})
	if cap.calls != 1 {
		t.Fatalf("calls = %d, want 1", cap.calls)
	}
	rec := cap.rec
	if rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want INFO", rec.Severity())
	}
	if rec.Body().AsString() != "allow" {
		t.Errorf("body = %q", rec.Body().AsString())
	}
	if rec.Timestamp().IsZero() {
		t.Error("timestamp should be set")
	}
	attrs := attrsOf(rec)
	want := map[string]string{"check": "website", "user_id": "u1", "resource_id": "w1", "via": "organization"}
	for k, v := range want {
		if attrs[k].AsString() != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k].AsString(), v)
		}
	}
	if !attrs["allowed"].AsBool() {
		t.Error("allowed attr should be true")
	}
	if _, ok := attrs["reason"]; ok {
		t.Error("reason should not be set on allow")
	}
}

func TestObserveDecision_Deny(t *testing.T) {
	cap := &recordCapture{}
	em := newDecisionEmitterWithLogger(cap)
	em.ObserveDecision(context.Background(), rbac.Decision{
		Check:      "organization",
		UserID:     "u1",
		ResourceID: "o1",
		Reason:     "insufficient_privileges",
	})
	rec := cap.rec
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want WARN", rec.Severity())
	}
	attrs := attrsOf(rec)
	if attrs["reason"].AsString() != "insufficient_privileges" {
		t.Errorf("reason = %q", attrs["reason"].AsString())
	}
	if _, ok := attrs["via"]; ok {
		t.Error("via should not be set on deny")
	}
}

func TestDecisionEmitter_InObservers(t *testing.T) {
	cap := &recordCapture{}
	obs := rbac.Observers{newDecisionEmitterWithLogger(cap), nil}
	obs.ObserveDecision(context.Background(), rbac.Decision{Check: "organization", Allowed: true})
	if cap.calls != 1 {
		t.Errorf("calls = %d, want 1", cap.calls)
	}
}
