package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"tenant-access-control/internal/platform/rbac"
)

// recordEmitter is the subset of otellog.Logger the emitter uses.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// DecisionEmitter exports authorization decisions as OTel log records.
type DecisionEmitter struct {
	logger recordEmitter
}

var _ rbac.Observer = (*DecisionEmitter)(nil)

// NewDecisionEmitter returns an emitter backed by provider. A nil provider yields nil,
// which rbac.Observers skips.
func NewDecisionEmitter(provider *sdklog.LoggerProvider) *DecisionEmitter {
	if provider == nil {
		return nil
	}
	return &DecisionEmitter{logger: provider.Logger("tenancy.authz")}
}

func newDecisionEmitterWithLogger(l recordEmitter) *DecisionEmitter {
	return &DecisionEmitter{logger: l}
}

// ObserveDecision emits one record. Denials are WARN, grants are INFO.
func (e *DecisionEmitter) ObserveDecision(ctx context.Context, d rbac.Decision) {
	if e == nil || e.logger == nil {
		return
	}
	rec := otellog.Record{}
	rec.SetTimestamp(time.Now().UTC())
	rec.SetEventName("authz.decision")
	if d.Allowed {
		rec.SetSeverity(otellog.SeverityInfo)
		rec.SetBody(otellog.StringValue("allow"))
	} else {
		rec.SetSeverity(otellog.SeverityWarn)
		rec.SetBody(otellog.StringValue("deny"))
	}
	rec.AddAttributes(
		otellog.String("check", d.Check),
		otellog.Bool("allowed", d.Allowed),
	)
	if d.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", d.UserID))
	}
	if d.ResourceID != "" {
		rec.AddAttributes(otellog.String("resource_id", d.ResourceID))
	}
	if d.Via != "" {
		rec.AddAttributes(otellog.String("via", string(d.Via)))
	}
	if d.Reason != "" {
		rec.AddAttributes(otellog.String("reason", d.Reason))
	}
	e.logger.Emit(ctx, rec)
}
