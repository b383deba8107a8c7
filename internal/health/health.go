// Package health reports readiness. A Checker pings the database and mirrors
// the result into the standard gRPC health service and the ops /healthz route.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const pingTimeout = 2 * time.Second

// Pinger checks a backing store, e.g. *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker runs readiness checks. A nil Pinger is always ready.
type Checker struct {
	pinger  Pinger
	grpc    *health.Server
	service string
}

// NewChecker returns a Checker that updates hs for service and the overall
// ("") status on every Check. hs may be nil.
func NewChecker(p Pinger, hs *health.Server, service string) *Checker {
	return &Checker{pinger: p, grpc: hs, service: service}
}

// Check pings the store and records the resulting serving status.
func (c *Checker) Check(ctx context.Context) error {
	var err error
	if c.pinger != nil {
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		err = c.pinger.PingContext(ctx)
	}
	if c.grpc != nil {
		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		c.grpc.SetServingStatus("", st)
		c.grpc.SetServingStatus(c.service, st)
	}
	return err
}

type response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ServeHTTP answers 200 when ready and 503 otherwise.
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := response{Status: "SERVING"}
	code := http.StatusOK
	if err := c.Check(r.Context()); err != nil {
		resp = response{Status: "NOT_SERVING", Error: err.Error()}
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
