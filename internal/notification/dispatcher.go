package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tenant-access-control/internal/metrics"
)

// dispatchTimeout bounds a single async enqueue.
const dispatchTimeout = 5 * time.Second

// Dispatcher hands messages to a Notifier without blocking the caller.
type Dispatcher struct {
	notifier Notifier
	log      zerolog.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewDispatcher returns a Dispatcher over n. A nil n drops every message.
func NewDispatcher(n Notifier, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{notifier: n, log: log, timeout: dispatchTimeout}
}

// Dispatch runs Notify in a goroutine with its own timeout so request
// cancellation does not abort an in-flight enqueue. Errors are logged.
func (d *Dispatcher) Dispatch(msg Message) {
	if d == nil || d.notifier == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		err := d.notifier.Notify(ctx, msg)
		metrics.NotificationsTotal.WithLabelValues(string(msg.Kind), "enqueue", metrics.Result(err)).Inc()
		if err != nil {
			d.log.Warn().Err(err).
				Str("kind", string(msg.Kind)).
				Str("message_id", msg.ID).
				Msg("notification: dispatch failed")
		}
	}()
}

// Wait blocks until every dispatched message has been handed off.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
