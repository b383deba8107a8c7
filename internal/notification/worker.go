package notification

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"tenant-access-control/internal/metrics"
)

// Source yields queued messages. Pop returns (nil, nil) when nothing arrived within timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*Message, error)
}

// Worker drains a Source into a Notifier that performs delivery.
type Worker struct {
	source      Source
	sink        Notifier
	log         zerolog.Logger
	pollTimeout time.Duration
	retryDelay  time.Duration
}

// NewWorker returns a Worker moving messages from source to sink.
func NewWorker(source Source, sink Notifier, log zerolog.Logger) *Worker {
	return &Worker{source: source, sink: sink, log: log, pollTimeout: 5 * time.Second, retryDelay: time.Second}
}

// Run processes messages until ctx is done. Delivery failures are logged and
// the message is dropped; source failures back off for retryDelay.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		msg, err := w.source.Pop(ctx, w.pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			w.log.Error().Err(err).Msg("notification: pop failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.retryDelay):
			}
			continue
		}
		if msg == nil {
			continue
		}
		w.deliver(ctx, *msg)
	}
}

func (w *Worker) deliver(ctx context.Context, msg Message) {
	err := w.sink.Notify(ctx, msg)
	metrics.NotificationsTotal.WithLabelValues(string(msg.Kind), "deliver", metrics.Result(err)).Inc()
	if err != nil {
		w.log.Error().Err(err).Str("kind", string(msg.Kind)).Str("message_id", msg.ID).Msg("notification: delivery failed")
		return
	}
	w.log.Info().Str("kind", string(msg.Kind)).Str("message_id", msg.ID).Msg("notification: delivered")
}
