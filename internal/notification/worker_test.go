package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// drainingSource yields queued messages, then cancels the run once drained.
type drainingSource struct {
	mu     sync.Mutex
	queue  []Message
	errs   []error
	cancel context.CancelFunc
}

func (s *drainingSource) Pop(ctx context.Context, _ time.Duration) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	if len(s.queue) == 0 {
		s.cancel()
		return nil, nil
	}
	msg := s.queue[0]
	s.queue = s.queue[1:]
	return &msg, nil
}

func TestWorker_DeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &drainingSource{
		queue: []Message{
			NewMessage(KindVerification, "a@example.com", "t1", nil),
			NewMessage(KindOrgInvite, "b@example.com", "t2", nil),
		},
		cancel: cancel,
	}
	sink := &recordingNotifier{}

	if err := NewWorker(src, sink, zerolog.Nop()).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	msgs := sink.messages()
	if len(msgs) != 2 || msgs[0].Token != "t1" || msgs[1].Token != "t2" {
		t.Fatalf("delivered = %+v", msgs)
	}
}

func TestWorker_ContinuesAfterFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &drainingSource{
		queue:  []Message{NewMessage(KindWebsiteInvite, "c@example.com", "t3", nil), NewMessage(KindVerification, "d@example.com", "t4", nil)},
		errs:   []error{errors.New("redis down")},
		cancel: cancel,
	}
	sink := &recordingNotifier{err: errors.New("smtp refused")}
	w := NewWorker(src, sink, zerolog.Nop())
	w.retryDelay = time.Millisecond

	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(sink.messages()); got != 2 {
		t.Fatalf("delivery attempts = %d, want 2", got)
	}
}
