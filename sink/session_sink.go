package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chat-relay/domain/event"
)

// SessionSink bridges the fanout to one connection's write pump through a
// buffered channel. Consume never blocks longer than the delivery timeout:
// a slow or unresponsive recipient loses events instead of stalling the
// delivery to everybody else.
type SessionSink struct {
	log     *slog.Logger
	timeout time.Duration
	events  chan event.DomainEvent
	closed  chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

func NewSessionSink(log *slog.Logger, bufferSize int, timeout time.Duration) *SessionSink {
	return &SessionSink{
		log:     log,
		timeout: timeout,
		events:  make(chan event.DomainEvent, bufferSize),
		closed:  make(chan struct{}),
	}
}

// Consume is called by the fanout worker. It redirects the event to the
// owner of the channel, the transport write pump takes it from there.
func (s *SessionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.closed:
		// Recipient disconnected mid-broadcast: skipped, not an error.
		return nil
	default:
	}

	select {
	case s.events <- e:
		return nil
	case <-s.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout):
		s.dropped.Add(1)
		s.log.Warn(fmt.Sprintf("Backpressure: dropping %s event for slow recipient", e.Kind()))
		return nil
	}
}

// Events is drained by the connection's write pump.
func (s *SessionSink) Events() <-chan event.DomainEvent {
	return s.events
}

// Closed unblocks pumps waiting on a disconnected session.
func (s *SessionSink) Closed() <-chan struct{} {
	return s.closed
}

// Close is idempotent. The events channel itself is never closed so a
// concurrent Consume can never panic on a closed channel.
func (s *SessionSink) Close() {
	s.once.Do(func() {
		close(s.closed)
	})
}

func (s *SessionSink) Dropped() uint64 {
	return s.dropped.Load()
}
