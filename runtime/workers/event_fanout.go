package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"
)

// EventFanout broadcasts domain events to every live connection.
//
// It provides best-effort fan-out: per-recipient delivery runs in parallel
// and is bounded by the delivery timeout, so one slow recipient never
// stalls the others and a mid-broadcast disconnect is simply skipped.
// Being the single consumer of the event channel, it preserves the append
// completion order and fans each event out exactly once.
type EventFanout struct {
	log             *slog.Logger
	sessions        contract.ISessionSet
	events          <-chan event.DomainEvent
	deliveryTimeout time.Duration
	monitor         *observability.Monitor
}

func NewEventFanout(log *slog.Logger, sessions contract.ISessionSet,
	events <-chan event.DomainEvent, deliveryTimeout time.Duration,
	monitor *observability.Monitor) *EventFanout {
	return &EventFanout{
		log:             log,
		sessions:        sessions,
		events:          events,
		deliveryTimeout: deliveryTimeout,
		monitor:         monitor,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout delivers one event to the snapshot of live sinks. The next event
// is not fanned out before every recipient of this one was attempted, so
// per-connection ordering follows the event channel order.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	sinks := w.sessions.LiveSinks()

	deliveryCtx, cancel := context.WithTimeout(ctx, w.deliveryTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, s := range sinks {
		wg.Add(1)
		go func(s contract.EventSink) {
			defer wg.Done()
			if err := s.Consume(deliveryCtx, evt); err != nil {
				w.monitor.IncrBroadcastsDropped()
				w.log.Warn("Recipient delivery failed", "kind", evt.Kind(), "error", err)
				return
			}
			w.monitor.IncrBroadcastsDelivered()
		}(s)
	}
	wg.Wait()
}
