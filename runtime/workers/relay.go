package workers

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"chat-relay/repositories"
)

// RelayWorker is the single consumer of the command channel and therefore
// the ordering point of the whole relay: messages are appended to the store
// one at a time, and their broadcast events leave in append completion
// order. Store I/O happens here, never under the hub's session-set lock.
type RelayWorker struct {
	log      *slog.Logger
	messages repositories.IMessageRepository
	commands <-chan domain.Command
	events   chan<- event.DomainEvent
	sinks    contract.ISinkLocator
	monitor  *observability.Monitor
}

func NewRelayWorker(log *slog.Logger, messages repositories.IMessageRepository,
	commands <-chan domain.Command, events chan<- event.DomainEvent,
	sinks contract.ISinkLocator, monitor *observability.Monitor) *RelayWorker {
	return &RelayWorker{
		log:      log,
		messages: messages,
		commands: commands,
		events:   events,
		sinks:    sinks,
		monitor:  monitor,
	}
}

func (w *RelayWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping relay worker")
			return nil
		case cmd, ok := <-w.commands:
			if !ok {
				return nil
			}
			postCmd, ok := cmd.(domain.PostMessageCommand)
			if !ok {
				w.log.Warn("Unknown command type, skipping")
				continue
			}
			w.relay(ctx, postCmd)
		}
	}
}

// relay persists the message then emits its authoritative echo. On a store
// failure the send is reported to the originating connection only and no
// broadcast event is produced: unpersisted data never fans out.
func (w *RelayWorker) relay(ctx context.Context, cmd domain.PostMessageCommand) {
	message, err := w.messages.Append(cmd.Author, cmd.Content)
	if err != nil {
		w.monitor.IncrSendsRejected()
		w.log.Error("Append failed, notifying sender only",
			"connection", cmd.Conn,
			"author", cmd.Author,
			"error", err)
		w.reject(ctx, cmd.Conn)
		return
	}

	w.monitor.IncrMessagesRelayed()

	posted := event.MessagePosted{
		ID:      message.ID,
		Author:  message.Author,
		Content: message.Content,
		At:      message.CreatedAt,
	}
	select {
	case <-ctx.Done():
	case w.events <- posted:
	}
}

func (w *RelayWorker) reject(ctx context.Context, conn domain.ConnectionID) {
	sink, ok := w.sinks.SinkFor(conn)
	if !ok {
		// Sender already gone, nothing to report.
		return
	}
	if err := sink.Consume(ctx, event.SendRejected{Reason: "could not send"}); err != nil {
		w.log.Warn("Rejection delivery failed", "connection", conn, "error", err)
	}
}
