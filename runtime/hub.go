package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime/workers"
)

// RelayHub is the concurrency core: it owns the authoritative set of live
// sessions, validates inbound send intents, and feeds the persist/broadcast
// pipeline. Mutations of the live set are serialized behind one mutex;
// persistence and fan-out run on dedicated supervised workers so no store
// I/O ever happens while the session set is locked.
//
// Ordering: a single relay worker consumes the command channel and a single
// fanout worker consumes the event channel, so broadcasts always follow the
// append completion order and no event is ever fanned out twice.
type RelayHub struct {
	mu       sync.Mutex
	log      *slog.Logger
	sessions map[domain.ConnectionID]*Session

	registry   contract.IIdentityRegistry
	supervisor contract.ISupervisor
	messages   repositories.IMessageRepository
	monitor    *observability.Monitor

	commands chan domain.Command
	events   chan event.DomainEvent

	deliveryTimeout  time.Duration
	metricInterval   time.Duration
	maxContentLength int
}

func NewRelayHub(log *slog.Logger, supervisor contract.ISupervisor,
	registry contract.IIdentityRegistry, messages repositories.IMessageRepository,
	monitor *observability.Monitor, bufferSize, maxContentLength int,
	deliveryTimeout, metricInterval time.Duration) *RelayHub {
	return &RelayHub{
		log:              log,
		sessions:         make(map[domain.ConnectionID]*Session),
		registry:         registry,
		supervisor:       supervisor,
		messages:         messages,
		monitor:          monitor,
		commands:         make(chan domain.Command, bufferSize),
		events:           make(chan event.DomainEvent, bufferSize),
		deliveryTimeout:  deliveryTimeout,
		metricInterval:   metricInterval,
		maxContentLength: maxContentLength,
	}
}

// Attach adds a freshly connected session to the live set, in Connecting
// state. Broadcasts reach every attached socket, joined or not.
func (h *RelayHub) Attach(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[session.ID()] = session
}

// Session returns the live session for a connection, if any.
func (h *RelayHub) Session(conn domain.ConnectionID) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[conn]
	return s, ok
}

// OnJoin registers the identity and acknowledges with a welcome delivered
// to the joining connection only. History is NOT replayed here: clients
// pull it over the request/response path, and their id-based dedup absorbs
// the race between that fetch and the live stream.
func (h *RelayHub) OnJoin(ctx context.Context, conn domain.ConnectionID, identity domain.Identity) {
	if identity == "" {
		h.log.Info(fmt.Sprintf("Received join without identity for connection %s", conn))
		return
	}

	session, ok := h.Session(conn)
	if !ok {
		h.log.Warn(fmt.Sprintf("Join for unknown connection %s", conn))
		return
	}
	if err := session.Join(identity); err != nil {
		h.log.Warn("Join refused", "connection", conn, "error", err)
		return
	}

	h.registry.Join(conn, identity)
	h.monitor.IncrJoins()
	h.log.Info(fmt.Sprintf("%s joined with connection %s", identity, conn))

	welcome := event.Welcome{Text: fmt.Sprintf("Welcome %s", identity)}
	if err := session.Sink().Consume(ctx, welcome); err != nil {
		h.log.Warn("Welcome delivery failed", "connection", conn, "error", err)
	}
}

// OnSend validates a send intent at the hub boundary and dispatches it to
// the relay worker. Missing identity or empty content is a silent, logged
// no-op: a buggy or malicious client must not be able to push unvalidated
// data into the pipeline.
func (h *RelayHub) OnSend(ctx context.Context, conn domain.ConnectionID, content string) {
	session, ok := h.Session(conn)
	if !ok || !session.CanSend() {
		h.log.Info(fmt.Sprintf("Dropping send from connection %s without joined identity", conn))
		return
	}

	identity, ok := h.registry.Lookup(conn)
	if !ok {
		h.log.Info(fmt.Sprintf("Dropping send from connection %s: no registered identity", conn))
		return
	}

	if strings.TrimSpace(content) == "" {
		h.log.Info(fmt.Sprintf("Dropping empty message from %s", identity))
		return
	}
	if h.maxContentLength > 0 && len(content) > h.maxContentLength {
		h.log.Info(fmt.Sprintf("Dropping oversized message from %s (%d bytes)", identity, len(content)))
		return
	}

	cmd := domain.PostMessageCommand{
		Conn:        conn,
		Author:      identity,
		Content:     content,
		SubmittedAt: time.Now().UTC(),
	}

	select {
	case h.commands <- cmd:
	default:
		// Backpressure: fail the send towards the sender rather than block
		// the transport read pump.
		h.monitor.IncrSendsRejected()
		h.log.Warn("Command channel full, rejecting send", "connection", conn)
		if err := session.Sink().Consume(ctx, event.SendRejected{Reason: "could not send"}); err != nil {
			h.log.Warn("Send rejection delivery failed", "connection", conn, "error", err)
		}
	}
}

// OnDisconnect removes the session from the live set. Idempotent: transport
// close handlers and application-level teardown may both call it.
func (h *RelayHub) OnDisconnect(conn domain.ConnectionID) {
	h.mu.Lock()
	session, ok := h.sessions[conn]
	if ok {
		delete(h.sessions, conn)
	}
	h.mu.Unlock()

	identity, hadIdentity := h.registry.Leave(conn)
	if !ok {
		return
	}

	if session.Disconnect() {
		h.monitor.IncrDisconnects()
	}
	if hadIdentity {
		h.log.Info(fmt.Sprintf("%s (%s) disconnected", identity, conn))
	} else {
		h.log.Info(fmt.Sprintf("Connection %s disconnected without a joined identity", conn))
	}
}

// LiveSinks snapshots the sinks of every live session so the fanout can
// iterate without holding the session-set lock.
func (h *RelayHub) LiveSinks() []contract.EventSink {
	h.mu.Lock()
	defer h.mu.Unlock()

	sinks := make([]contract.EventSink, 0, len(h.sessions))
	for _, session := range h.sessions {
		sinks = append(sinks, session.Sink())
	}
	return sinks
}

// SinkFor resolves the sink of one connection, for originator-only events.
func (h *RelayHub) SinkFor(conn domain.ConnectionID) (contract.EventSink, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.sessions[conn]
	if !ok {
		return nil, false
	}
	return session.Sink(), true
}

// Start registers the pipeline workers and runs the supervisor. It blocks
// until the context is canceled, callers run it in a dedicated goroutine.
func (h *RelayHub) Start(ctx context.Context) error {
	relay := workers.NewRelayWorker(h.log, h.messages, h.commands, h.events, h, h.monitor)
	fanout := workers.NewEventFanout(h.log, h, h.events, h.deliveryTimeout, h.monitor)
	telemetry := workers.NewTelemetryWorker(h.log, h.monitor, h.metricInterval,
		workers.WatchedChannel{Name: "commands", Length: func() int { return len(h.commands) }, Capacity: cap(h.commands)},
		workers.WatchedChannel{Name: "events", Length: func() int { return len(h.events) }, Capacity: cap(h.events)},
	)

	h.supervisor.Add(relay, fanout, telemetry)

	h.log.Info("Starting relay hub and all supervised workers")
	h.supervisor.Run(ctx)
	return nil
}

// Stop initiates a graceful shutdown: workers stop on context cancellation
// and the supervisor waits for them to drain.
func (h *RelayHub) Stop() {
	h.log.Info("Requesting relay hub shutdown")
	h.supervisor.Stop()
}
