//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives one domain event. Implementations are best-effort:
// a sink that cannot keep up drops, it never blocks the fanout.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IIdentityRegistry maps an active connection to its display identity.
type IIdentityRegistry interface {
	Join(conn domain.ConnectionID, identity domain.Identity)
	Leave(conn domain.ConnectionID) (domain.Identity, bool)
	Lookup(conn domain.ConnectionID) (domain.Identity, bool)
}

// ISessionSet exposes a snapshot of the sinks of every live connection,
// whatever their join state. The broadcast goes to all sockets.
type ISessionSet interface {
	LiveSinks() []EventSink
}

// ISinkLocator resolves the sink of one specific connection, used for
// events that must reach the originator only.
type ISinkLocator interface {
	SinkFor(conn domain.ConnectionID) (EventSink, bool)
}
