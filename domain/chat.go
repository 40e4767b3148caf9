package domain

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the display name attached to a connection after a join.
// It is not unique across connections: two authenticated users may display
// the same name in chat, uniqueness only exists at the credential level.
type Identity string

// ConnectionID identifies one transport connection for its whole lifetime.
type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

// Message is the durable, server-assigned record of one send.
// The ID is assigned exactly once, by the repository at append time,
// never by a client. Messages are immutable once persisted.
type Message struct {
	ID        uuid.UUID
	Author    Identity
	Content   string
	CreatedAt time.Time
}

type SessionState int

const (
	Connecting SessionState = iota
	Joined
	Disconnected
)

func (s SessionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Joined:
		return "joined"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
