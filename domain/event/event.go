package event

import (
	"time"

	"github.com/google/uuid"

	"chat-relay/domain"
)

type DomainEvent interface {
	Kind() string
}

// MessagePosted is the authoritative echo of a persisted message. It is
// broadcast to every live connection, sender included: the sender needs its
// own echo to collapse the optimistic local entry.
type MessagePosted struct {
	ID      uuid.UUID
	Author  domain.Identity
	Content string
	At      time.Time
}

func (MessagePosted) Kind() string { return "message.posted" }

// Welcome acknowledges a successful join. Delivered only to the joiner.
type Welcome struct {
	Text string
}

func (Welcome) Kind() string { return "session.welcome" }

// SendRejected reports a failed send to the originating connection only.
type SendRejected struct {
	Reason string
}

func (SendRejected) Kind() string { return "message.rejected" }
