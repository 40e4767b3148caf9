package domain

import (
	"time"
)

type Command interface {
	Connection() ConnectionID
}

// PostMessageCommand carries one validated send intent through the relay
// pipeline. Author is resolved by the hub at dispatch time, the store
// assigns the ID and the authoritative timestamp later.
type PostMessageCommand struct {
	Conn        ConnectionID
	Author      Identity
	Content     string
	SubmittedAt time.Time
}

func (c PostMessageCommand) Connection() ConnectionID {
	return c.Conn
}
