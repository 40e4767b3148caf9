package runtime

import (
	"sync"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/sink"
)

// Session is the per-connection state machine:
//
//	Connecting -> Joined -> Disconnected
//
// Disconnected is terminal and reachable from any state. The hub owns the
// authoritative set of live sessions and is the only mutator.
type Session struct {
	mu       sync.Mutex
	id       domain.ConnectionID
	state    domain.SessionState
	identity domain.Identity
	sink     *sink.SessionSink
}

func NewSession(id domain.ConnectionID, eventSink *sink.SessionSink) *Session {
	return &Session{
		id:    id,
		state: domain.Connecting,
		sink:  eventSink,
	}
}

func (s *Session) ID() domain.ConnectionID {
	return s.id
}

func (s *Session) Sink() *sink.SessionSink {
	return s.sink
}

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Join transitions the session to Joined. A second join on a live session
// just overwrites the identity, mirroring the registry semantics.
func (s *Session) Join(identity domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.Disconnected {
		return errors.ErrSessionClosed
	}
	s.identity = identity
	s.state = domain.Joined
	return nil
}

func (s *Session) Identity() (domain.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.Joined {
		return "", false
	}
	return s.identity, true
}

// CanSend is true only in the Joined state.
func (s *Session) CanSend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == domain.Joined
}

// Disconnect is idempotent and closes the sink so pumps unblock.
// Returns false when the session was already disconnected.
func (s *Session) Disconnect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.Disconnected {
		return false
	}
	s.state = domain.Disconnected
	s.sink.Close()
	return true
}
