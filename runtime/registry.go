package runtime

import (
	"sync"

	"chat-relay/domain"
)

// IdentityRegistry maps an active connection to its display identity.
// Initialized empty at process start, mutated only through Join and Leave,
// torn down implicitly on process exit.
//
// No uniqueness check is performed: several connections may claim the same
// display name, uniqueness only exists for registered accounts.
type IdentityRegistry struct {
	mu         sync.RWMutex
	identities map[domain.ConnectionID]domain.Identity
}

func NewIdentityRegistry() *IdentityRegistry {
	return &IdentityRegistry{
		identities: make(map[domain.ConnectionID]domain.Identity),
	}
}

// Join records the identity for a connection, overwriting any prior one.
func (r *IdentityRegistry) Join(conn domain.ConnectionID, identity domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[conn] = identity
}

// Leave removes the mapping and returns the identity that was registered.
// Leaving an absent connection is a no-op, not an error.
func (r *IdentityRegistry) Leave(conn domain.ConnectionID) (domain.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.identities[conn]
	if ok {
		delete(r.identities, conn)
	}
	return identity, ok
}

func (r *IdentityRegistry) Lookup(conn domain.ConnectionID) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.identities[conn]
	return identity, ok
}

// Size is used by telemetry to report the number of joined connections.
func (r *IdentityRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identities)
}
