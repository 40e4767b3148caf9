// Package client implements the chat client's view of the conversation:
// an optimistic timeline that reconciles locally-originated entries with
// their authoritative server echoes, and deduplicates the race between the
// history pull and the live push stream.
package client

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"chat-relay/domain"
)

// Entry is one displayed line. A pending entry is a locally-originated
// message shown before server confirmation: it carries no server id yet.
type Entry struct {
	Message domain.Message
	Pending bool
}

// Timeline holds the confirmed messages in server order, the pending sends
// in submission order, and the set of already-seen server ids.
//
// Reconciliation is identity-based for the first round-trip (the optimistic
// entry has no id to match on): an incoming message whose author is self
// and whose content equals the oldest pending entry is the confirmation of
// that entry, not a second message. Once adopted, any further broadcast of
// the same id is suppressed by id.
type Timeline struct {
	mu        sync.Mutex
	self      domain.Identity
	confirmed []domain.Message
	pending   []string
	seen      map[uuid.UUID]struct{}
}

func NewTimeline(self domain.Identity) *Timeline {
	return &Timeline{
		self: self,
		seen: make(map[uuid.UUID]struct{}),
	}
}

// AppendLocal records an optimistic entry for a just-submitted send, so it
// can be displayed immediately.
func (t *Timeline) AppendLocal(content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, content)
}

// Apply folds one broadcast message in. Returns false when the timeline is
// unchanged (duplicate id).
func (t *Timeline) Apply(message domain.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.adopt(message)
}

// MergeHistory folds a history snapshot in. The pull path and the push
// path race freely: a broadcast may land before, during, or after the
// fetch resolves, and id-dedup keeps each message single either way.
func (t *Timeline) MergeHistory(messages []domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, message := range messages {
		t.adopt(message)
	}
}

// adopt records one authoritative message. An own message matching the
// oldest pending entry collapses that entry into the authoritative copy,
// one message, not two. The collapse runs on the first arrival of an id
// regardless of path, so a history snapshot carrying an own send settles
// the pending entry just like a live echo would. A duplicate id never
// collapses a second pending entry.
func (t *Timeline) adopt(message domain.Message) bool {
	if _, dup := t.seen[message.ID]; dup {
		return false
	}
	t.seen[message.ID] = struct{}{}

	if message.Author == t.self && len(t.pending) > 0 && t.pending[0] == message.Content {
		t.pending = t.pending[1:]
	}

	t.insert(message)
	return true
}

// insert keeps confirmed ordered by CreatedAt. Appends are the common
// case, history backfill pays the sort.
func (t *Timeline) insert(message domain.Message) {
	n := len(t.confirmed)
	if n == 0 || !message.CreatedAt.Before(t.confirmed[n-1].CreatedAt) {
		t.confirmed = append(t.confirmed, message)
		return
	}
	t.confirmed = append(t.confirmed, message)
	sort.SliceStable(t.confirmed, func(i, j int) bool {
		return t.confirmed[i].CreatedAt.Before(t.confirmed[j].CreatedAt)
	})
}

// Snapshot returns the displayed entries: confirmed messages in server
// order, then the still-unconfirmed optimistic sends.
func (t *Timeline) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := make([]Entry, 0, len(t.confirmed)+len(t.pending))
	for _, message := range t.confirmed {
		entries = append(entries, Entry{Message: message})
	}
	for _, content := range t.pending {
		entries = append(entries, Entry{
			Message: domain.Message{Author: t.self, Content: content},
			Pending: true,
		})
	}
	return entries
}

// Len is the number of displayed entries.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.confirmed) + len(t.pending)
}
