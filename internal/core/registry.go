// Package core holds the in-memory registries behind the messaging server:
// presence, rooms, the message store, private conversations, and offline
// mailboxes. All state lives in one Registry guarded by a single RWMutex so
// cross-registry operations (capacity-checked joins, atomic mailbox drains)
// stay consistent without lock ordering concerns.
package core

import (
	"sync"
	"sync/atomic"
	"time"
)

// SendTimeout bounds how long a push to one session's send channel may block.
const SendTimeout = 50 * time.Millisecond

// maxMailboxDepth caps one user's offline queue; the oldest entry is evicted
// when a new message would exceed it.
const maxMailboxDepth = 500

// defaultSendBuf is the per-session outbound channel capacity.
const defaultSendBuf = 64

// Registry is the shared mutable state accessed by every connection session.
// Construct one per process (or per test) with NewRegistry and inject it;
// there are no package-level singletons.
type Registry struct {
	mu sync.RWMutex

	// Presence.
	sessions   map[string]*session            // handle id → session
	byUser     map[string]map[string]*session // user id → handle id → session
	nextHandle atomic.Uint64

	// Rooms.
	rooms   map[string]*room
	members map[string]map[string]struct{} // room id → user ids

	// Messages.
	messages map[string]*message
	logs     map[string][]string // conversation id → message ids, append order

	// Private conversations.
	conversations map[string]*conversation
	byParticipant map[string]map[string]struct{} // user id → conversation ids

	// Offline mailboxes.
	mailboxes map[string][]string // user id → message ids, FIFO
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:      make(map[string]*session),
		byUser:        make(map[string]map[string]*session),
		rooms:         make(map[string]*room),
		members:       make(map[string]map[string]struct{}),
		messages:      make(map[string]*message),
		logs:          make(map[string][]string),
		conversations: make(map[string]*conversation),
		byParticipant: make(map[string]map[string]struct{}),
		mailboxes:     make(map[string][]string),
	}
}

// Stats is a point-in-time summary used by metrics logging and /health.
type Stats struct {
	Sessions      int
	OnlineUsers   int
	Rooms         int
	Messages      int
	Conversations int
	Mailboxes     int
}

// Stats returns current registry counts.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Sessions:      len(r.sessions),
		OnlineUsers:   len(r.byUser),
		Rooms:         len(r.rooms),
		Messages:      len(r.messages),
		Conversations: len(r.conversations),
		Mailboxes:     len(r.mailboxes),
	}
}
