// Package presence tracks which user identities currently have a live
// signaling connection. The registry is the single source of truth for
// "is user X reachable right now" and the only shared mutable state in the
// relay; all access is serialized behind one mutex.
package presence

import "sync"

// Conn is an opaque handle to one live client connection. The transport
// layer owns the connection; the registry only stores and compares handles.
// Implementations must be comparable (the guarded removal in RemoveIfCurrent
// relies on handle identity).
type Conn interface {
	// ID returns a stable identifier for this physical connection.
	ID() string
}

// Sink observes presence transitions. Calls are made outside the registry
// lock, in no particular cross-user order.
type Sink interface {
	PresenceChanged(userID string, online bool)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(userID string, online bool)

func (f SinkFunc) PresenceChanged(userID string, online bool) {
	f(userID, online)
}

// Registry maps a user identity to its active connection handle. At most one
// handle is stored per identity; a reconnect overwrites (last writer wins)
// and absence means offline.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Conn

	sink Sink
}

// NewRegistry returns an empty registry. sink may be nil.
func NewRegistry(sink Sink) *Registry {
	return &Registry{
		entries: make(map[string]Conn),
		sink:    sink,
	}
}

// SetOnline inserts or overwrites the entry for userID. It is idempotent in
// registry state; every call emits one "online" transition to the sink.
func (r *Registry) SetOnline(userID string, conn Conn) {
	r.mu.Lock()
	r.entries[userID] = conn
	r.mu.Unlock()

	if r.sink != nil {
		r.sink.PresenceChanged(userID, true)
	}
}

// Lookup returns the connection handle for userID, if any. Pure read.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.entries[userID]
	return conn, ok
}

// RemoveIfCurrent deletes the entry for userID only when the stored handle
// is exactly conn. A stale disconnect racing a reconnect therefore cannot
// evict the newer connection's entry. Returns true when an entry was
// removed, in which case one "offline" transition is emitted.
func (r *Registry) RemoveIfCurrent(userID string, conn Conn) bool {
	r.mu.Lock()
	current, ok := r.entries[userID]
	if !ok || current != conn {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, userID)
	r.mu.Unlock()

	if r.sink != nil {
		r.sink.PresenceChanged(userID, false)
	}
	return true
}

// OnlineUsers returns a snapshot of all identities with a live connection.
func (r *Registry) OnlineUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.entries))
	for userID := range r.entries {
		users = append(users, userID)
	}
	return users
}
