// Package registry tracks the identity and room of every live connection.
package registry

import (
	"errors"
	"sync"
)

var (
	// ErrDuplicateConnection means a connection identifier was registered twice.
	// The transport assigns unique identifiers, so this is defensive.
	ErrDuplicateConnection = errors.New("connection already registered")

	// ErrUnknownConnection means an attach was attempted for a connection that
	// was never registered.
	ErrUnknownConnection = errors.New("connection not registered")
)

// Entry holds what a connection has declared about itself. A connection that
// has not yet joined a room has an empty RoomID.
type Entry struct {
	DisplayName string
	RoomID      string
}

// Attached reports whether the connection has joined a room.
func (e Entry) Attached() bool { return e.RoomID != "" }

// Registry is the single in-memory map of live connections. The hub owns one
// instance and is the only writer; the mutex keeps reads from HTTP handlers
// (stats) safe alongside the hub's dispatch loop.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register inserts an unattached entry for a newly established connection.
func (r *Registry) Register(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[connID]; ok {
		return ErrDuplicateConnection
	}
	r.entries[connID] = Entry{}
	return nil
}

// Attach records the display name and room declared in a join event.
// Re-joining overwrites the previous name and room.
func (r *Registry) Attach(connID, displayName, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[connID]; !ok {
		return ErrUnknownConnection
	}
	r.entries[connID] = Entry{DisplayName: displayName, RoomID: roomID}
	return nil
}

// Lookup returns the entry for a connection. A missing entry is a normal
// outcome, e.g. a connection that disconnected before joining.
func (r *Registry) Lookup(connID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[connID]
	return entry, ok
}

// Remove deletes the entry for a connection. Removing an absent entry is a no-op.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, connID)
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}
