package ws

import (
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/Gooichand/JustCoding-ECWoC-26/internal/protocol"
)

// Sink is the write side of one subscribed connection.
type Sink interface {
	ID() string
	// Enqueue hands a frame to the connection without blocking. It returns
	// false when the connection can no longer accept writes.
	Enqueue(data []byte) bool
}

// Broadcaster is the capability the event router needs to fan an event out to
// a room. Kept narrow so tests can swap in a recording implementation.
type Broadcaster interface {
	BroadcastToRoom(roomID, excludeID, event string, payload any)
}

// Multiplexer keeps the room addressing sets: roomID -> subscribed sinks.
// A room is purely a label; it exists exactly as long as it has members.
type Multiplexer struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Sink
	log   *slog.Logger
}

func NewMultiplexer(log *slog.Logger) *Multiplexer {
	return &Multiplexer{
		rooms: make(map[string]map[string]Sink),
		log:   log,
	}
}

// Subscribe adds a sink to a room's addressing set.
func (m *Multiplexer) Subscribe(roomID string, s Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.rooms[roomID]
	if !ok {
		members = make(map[string]Sink)
		m.rooms[roomID] = members
	}
	members[s.ID()] = s
}

// Unsubscribe removes a connection from a room, dropping the room once empty.
func (m *Multiplexer) Unsubscribe(roomID, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if members, ok := m.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(m.rooms, roomID)
		}
	}
}

// BroadcastToRoom delivers an event to every member of a room except
// excludeID. Delivery is fire-and-forget: a recipient that cannot accept the
// frame is skipped and the rest still receive it.
func (m *Multiplexer) BroadcastToRoom(roomID, excludeID, event string, payload any) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		m.log.Error("encode broadcast", "event", event, "room", roomID, "err", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for connID, sink := range m.rooms[roomID] {
		if connID == excludeID {
			continue
		}
		if !sink.Enqueue(data) {
			m.log.Debug("dropped frame for saturated connection",
				"event", event, "room", roomID, "conn", connID)
		}
	}
}

// RoomCount returns the number of rooms with at least one member.
func (m *Multiplexer) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.rooms)
}

// ActiveRooms returns the identifiers of all rooms with members.
func (m *Multiplexer) ActiveRooms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return lo.Keys(m.rooms)
}

// Members returns the number of connections subscribed to a room.
func (m *Multiplexer) Members(roomID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.rooms[roomID])
}
