// Package ws implements the real-time collaboration core: one hub per server
// process routes join, code-change, chat, and typing events between the
// members of named rooms over WebSocket connections.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Gooichand/JustCoding-ECWoC-26/internal/protocol"
	"github.com/Gooichand/JustCoding-ECWoC-26/internal/registry"
)

// session is a live connection as the hub sees it: a Sink plus the ability to
// tear down its write side. *Client implements it; tests use fakes.
type session interface {
	Sink
	// closeSend stops the session's writer. Called only from the hub's
	// dispatch goroutine, after the session has left every room, so no
	// broadcast can race with it.
	closeSend()
}

type inboundEvent struct {
	sender session
	env    protocol.Envelope
}

// Hub owns all shared collaboration state. All registry and room mutations
// happen on the single goroutine running Run, so at most one event handler
// body executes at a time and no handler observes another's partial effects.
// Deliveries themselves are asynchronous: handlers only enqueue frames onto
// per-connection buffers, and slow recipients never stall dispatch.
type Hub struct {
	reg    *registry.Registry
	rooms  *Multiplexer
	router *Router
	log    *slog.Logger

	register   chan session
	unregister chan session
	inbound    chan inboundEvent

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	reg := registry.New()
	rooms := NewMultiplexer(log)
	return &Hub{
		reg:        reg,
		rooms:      rooms,
		router:     NewRouter(reg, rooms, log),
		log:        log,
		register:   make(chan session),
		unregister: make(chan session),
		inbound:    make(chan inboundEvent, 256),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run is the hub's dispatch loop. It must run in its own goroutine and is the
// only goroutine that touches room membership or registry entries.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			return

		case s := <-h.register:
			h.handleConnect(s)

		case s := <-h.unregister:
			h.handleDisconnect(s)

		case ev := <-h.inbound:
			h.router.Dispatch(ev.sender, ev.env)
		}
	}
}

// handleConnect registers a freshly established connection, still unattached
// to any room until its first join event.
func (h *Hub) handleConnect(s session) {
	if err := h.reg.Register(s.ID()); err != nil {
		// Duplicate identifiers cannot happen with UUIDs; treat it as fatal
		// to this connection's setup.
		h.log.Error("register connection", "conn", s.ID(), "err", err)
		s.closeSend()
		return
	}
	h.log.Info("connection established", "conn", s.ID(), "connections", h.reg.Len())
}

// handleDisconnect runs the departure sequence: notify the room the
// connection belonged to, then forget the connection entirely. Graceful
// closes and abrupt network losses both land here.
func (h *Hub) handleDisconnect(s session) {
	entry, ok := h.reg.Lookup(s.ID())
	if ok && entry.Attached() {
		h.rooms.Unsubscribe(entry.RoomID, s.ID())
		h.rooms.BroadcastToRoom(entry.RoomID, s.ID(),
			protocol.EventUserLeft, protocol.LeftNotice(entry.DisplayName))
	}
	h.reg.Remove(s.ID())
	s.closeSend()
	h.log.Info("connection closed", "conn", s.ID(), "connections", h.reg.Len())
}

// submit queues one inbound event for dispatch. Events from a single
// connection arrive here in read order, preserving per-sender FIFO.
func (h *Hub) submit(sender session, env protocol.Envelope) {
	select {
	case h.inbound <- inboundEvent{sender: sender, env: env}:
	case <-h.ctx.Done():
	}
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int { return h.reg.Len() }

// RoomCount returns the number of rooms with members.
func (h *Hub) RoomCount() int { return h.rooms.RoomCount() }

// ActiveRooms returns the identifiers of rooms with members.
func (h *Hub) ActiveRooms() []string { return h.rooms.ActiveRooms() }

// Shutdown stops the dispatch loop and waits for it to drain, or gives up
// after the timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()

	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
		return errors.New("hub shutdown timed out")
	}
}
