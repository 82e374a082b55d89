package ws

import (
	"encoding/json"
	"log/slog"

	"github.com/Gooichand/JustCoding-ECWoC-26/internal/protocol"
	"github.com/Gooichand/JustCoding-ECWoC-26/internal/registry"
)

// Router dispatches inbound named events. It runs exclusively on the hub's
// dispatch goroutine, so registry and room mutations inside one handler are
// atomic with respect to every other event.
type Router struct {
	reg      *registry.Registry
	rooms    *Multiplexer
	log      *slog.Logger
	handlers map[string]func(sender Sink, payload json.RawMessage)
}

func NewRouter(reg *registry.Registry, rooms *Multiplexer, log *slog.Logger) *Router {
	rt := &Router{
		reg:   reg,
		rooms: rooms,
		log:   log,
	}
	rt.handlers = map[string]func(Sink, json.RawMessage){
		protocol.EventJoin:       rt.handleJoin,
		protocol.EventCodeChange: rt.handleCodeChange,
		protocol.EventSendChat:   rt.handleChat,
		protocol.EventTyping:     rt.handleTyping,
	}
	return rt
}

// Dispatch routes a single inbound event to completion. Unknown events and
// events without a room are dropped; the sender gets no feedback either way.
func (rt *Router) Dispatch(sender Sink, env protocol.Envelope) {
	handler, ok := rt.handlers[env.Event]
	if !ok {
		rt.log.Debug("unknown event", "event", env.Event, "conn", sender.ID())
		return
	}
	handler(sender, env.Payload)
}

// decode unmarshals an event payload and enforces the one shape rule every
// event shares: a non-empty roomId. Everything else passes through as sent.
func (rt *Router) decode(event string, payload json.RawMessage, dst any, roomID func() string) bool {
	if err := json.Unmarshal(payload, dst); err != nil {
		rt.log.Warn("malformed payload", "event", event, "err", err)
		return false
	}
	if roomID() == "" {
		rt.log.Warn("event without room", "event", event)
		return false
	}
	return true
}

func (rt *Router) handleJoin(sender Sink, payload json.RawMessage) {
	var p protocol.JoinPayload
	if !rt.decode(protocol.EventJoin, payload, &p, func() string { return p.RoomID }) {
		return
	}

	// A re-join moves the connection: it stops receiving the old room's
	// traffic before it starts receiving the new room's.
	if prev, ok := rt.reg.Lookup(sender.ID()); ok && prev.Attached() && prev.RoomID != p.RoomID {
		rt.rooms.Unsubscribe(prev.RoomID, sender.ID())
	}

	if err := rt.reg.Attach(sender.ID(), p.DisplayName, p.RoomID); err != nil {
		rt.log.Warn("attach failed", "conn", sender.ID(), "room", p.RoomID, "err", err)
		return
	}
	rt.rooms.Subscribe(p.RoomID, sender)

	rt.log.Info("joined room", "conn", sender.ID(), "room", p.RoomID, "name", p.DisplayName)
	rt.rooms.BroadcastToRoom(p.RoomID, sender.ID(),
		protocol.EventUserJoined, protocol.JoinedNotice(p.DisplayName))
}

func (rt *Router) handleCodeChange(sender Sink, payload json.RawMessage) {
	var p protocol.CodeChangePayload
	if !rt.decode(protocol.EventCodeChange, payload, &p, func() string { return p.RoomID }) {
		return
	}
	rt.rooms.BroadcastToRoom(p.RoomID, sender.ID(), protocol.EventCodeUpdate, p.Code)
}

func (rt *Router) handleChat(sender Sink, payload json.RawMessage) {
	var p protocol.ChatPayload
	if !rt.decode(protocol.EventSendChat, payload, &p, func() string { return p.RoomID }) {
		return
	}
	rt.rooms.BroadcastToRoom(p.RoomID, sender.ID(), protocol.EventReceiveChat,
		protocol.ChatNotice{DisplayName: p.DisplayName, Message: p.Message})
}

func (rt *Router) handleTyping(sender Sink, payload json.RawMessage) {
	var p protocol.TypingPayload
	if !rt.decode(protocol.EventTyping, payload, &p, func() string { return p.RoomID }) {
		return
	}
	rt.rooms.BroadcastToRoom(p.RoomID, sender.ID(),
		protocol.EventShowTyping, protocol.TypingNotice(p.DisplayName))
}
