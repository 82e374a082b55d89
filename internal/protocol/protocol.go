// Package protocol defines the named-event wire format shared by the
// collaboration server and its clients.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound event names (client -> server).
const (
	EventJoin       = "join"
	EventCodeChange = "code-change"
	EventSendChat   = "send-chat"
	EventTyping     = "typing"
)

// Outbound event names (server -> client).
const (
	EventUserJoined  = "user-joined"
	EventCodeUpdate  = "code-update"
	EventReceiveChat = "receive-chat"
	EventShowTyping  = "show-typing"
	EventUserLeft    = "user-left"
)

// Envelope frames every message on the transport. Payload stays raw on the
// inbound path so the router can decode it against the event's own shape.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses a raw frame into an Envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// Encode frames an outbound event with its payload, ready to write to a socket.
func Encode(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	data, err := json.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", event, err)
	}
	return data, nil
}

// JoinPayload carries a connection's declared identity and room.
type JoinPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

// CodeChangePayload carries a full document snapshot. The snapshot is opaque
// to the server; the newest one a peer receives replaces its local view.
type CodeChangePayload struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

// ChatPayload is an inbound chat message.
type ChatPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
	Message     string `json:"message"`
}

// TypingPayload signals that a member is currently typing.
type TypingPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

// ChatNotice is the outbound shape of a relayed chat message.
type ChatNotice struct {
	DisplayName string `json:"displayName"`
	Message     string `json:"message"`
}

// Presence notices are plain strings rendered server-side.
func JoinedNotice(name string) string { return fmt.Sprintf("%s joined the room", name) }
func LeftNotice(name string) string   { return fmt.Sprintf("%s left the room", name) }
func TypingNotice(name string) string { return fmt.Sprintf("%s is typing...", name) }
