package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Gooichand/JustCoding-ECWoC-26/internal/protocol"
)

// fakeSession stands in for a WebSocket client: frames land in a buffered
// channel instead of a socket.
type fakeSession struct {
	id        string
	frames    chan []byte
	saturated bool
	closeOnce sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		id:     uuid.NewString(),
		frames: make(chan []byte, 64),
	}
}

func (f *fakeSession) ID() string { return f.id }

func (f *fakeSession) Enqueue(data []byte) bool {
	if f.saturated {
		return false
	}
	select {
	case f.frames <- data:
		return true
	default:
		return false
	}
}

func (f *fakeSession) closeSend() {
	f.closeOnce.Do(func() { close(f.frames) })
}

// next blocks until the session receives a frame and returns its envelope.
func (f *fakeSession) next(t *testing.T) protocol.Envelope {
	t.Helper()
	select {
	case data, ok := <-f.frames:
		require.True(t, ok, "session closed while waiting for a frame")
		env, err := protocol.Decode(data)
		require.NoError(t, err)
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a frame")
		return protocol.Envelope{}
	}
}

// expectSilence asserts the session receives nothing for a short window.
func (f *fakeSession) expectSilence(t *testing.T) {
	t.Helper()
	select {
	case data, ok := <-f.frames:
		if ok {
			t.Fatalf("unexpected frame: %s", data)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(discardLogger())
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(time.Second) })
	return hub
}

func rawPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func connect(t *testing.T, hub *Hub) *fakeSession {
	t.Helper()
	s := newFakeSession()
	hub.register <- s
	require.Eventually(t, func() bool {
		_, ok := hub.reg.Lookup(s.id)
		return ok
	}, time.Second, time.Millisecond)
	return s
}

func join(t *testing.T, hub *Hub, s *fakeSession, roomID, name string) {
	t.Helper()
	hub.submit(s, protocol.Envelope{
		Event:   protocol.EventJoin,
		Payload: rawPayload(t, protocol.JoinPayload{RoomID: roomID, DisplayName: name}),
	})
	require.Eventually(t, func() bool {
		entry, ok := hub.reg.Lookup(s.id)
		return ok && entry.RoomID == roomID
	}, time.Second, time.Millisecond)
}

func asString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func TestJoinNotifiesEarlierMembersOnly(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(t, hub)
	join(t, hub, alice, "r1", "alice")

	bob := connect(t, hub)
	join(t, hub, bob, "r1", "bob")

	env := alice.next(t)
	require.Equal(t, protocol.EventUserJoined, env.Event)
	require.Equal(t, "bob joined the room", asString(t, env.Payload))

	// bob never hears about its own join
	bob.expectSilence(t)
}

func TestCodeChangeReachesRoomExceptSender(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(t, hub)
	join(t, hub, alice, "r1", "alice")
	bob := connect(t, hub)
	join(t, hub, bob, "r1", "bob")
	alice.next(t) // drain bob's join notice

	hub.submit(alice, protocol.Envelope{
		Event:   protocol.EventCodeChange,
		Payload: rawPayload(t, protocol.CodeChangePayload{RoomID: "r1", Code: "print('hi')"}),
	})

	env := bob.next(t)
	require.Equal(t, protocol.EventCodeUpdate, env.Event)
	require.Equal(t, "print('hi')", asString(t, env.Payload))

	alice.expectSilence(t)
}

func TestEventsNeverCrossRooms(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(t, hub)
	join(t, hub, alice, "r1", "alice")
	bob := connect(t, hub)
	join(t, hub, bob, "r2", "bob")

	hub.submit(alice, protocol.Envelope{
		Event:   protocol.EventCodeChange,
		Payload: rawPayload(t, protocol.CodeChangePayload{RoomID: "r1", Code: "x"}),
	})

	bob.expectSilence(t)
}

func TestTypingNotice(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(t, hub)
	join(t, hub, alice, "r1", "alice")
	bob := connect(t, hub)
	join(t, hub, bob, "r1", "bob")
	alice.next(t)

	hub.submit(bob, protocol.Envelope{
		Event:   protocol.EventTyping,
		Payload: rawPayload(t, protocol.TypingPayload{RoomID: "r1", DisplayName: "bob"}),
	})

	env := alice.next(t)
	require.Equal(t, protocol.EventShowTyping, env.Event)
	require.Equal(t, "bob is typing...", asString(t, env.Payload))
}

func TestDisconnectBroadcastsUserLeftAndCleansUp(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(t, hub)
	join(t, hub, alice, "r1", "alice")
	bob := connect(t, hub)
	join(t, hub, bob, "r1", "bob")
	alice.next(t)

	hub.unregister <- alice

	env := bob.next(t)
	require.Equal(t, protocol.EventUserLeft, env.Event)
	require.Equal(t, "alice left the room", asString(t, env.Payload))

	require.Eventually(t, func() bool {
		_, ok := hub.reg.Lookup(alice.id)
		return !ok
	}, time.Second, time.Millisecond)
	require.Equal(t, 1, hub.ClientCount())
}

func TestDisconnectBeforeJoinIsSilent(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(t, hub)
	join(t, hub, alice, "r1", "alice")

	ghost := connect(t, hub)
	hub.unregister <- ghost

	alice.expectSilence(t)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)
}

func TestRejoinMovesConnectionBetweenRooms(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(t, hub)
	join(t, hub, alice, "r1", "alice")
	bob := connect(t, hub)
	join(t, hub, bob, "r1", "bob")
	alice.next(t)

	// bob moves to r2; r1 traffic must no longer reach it
	join(t, hub, bob, "r2", "bob")

	hub.submit(alice, protocol.Envelope{
		Event:   protocol.EventCodeChange,
		Payload: rawPayload(t, protocol.CodeChangePayload{RoomID: "r1", Code: "x"}),
	})

	bob.expectSilence(t)

	entry, ok := hub.reg.Lookup(bob.id)
	require.True(t, ok)
	require.Equal(t, "r2", entry.RoomID)
}

func TestUnknownAndMalformedEventsAreDropped(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(t, hub)
	join(t, hub, alice, "r1", "alice")
	bob := connect(t, hub)
	join(t, hub, bob, "r1", "bob")
	alice.next(t)

	hub.submit(bob, protocol.Envelope{Event: "no-such-event", Payload: rawPayload(t, map[string]string{"roomId": "r1"})})
	hub.submit(bob, protocol.Envelope{Event: protocol.EventCodeChange, Payload: json.RawMessage(`{not json`)})
	hub.submit(bob, protocol.Envelope{Event: protocol.EventCodeChange, Payload: rawPayload(t, protocol.CodeChangePayload{Code: "no room"})})

	alice.expectSilence(t)
}

func TestChatScenario(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(t, hub)
	join(t, hub, alice, "r1", "alice")
	bob := connect(t, hub)
	join(t, hub, bob, "r1", "bob")
	carol := connect(t, hub)
	join(t, hub, carol, "r1", "carol")

	// drain join notices: alice saw bob and carol, bob saw carol
	alice.next(t)
	alice.next(t)
	bob.next(t)

	hub.submit(alice, protocol.Envelope{
		Event:   protocol.EventSendChat,
		Payload: rawPayload(t, protocol.ChatPayload{RoomID: "r1", DisplayName: "alice", Message: "hi"}),
	})

	for _, peer := range []*fakeSession{bob, carol} {
		env := peer.next(t)
		require.Equal(t, protocol.EventReceiveChat, env.Event)
		var notice protocol.ChatNotice
		require.NoError(t, json.Unmarshal(env.Payload, &notice))
		require.Equal(t, "alice", notice.DisplayName)
		require.Equal(t, "hi", notice.Message)
	}
	alice.expectSilence(t)

	// bob drops abruptly
	hub.unregister <- bob

	for _, peer := range []*fakeSession{alice, carol} {
		env := peer.next(t)
		require.Equal(t, protocol.EventUserLeft, env.Event)
		require.Equal(t, "bob left the room", asString(t, env.Payload))
	}
	require.Eventually(t, func() bool {
		_, ok := hub.reg.Lookup(bob.id)
		return !ok
	}, time.Second, time.Millisecond)

	// a later snapshot from alice reaches only carol
	hub.submit(alice, protocol.Envelope{
		Event:   protocol.EventCodeChange,
		Payload: rawPayload(t, protocol.CodeChangePayload{RoomID: "r1", Code: "v2"}),
	})

	env := carol.next(t)
	require.Equal(t, protocol.EventCodeUpdate, env.Event)
	require.Equal(t, "v2", asString(t, env.Payload))
}

func TestSenderOrderingPreserved(t *testing.T) {
	hub := newTestHub(t)

	alice := connect(t, hub)
	join(t, hub, alice, "r1", "alice")
	bob := connect(t, hub)
	join(t, hub, bob, "r1", "bob")
	alice.next(t)

	for _, code := range []string{"v1", "v2", "v3"} {
		hub.submit(alice, protocol.Envelope{
			Event:   protocol.EventCodeChange,
			Payload: rawPayload(t, protocol.CodeChangePayload{RoomID: "r1", Code: code}),
		})
	}

	for _, want := range []string{"v1", "v2", "v3"} {
		env := bob.next(t)
		require.Equal(t, want, asString(t, env.Payload))
	}
}
