package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/coinkick/coinkick/game/room"
	"github.com/coinkick/coinkick/protocol"
	wsgateway "github.com/coinkick/coinkick/transport/websocket"
)

// newGameServer runs a real gateway over a fresh registry.
func newGameServer(t *testing.T) (string, *room.Registry) {
	t.Helper()
	registry := room.NewRegistry()
	gateway := wsgateway.NewGateway(registry, 0, 0)
	server := httptest.NewServer(http.HandlerFunc(gateway.ServeWS))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http"), registry
}

// collect subscribes to an event type and returns a channel of envelopes.
func collect(c *Client, eventType string) <-chan protocol.Envelope {
	ch := make(chan protocol.Envelope, 16)
	c.On(eventType, func(env protocol.Envelope) {
		select {
		case ch <- env:
		default:
		}
	})
	return ch
}

func awaitEnvelope(t *testing.T, ch <-chan protocol.Envelope, what string) protocol.Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return protocol.Envelope{}
	}
}

func TestConnectAndDisconnect(t *testing.T) {
	url, _ := newGameServer(t)
	c := New(Options{URL: url})

	connected := collect(c, EventConnected)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	awaitEnvelope(t, connected, "connected event")
	if !c.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}

	// A second Connect on an open client is a no-op.
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("repeat Connect: %v", err)
	}

	c.Disconnect()
	if c.IsConnected() {
		t.Fatal("IsConnected() = true after Disconnect")
	}
}

func TestConnectFailure(t *testing.T) {
	c := New(Options{URL: "ws://127.0.0.1:1/ws", ConnectTimeout: 500 * time.Millisecond})
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("Connect to a dead address succeeded")
	}
}

func TestActionsRequireConnection(t *testing.T) {
	c := New(Options{URL: "ws://localhost:0/ws"})
	if err := c.SetReady(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SetReady while down: err = %v, want ErrNotConnected", err)
	}
}

func TestCreateRoomTracksState(t *testing.T) {
	url, _ := newGameServer(t)
	c := New(Options{URL: url})
	defer c.Disconnect()

	created := collect(c, protocol.TypeRoomCreated)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.CreateRoom("alice", ""); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	env := awaitEnvelope(t, created, "room-created")
	payload, err := protocol.DecodePayload[protocol.RoomCreated](env)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if c.RoomID() != payload.RoomID {
		t.Fatalf("RoomID() = %q, want %q", c.RoomID(), payload.RoomID)
	}
	if !c.IsHost() {
		t.Fatal("IsHost() = false for the room creator")
	}
}

func TestTwoClientLobbyFlow(t *testing.T) {
	url, _ := newGameServer(t)

	host := New(Options{URL: url})
	guest := New(Options{URL: url})
	defer host.Disconnect()
	defer guest.Disconnect()

	hostCreated := collect(host, protocol.TypeRoomCreated)
	hostStart := collect(host, protocol.TypeGameStart)
	guestJoined := collect(guest, protocol.TypeRoomJoined)
	guestStart := collect(guest, protocol.TypeGameStart)
	guestSelected := collect(guest, protocol.TypeCharacterSelected)

	if err := host.Connect(context.Background()); err != nil {
		t.Fatalf("host Connect: %v", err)
	}
	if err := guest.Connect(context.Background()); err != nil {
		t.Fatalf("guest Connect: %v", err)
	}

	host.CreateRoom("alice", "")
	created, _ := protocol.DecodePayload[protocol.RoomCreated](awaitEnvelope(t, hostCreated, "room-created"))

	guest.JoinRoom(created.RoomID, "bob")
	awaitEnvelope(t, guestJoined, "room-joined")
	if guest.PeerName() != "alice" {
		t.Fatalf("guest PeerName() = %q, want alice", guest.PeerName())
	}
	if guest.IsHost() {
		t.Fatal("guest IsHost() = true")
	}

	host.SelectCharacter("pepecoin")
	awaitEnvelope(t, guestSelected, "character-selected")
	if guest.PeerCharacter() != "pepecoin" {
		t.Fatalf("guest PeerCharacter() = %q, want pepecoin", guest.PeerCharacter())
	}

	host.SetReady()
	guest.SetReady()
	start, _ := protocol.DecodePayload[protocol.GameStart](awaitEnvelope(t, guestStart, "guest game-start"))
	if start.OpponentName != "alice" {
		t.Fatalf("guest opponent = %q, want alice", start.OpponentName)
	}
	awaitEnvelope(t, hostStart, "host game-start")

	// Snapshots flow host to guest once the game is running.
	guestPos := collect(guest, protocol.TypePositionUpdate)
	host.SendPositionUpdate(protocol.PositionUpdate{
		Player: protocol.PlayerState{X: 1},
		Ball:   &protocol.BallState{X: 2},
	})
	pos, _ := protocol.DecodePayload[protocol.PositionUpdate](awaitEnvelope(t, guestPos, "position-update"))
	if pos.Ball == nil || pos.Ball.X != 2 {
		t.Fatalf("relayed ball = %+v", pos.Ball)
	}
}

func TestResetGameGuestSide(t *testing.T) {
	url, _ := newGameServer(t)
	c := New(Options{URL: url})
	defer c.Disconnect()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.ResetGame(); !errors.Is(err, ErrNotHost) {
		t.Fatalf("guest ResetGame: err = %v, want ErrNotHost", err)
	}
}

func TestOnReturnsWorkingUnsubscribe(t *testing.T) {
	c := New(Options{URL: "ws://unused"})

	calls := 0
	off := c.On("some-event", func(protocol.Envelope) { calls++ })
	c.emitter.emit(protocol.Envelope{Type: "some-event"})
	off()
	c.emitter.emit(protocol.Envelope{Type: "some-event"})

	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

// scriptedServer accepts connections, answers create-room with room-created,
// and force-closes the socket after each connection's first answer if told to.
type scriptedServer struct {
	dropNext atomic.Bool
	sessions chan string
}

func (s *scriptedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	up := gws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.Decode(raw)
		if err != nil {
			continue
		}
		if env.Type != protocol.TypeCreateRoom {
			continue
		}
		msg, _ := protocol.DecodePayload[protocol.CreateRoom](env)
		s.sessions <- msg.RoomID

		reply := protocol.MustEncode(protocol.TypeRoomCreated, protocol.RoomCreated{RoomID: "FIXED1"})
		ws.WriteMessage(gws.TextMessage, reply)

		if s.dropNext.CompareAndSwap(true, false) {
			return
		}
	}
}

func TestReconnectReplaysSession(t *testing.T) {
	script := &scriptedServer{sessions: make(chan string, 4)}
	script.dropNext.Store(true)
	server := httptest.NewServer(script)
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	c := New(Options{URL: url, ReconnectBase: 50 * time.Millisecond, ReconnectMax: 200 * time.Millisecond})
	defer c.Disconnect()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.CreateRoom("alice", ""); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	// First session: fresh room, no code requested.
	select {
	case roomID := <-script.sessions:
		if roomID != "" {
			t.Fatalf("first create-room requested code %q", roomID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server never saw the first create-room")
	}

	// The server drops the socket after answering; the client must dial back
	// and replay create-room with the remembered code.
	select {
	case roomID := <-script.sessions:
		if roomID != "FIXED1" {
			t.Fatalf("replayed create-room requested code %q, want FIXED1", roomID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("client never replayed the session after the drop")
	}

	if !c.IsHost() || c.RoomID() != "FIXED1" {
		t.Fatalf("state after reconnect: isHost=%v roomID=%q", c.IsHost(), c.RoomID())
	}
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	url, _ := newGameServer(t)
	c := New(Options{URL: url, ReconnectBase: 20 * time.Millisecond})

	created := collect(c, protocol.TypeRoomCreated)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c.CreateRoom("alice", "")
	awaitEnvelope(t, created, "room-created")

	c.Disconnect()
	time.Sleep(100 * time.Millisecond)
	if c.IsConnected() {
		t.Fatal("client reconnected after an intentional Disconnect")
	}
}
