package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coinkick/coinkick/game/room"
	"github.com/coinkick/coinkick/protocol"
)

func newTestServer(t *testing.T) (*httptest.Server, *room.Registry) {
	t.Helper()
	registry := room.NewRegistry()
	gateway := NewGateway(registry, 0, 0)
	server := httptest.NewServer(http.HandlerFunc(gateway.ServeWS))
	t.Cleanup(server.Close)
	return server, registry
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendMsg(t *testing.T, ws *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := protocol.Encode(msgType, payload)
	if err != nil {
		t.Fatalf("Encode %s: %v", msgType, err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("WriteMessage %s: %v", msgType, err)
	}
}

// readUntil reads frames until the wanted type arrives, skipping everything
// else.
func readUntil(t *testing.T, ws *websocket.Conn, want string) protocol.Envelope {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		env, err := protocol.Decode(raw)
		if err != nil {
			t.Fatalf("Decode while waiting for %s: %v", want, err)
		}
		if env.Type == want {
			return env
		}
	}
}

func TestFullHandshake(t *testing.T) {
	server, _ := newTestServer(t)

	host := dial(t, server)
	guest := dial(t, server)

	sendMsg(t, host, protocol.TypeCreateRoom, protocol.CreateRoom{Name: "alice"})
	created, err := protocol.DecodePayload[protocol.RoomCreated](readUntil(t, host, protocol.TypeRoomCreated))
	if err != nil {
		t.Fatalf("room-created payload: %v", err)
	}
	if len(created.RoomID) != room.CodeLength {
		t.Fatalf("room code %q", created.RoomID)
	}

	sendMsg(t, guest, protocol.TypeJoinRoom, protocol.JoinRoom{Name: "bob", RoomID: created.RoomID})
	joined, err := protocol.DecodePayload[protocol.RoomJoined](readUntil(t, guest, protocol.TypeRoomJoined))
	if err != nil {
		t.Fatalf("room-joined payload: %v", err)
	}
	if joined.Host != "alice" {
		t.Fatalf("room-joined host = %q", joined.Host)
	}
	readUntil(t, host, protocol.TypePlayerJoined)

	sendMsg(t, host, protocol.TypeSelectCharacter, protocol.SelectCharacter{Character: "pepecoin"})
	readUntil(t, host, protocol.TypeCharacterConfirmed)
	selected, err := protocol.DecodePayload[protocol.CharacterSelected](readUntil(t, guest, protocol.TypeCharacterSelected))
	if err != nil {
		t.Fatalf("character-selected payload: %v", err)
	}
	if selected.Character != "pepecoin" || !selected.IsHost {
		t.Fatalf("character-selected = %+v", selected)
	}

	sendMsg(t, host, protocol.TypeSetReady, protocol.SetReady{Ready: true})
	readUntil(t, host, protocol.TypeReadyAcknowledged)
	sendMsg(t, guest, protocol.TypeSetReady, protocol.SetReady{Ready: true})

	start, err := protocol.DecodePayload[protocol.GameStart](readUntil(t, guest, protocol.TypeGameStart))
	if err != nil {
		t.Fatalf("game-start payload: %v", err)
	}
	if start.OpponentName != "alice" || start.OpponentCharacter != "pepecoin" {
		t.Fatalf("guest game-start = %+v", start)
	}
	readUntil(t, host, protocol.TypeGameStart)

	// In-progress rooms relay snapshots host to guest.
	sendMsg(t, host, protocol.TypePositionUpdate, protocol.PositionUpdate{
		Player: protocol.PlayerState{X: 1, Z: 2},
		Ball:   &protocol.BallState{X: 3},
	})
	pos, err := protocol.DecodePayload[protocol.PositionUpdate](readUntil(t, guest, protocol.TypePositionUpdate))
	if err != nil {
		t.Fatalf("position-update payload: %v", err)
	}
	if pos.Ball == nil || pos.Ball.X != 3 {
		t.Fatalf("relayed ball = %+v", pos.Ball)
	}
}

func TestErrorEnvelopeForBadJoin(t *testing.T) {
	server, _ := newTestServer(t)
	ws := dial(t, server)

	sendMsg(t, ws, protocol.TypeJoinRoom, protocol.JoinRoom{Name: "bob", RoomID: "NOPE11"})
	errMsg, err := protocol.DecodePayload[protocol.Error](readUntil(t, ws, protocol.TypeError))
	if err != nil {
		t.Fatalf("error payload: %v", err)
	}
	if errMsg.Message != "Room not found" {
		t.Fatalf("error message = %q", errMsg.Message)
	}
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	server, _ := newTestServer(t)
	ws := dial(t, server)

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	// The connection survives and still serves requests.
	sendMsg(t, ws, protocol.TypeCreateRoom, protocol.CreateRoom{Name: "alice"})
	readUntil(t, ws, protocol.TypeRoomCreated)
}

func TestUnknownTypeIsIgnored(t *testing.T) {
	server, _ := newTestServer(t)
	ws := dial(t, server)

	sendMsg(t, ws, "no-such-message", nil)
	sendMsg(t, ws, protocol.TypePing, nil)

	sendMsg(t, ws, protocol.TypeCreateRoom, protocol.CreateRoom{Name: "alice"})
	readUntil(t, ws, protocol.TypeRoomCreated)
}

func TestHostCloseNotifiesGuestAndRemovesRoom(t *testing.T) {
	server, registry := newTestServer(t)

	host := dial(t, server)
	guest := dial(t, server)

	sendMsg(t, host, protocol.TypeCreateRoom, protocol.CreateRoom{Name: "alice"})
	created, _ := protocol.DecodePayload[protocol.RoomCreated](readUntil(t, host, protocol.TypeRoomCreated))
	sendMsg(t, guest, protocol.TypeJoinRoom, protocol.JoinRoom{Name: "bob", RoomID: created.RoomID})
	readUntil(t, guest, protocol.TypeRoomJoined)

	host.Close()

	left, err := protocol.DecodePayload[protocol.PlayerLeft](readUntil(t, guest, protocol.TypePlayerLeft))
	if err != nil {
		t.Fatalf("player-left payload: %v", err)
	}
	if left.Message != "Host left the game" {
		t.Fatalf("notice = %q", left.Message)
	}

	deadline := time.Now().Add(2 * time.Second)
	for registry.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Count() = %d after host close, want 0", registry.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServerResetFlow(t *testing.T) {
	server, _ := newTestServer(t)

	host := dial(t, server)
	guest := dial(t, server)

	sendMsg(t, host, protocol.TypeCreateRoom, protocol.CreateRoom{Name: "alice"})
	created, _ := protocol.DecodePayload[protocol.RoomCreated](readUntil(t, host, protocol.TypeRoomCreated))
	sendMsg(t, guest, protocol.TypeJoinRoom, protocol.JoinRoom{Name: "bob", RoomID: created.RoomID})
	readUntil(t, guest, protocol.TypeRoomJoined)

	// Guests may not reset.
	sendMsg(t, guest, protocol.TypeGameReset, nil)
	errMsg, _ := protocol.DecodePayload[protocol.Error](readUntil(t, guest, protocol.TypeError))
	if errMsg.Message != "Only the host can reset the game" {
		t.Fatalf("error message = %q", errMsg.Message)
	}

	sendMsg(t, host, protocol.TypeGameReset, nil)
	reset, err := protocol.DecodePayload[protocol.GameReset](readUntil(t, guest, protocol.TypeGameReset))
	if err != nil {
		t.Fatalf("game-reset payload: %v", err)
	}
	if reset.HostName != "alice" || reset.GuestName != "bob" {
		t.Fatalf("game-reset = %+v", reset)
	}
}
