package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coinkick/coinkick/protocol"
)

// Local event types emitted by the client itself, alongside the server
// envelope types which are re-emitted verbatim.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
)

var (
	// ErrNotConnected is returned by actions attempted while the socket is
	// down. The action is not queued; the reconnect path takes over.
	ErrNotConnected = errors.New("not connected")

	// ErrNotHost is returned by ResetGame when called from the guest side.
	ErrNotHost = errors.New("only the host can reset the game")
)

// Options tunes a Client. The zero value plus a URL is a working client with
// the stock protocol timings.
type Options struct {
	// URL of the server's /ws endpoint, e.g. "ws://localhost:5000/ws".
	URL string

	// ConnectTimeout bounds a single dial attempt. Default 5s.
	ConnectTimeout time.Duration

	// PingInterval is the keep-alive cadence while connected. Default 30s.
	PingInterval time.Duration

	// ReconnectBase is the first reconnect delay. Default 2s. Subsequent
	// delays double up to ReconnectMax (default 30s).
	ReconnectBase time.Duration
	ReconnectMax  time.Duration

	// MaxReconnectAttempts caps the retry loop. 0 retries forever, which is
	// the behavior the protocol was designed around.
	MaxReconnectAttempts int
}

func (o *Options) withDefaults() {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 5 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.ReconnectBase <= 0 {
		o.ReconnectBase = 2 * time.Second
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = 30 * time.Second
	}
}

// Client is the single mutable connection handle the game layer talks
// through. It owns the reconnection policy and the keep-alive heartbeat, and
// re-emits every inbound envelope to local subscribers.
type Client struct {
	opts Options

	mu                sync.Mutex
	ws                *websocket.Conn
	intentional       bool
	reconnectTimer    *time.Timer
	reconnectAttempts int
	pingStop          chan struct{}

	// Remembered room state, used to rebuild the session after a reconnect.
	roomID            string
	playerName        string
	isHost            bool
	selectedCharacter string
	peerName          string
	peerCharacter     string

	emitter emitter
}

// New creates a client for the given options.
func New(opts Options) *Client {
	opts.withDefaults()
	return &Client{opts: opts}
}

// On subscribes a handler to an event type (a server envelope type, or one of
// the local Event* constants) and returns an unsubscribe func.
func (c *Client) On(eventType string, h Handler) (off func()) {
	return c.emitter.on(eventType, h)
}

// Connect opens the connection if it is not already open. It returns nil once
// the socket is established; dial errors and the connect timeout surface as
// errors. A successful connect starts the keep-alive heartbeat.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.ws != nil {
		c.mu.Unlock()
		return nil
	}
	c.intentional = false
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	ws, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.opts.URL, err)
	}

	c.mu.Lock()
	if c.ws != nil {
		// Lost a connect race; keep the established socket.
		c.mu.Unlock()
		ws.Close()
		return nil
	}
	c.ws = ws
	c.reconnectAttempts = 0
	c.pingStop = make(chan struct{})
	go c.pingLoop(c.pingStop)
	c.mu.Unlock()

	go c.readLoop(ws)

	c.emitter.emit(protocol.Envelope{Type: EventConnected})
	return nil
}

// Disconnect closes the connection on purpose: no reconnect is attempted, the
// heartbeat and any pending retry are cancelled, and the remembered room
// state is cleared.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.intentional = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.stopPingLocked()
	ws := c.ws
	c.ws = nil
	c.roomID = ""
	c.isHost = false
	c.mu.Unlock()

	if ws != nil {
		ws.Close()
	}
}

// IsConnected reports whether the socket is currently open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// IsHost reports whether this client created the current room.
func (c *Client) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isHost
}

// RoomID returns the current room code, or "" outside a room.
func (c *Client) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// PeerName returns the opponent's name as last reported by the server.
func (c *Client) PeerName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerName
}

// PeerCharacter returns the opponent's character selection, if any.
func (c *Client) PeerCharacter() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerCharacter
}

// CreateRoom asks the server for a new room. A non-empty roomID requests that
// code, which is how a host resumes a room after reconnecting.
func (c *Client) CreateRoom(name, roomID string) error {
	c.mu.Lock()
	c.playerName = name
	c.isHost = true
	if roomID != "" {
		c.roomID = roomID
	}
	c.mu.Unlock()
	return c.send(protocol.TypeCreateRoom, protocol.CreateRoom{Name: name, RoomID: roomID})
}

// JoinRoom asks for the guest slot of an existing room.
func (c *Client) JoinRoom(roomID, name string) error {
	c.mu.Lock()
	c.playerName = name
	c.isHost = false
	c.roomID = roomID
	c.mu.Unlock()
	return c.send(protocol.TypeJoinRoom, protocol.JoinRoom{Name: name, RoomID: roomID})
}

// SetReady marks this player ready. There is no way back down.
func (c *Client) SetReady() error {
	return c.send(protocol.TypeSetReady, protocol.SetReady{Ready: true})
}

// SelectCharacter stores and announces this player's character.
func (c *Client) SelectCharacter(character string) error {
	c.mu.Lock()
	c.selectedCharacter = character
	c.mu.Unlock()
	return c.send(protocol.TypeSelectCharacter, protocol.SelectCharacter{Character: character})
}

// SendGameUpdate relays an arbitrary game event (score change, ability use)
// to the peer.
func (c *Client) SendGameUpdate(payload any) error {
	return c.send(protocol.TypeGameUpdate, payload)
}

// SendPositionUpdate relays a position snapshot to the peer. Only the host
// should populate the Ball field.
func (c *Client) SendPositionUpdate(update protocol.PositionUpdate) error {
	return c.send(protocol.TypePositionUpdate, update)
}

// ResetGame requests a hard reset. Host only; the guest side gets an error
// without anything hitting the wire.
func (c *Client) ResetGame() error {
	c.mu.Lock()
	isHost := c.isHost
	c.mu.Unlock()
	if !isHost {
		log.Printf("client: reset ignored, only the host can reset the game")
		return ErrNotHost
	}
	return c.send(protocol.TypeGameReset, struct{}{})
}

// RequestRestart asks for a restart; either side may call it.
func (c *Client) RequestRestart() error {
	return c.send(protocol.TypeGameRestart, struct{}{})
}

// send serializes one envelope onto the socket. If the socket is down the
// reconnect path is kicked instead and the caller gets ErrNotConnected.
func (c *Client) send(msgType string, payload any) error {
	raw, err := protocol.Encode(msgType, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	ws := c.ws
	if ws == nil {
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return ErrNotConnected
	}
	ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	err = ws.WriteMessage(websocket.TextMessage, raw)
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("send %s: %w", msgType, err)
	}
	return nil
}

// readLoop receives envelopes until the socket dies, then decides whether to
// reconnect.
func (c *Client) readLoop(ws *websocket.Conn) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			break
		}
		env, err := protocol.Decode(raw)
		if err != nil {
			log.Printf("client: dropping malformed frame: %v", err)
			continue
		}
		c.track(env)
		c.emitter.emit(env)
	}

	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
		c.stopPingLocked()
		if !c.intentional {
			c.scheduleReconnectLocked()
		}
	}
	c.mu.Unlock()

	c.emitter.emit(protocol.Envelope{Type: EventDisconnected})
}

// track mirrors server state the reconnect path needs, before handlers run.
func (c *Client) track(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeRoomCreated:
		if msg, err := protocol.DecodePayload[protocol.RoomCreated](env); err == nil {
			c.mu.Lock()
			c.roomID = msg.RoomID
			c.mu.Unlock()
		}
	case protocol.TypeRoomJoined:
		if msg, err := protocol.DecodePayload[protocol.RoomJoined](env); err == nil {
			c.mu.Lock()
			c.roomID = msg.RoomID
			c.peerName = msg.Host
			c.peerCharacter = msg.CharacterSelected
			c.mu.Unlock()
		}
	case protocol.TypePlayerJoined:
		if msg, err := protocol.DecodePayload[protocol.PlayerJoined](env); err == nil {
			c.mu.Lock()
			c.peerName = msg.Guest
			if msg.CharacterSelected != "" {
				c.peerCharacter = msg.CharacterSelected
			}
			c.mu.Unlock()
		}
	case protocol.TypeCharacterSelected:
		if msg, err := protocol.DecodePayload[protocol.CharacterSelected](env); err == nil {
			c.mu.Lock()
			c.peerCharacter = msg.Character
			c.mu.Unlock()
		}
	}
}

// pingLoop keeps the connection alive with protocol-level pings.
func (c *Client) pingLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.send(protocol.TypePing, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) stopPingLocked() {
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
}

// scheduleReconnectLocked arms the reconnect timer if a room is remembered
// and no retry is already pending. Delay grows exponentially from
// ReconnectBase to ReconnectMax; MaxReconnectAttempts (when non-zero) ends
// the loop. Callers hold c.mu.
func (c *Client) scheduleReconnectLocked() {
	if c.intentional || c.roomID == "" || c.reconnectTimer != nil {
		return
	}
	if c.opts.MaxReconnectAttempts > 0 && c.reconnectAttempts >= c.opts.MaxReconnectAttempts {
		log.Printf("client: giving up after %d reconnect attempts", c.reconnectAttempts)
		return
	}

	delay := c.opts.ReconnectBase << c.reconnectAttempts
	if delay > c.opts.ReconnectMax || delay <= 0 {
		delay = c.opts.ReconnectMax
	}
	c.reconnectAttempts++

	log.Printf("client: reconnecting in %s (attempt %d)", delay, c.reconnectAttempts)
	c.reconnectTimer = time.AfterFunc(delay, c.reconnect)
}

// reconnect dials again and, on success, replays the session: create-room for
// a host, join-room for a guest, then the character selection if one was
// made. On failure the timer is re-armed with the next backoff step.
func (c *Client) reconnect() {
	c.mu.Lock()
	c.reconnectTimer = nil
	roomID, name, isHost := c.roomID, c.playerName, c.isHost
	character := c.selectedCharacter
	intentional := c.intentional
	c.mu.Unlock()

	if intentional || roomID == "" {
		return
	}

	if err := c.Connect(context.Background()); err != nil {
		log.Printf("client: reconnect failed: %v", err)
		c.mu.Lock()
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}

	if isHost {
		c.CreateRoom(name, roomID)
	} else {
		c.JoinRoom(roomID, name)
	}
	if character != "" {
		c.SelectCharacter(character)
	}
}
