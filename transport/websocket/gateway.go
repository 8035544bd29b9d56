package websocket

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/coinkick/coinkick/game/room"
	"github.com/coinkick/coinkick/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Position updates are the
	// largest frames and stay well under this.
	maxMessageSize = 4096

	// Outbound queue per connection. A peer that cannot drain this many
	// frames is dropped.
	sendQueueSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Configure this for production
		return true
	},
}

// Gateway accepts WebSocket upgrades and bridges frames to the room registry.
type Gateway struct {
	registry *room.Registry

	sweepEvery time.Duration
	idleAfter  time.Duration
}

// NewGateway creates a gateway over the given registry. sweepEvery and
// idleAfter control the idle-room sweep; zero values select the protocol
// defaults of 5 and 30 minutes.
func NewGateway(registry *room.Registry, sweepEvery, idleAfter time.Duration) *Gateway {
	if sweepEvery <= 0 {
		sweepEvery = 5 * time.Minute
	}
	if idleAfter <= 0 {
		idleAfter = 30 * time.Minute
	}
	return &Gateway{
		registry:   registry,
		sweepEvery: sweepEvery,
		idleAfter:  idleAfter,
	}
}

// ServeWS upgrades an HTTP request and runs the connection until it closes.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &conn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, sendQueueSize),
	}
	log.Printf("WebSocket client connected (%s)", c.id)

	go c.writePump()
	g.readPump(c)
}

// RunSweeper periodically evicts idle rooms until the context is cancelled.
func (g *Gateway) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(g.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := g.registry.RemoveIdle(g.idleAfter); removed > 0 {
				log.Printf("idle sweep removed %d rooms", removed)
			}
		}
	}
}

// readPump reads frames, decodes envelopes, and dispatches them. Malformed
// frames are logged and dropped; the connection stays open. On exit the
// player is removed from its room.
func (g *Gateway) readPump(c *conn) {
	defer func() {
		c.markClosed()
		g.registry.Disconnect(c)
		c.ws.Close()
		log.Printf("WebSocket client disconnected (%s)", c.id)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		env, err := protocol.Decode(raw)
		if err != nil {
			log.Printf("dropping malformed frame from %s: %v", c.id, err)
			continue
		}
		g.dispatch(c, env)
	}
}

// dispatch routes one envelope to its registry operation. Operation errors go
// back to the sender as error envelopes and never terminate the connection.
func (g *Gateway) dispatch(c *conn, env protocol.Envelope) {
	var err error

	switch env.Type {
	case protocol.TypeCreateRoom:
		var msg protocol.CreateRoom
		if msg, err = protocol.DecodePayload[protocol.CreateRoom](env); err == nil {
			err = g.registry.CreateRoom(c, msg.Name, msg.RoomID)
		}

	case protocol.TypeJoinRoom:
		var msg protocol.JoinRoom
		if msg, err = protocol.DecodePayload[protocol.JoinRoom](env); err == nil {
			err = g.registry.JoinRoom(c, msg.Name, msg.RoomID)
		}

	case protocol.TypeSetReady:
		err = g.registry.SetReady(c)

	case protocol.TypeSelectCharacter:
		var msg protocol.SelectCharacter
		if msg, err = protocol.DecodePayload[protocol.SelectCharacter](env); err == nil {
			err = g.registry.SelectCharacter(c, msg.Character)
		}

	case protocol.TypeGameReset:
		err = g.registry.ResetGame(c)

	case protocol.TypeGameRestart:
		err = g.registry.RequestRestart(c)

	case protocol.TypeGameUpdate:
		err = g.registry.ForwardGameUpdate(c, env.Data)

	case protocol.TypePositionUpdate:
		err = g.registry.ForwardPositionUpdate(c, env.Data)

	case protocol.TypePing:
		// Client keep-alive; nothing to do.

	default:
		log.Printf("unknown message type %q from %s", env.Type, c.id)
	}

	if err != nil {
		if sendErr := c.Send(protocol.TypeError, protocol.Error{Message: err.Error()}); sendErr != nil {
			log.Printf("failed to report %q error to %s: %v", env.Type, c.id, sendErr)
		}
	}
}
