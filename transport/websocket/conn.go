package websocket

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coinkick/coinkick/protocol"
)

// ErrConnClosed is returned by Send once the connection is gone.
var ErrConnClosed = errors.New("connection closed")

// conn wraps one upgraded socket and implements room.Conn. Frames are queued
// on a channel and written by a single goroutine, honoring gorilla's
// one-writer rule.
type conn struct {
	id     string
	ws     *websocket.Conn
	send   chan []byte
	closed atomic.Bool
}

func (c *conn) ID() string { return c.id }

func (c *conn) IsOpen() bool { return !c.closed.Load() }

// Send encodes and queues one envelope. A full queue counts as a dead peer:
// the frame is rejected and the connection is torn down by making the read
// side fail.
func (c *conn) Send(msgType string, payload any) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	raw, err := protocol.Encode(msgType, payload)
	if err != nil {
		return err
	}
	select {
	case c.send <- raw:
		return nil
	default:
		c.markClosed()
		c.ws.Close()
		return ErrConnClosed
	}
}

// markClosed flips the liveness flag exactly once.
func (c *conn) markClosed() {
	c.closed.Store(true)
}

// writePump drains the send queue to the socket and keeps the peer alive with
// pings. It owns all writes for the life of the connection.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
