// Package client is the Coinkick multiplayer session facade.
//
// The client package implements:
//   - A single mutable WebSocket connection with connect/disconnect
//   - Room actions: create, join, ready, character selection, reset, restart
//   - Relay sends: game updates and position snapshots
//   - Keep-alive pings every 30 seconds while connected
//   - Automatic reconnection with capped exponential backoff and session
//     replay (rejoin room, re-select character)
//   - A publish/subscribe event surface re-emitting every server envelope
//
// Reconnection:
//
// An unexpected close while a room is remembered schedules a reconnect,
// starting at 2 seconds and doubling up to 30 seconds per attempt. After the
// socket is back, the client replays create-room (host) or join-room (guest)
// with the remembered code and name, then the character selection if one was
// made. Disconnect cancels everything and forgets the room.
//
// Events:
//
// Subscribers receive envelopes exactly as the server sent them, keyed by
// message type, plus the local "connected" and "disconnected" events. The
// game layer reacts to events and calls the action methods; it never touches
// the transport.
//
// Usage:
//
//	c := client.New(client.Options{URL: "ws://localhost:5000/ws"})
//	off := c.On("game-start", func(env protocol.Envelope) { ... })
//	defer off()
//
//	if err := c.Connect(ctx); err != nil {
//		// show retry affordance
//	}
//	c.CreateRoom("alice", "")
package client
