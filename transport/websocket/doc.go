// Package websocket provides the WebSocket gateway for Coinkick multiplayer.
//
// The websocket package implements:
//   - Connection upgrades on the server's /ws path
//   - Envelope decoding and dispatch to the room registry
//   - Per-connection write pump with ping/pong keep-alive
//   - Disconnect handling (host departure removes the room, guest departure
//     frees the slot)
//   - The periodic idle-room sweep
//
// Message Protocol:
//
// Frames are JSON envelopes {"type": ..., "data": {...}} as defined by the
// protocol package. Malformed frames are logged and dropped without closing
// the connection. Operation failures are reported to the sender in an
// error{message} envelope and are never fatal to the connection.
//
// Connection Lifecycle:
//
// 1. Client connects to /ws
// 2. Gateway starts a write pump and reads frames in the handler goroutine
// 3. Frames dispatch to registry operations under the registry lock
// 4. Socket close removes the player from its room and notifies the peer
//
// Concurrency:
//
// Each connection has exactly one reader and one writer goroutine. All room
// mutation happens inside registry calls, so handlers for different
// connections serialize on the registry lock.
package websocket
