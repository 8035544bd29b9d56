// Package room implements the match lifecycle for Coinkick multiplayer.
//
// The room package implements:
//   - Room and Player state for two-player matches
//   - A thread-safe Registry mapping room codes to rooms
//   - The full room protocol: create, join, ready, character selection,
//     reset, restart, and peer-to-peer relays
//   - Host and guest reconnection with connection-handle swapping
//   - Idle-room eviction
//
// Room Codes:
//
// Rooms use 6-character uppercase alphanumeric codes. Codes are generated
// with cryptographic randomness and are case-insensitive on the wire.
//
// Authority Model:
//
// The creator of a room is its host. The host is the single authority for
// ball physics snapshots and the only party allowed to issue a hard reset.
// Host and guest roles are derived from connection identity in the registry,
// never from client-reported flags.
//
// Concurrency:
//
// Every operation takes the registry lock for its full duration, so each
// room sees at most one mutation at a time, matching the single event loop
// the protocol assumes. Connections are represented by the Conn interface;
// room logic never touches sockets.
//
// Usage:
//
//	reg := room.NewRegistry()
//
//	// One call per inbound message, dispatched by the gateway:
//	if err := reg.CreateRoom(conn, "alice", ""); err != nil {
//		// err.Error() goes back to the client in an error envelope
//	}
//
// Reconnection:
//
// A create-room carrying the code of a room whose host connection is closed
// swaps the host's connection handle in place; a join-room against a room
// whose guest connection is closed does the same for the guest. Character
// selections survive the swap, ready flags do not.
package room
