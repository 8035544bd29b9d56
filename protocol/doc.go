// Package protocol defines the Coinkick wire format.
//
// Every message in either direction is a JSON envelope:
//
//	{"type": "<message-type>", "data": {...}}
//
// The package provides the envelope codec, the message-type constants, and a
// typed payload struct for each message. Payloads stay as raw JSON inside an
// Envelope until a handler decodes them with DecodePayload.
//
// Delivery Model:
//
// The protocol carries no sequence numbers. It assumes a single persistent
// WebSocket connection per peer and relies on that connection's in-order
// delivery. Relay messages (game-update, position-update) are forwarded
// byte-for-byte to the peer without re-encoding.
package protocol
