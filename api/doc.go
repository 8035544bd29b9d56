// Package api provides the HTTP surface for the Coinkick multiplayer server.
//
// It mounts two things on one gorilla/mux router:
//   - the game transport at /ws, delegated to the websocket gateway
//   - a small admin REST API under /api for operators: list rooms, inspect a
//     room, force-close a room, and a health check
//
// The admin API exposes only the registry's read-only Info views; it cannot
// reach into live connections. The MCP tool surface in transport/mcp proxies
// these same endpoints.
package api
