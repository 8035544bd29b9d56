// Package mcp exposes the Coinkick admin surface as MCP tools.
//
// The package is a thin proxy: every tool call turns into a request against
// the REST admin API and formats the response as text. It never touches the
// room registry directly, so the MCP surface and the HTTP surface cannot
// drift apart.
//
// The tool server is mounted two ways by the root command: as a POST /mcp
// endpoint next to the game server, and as a stdio server in stdio-mcp mode.
package mcp
