package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/coinkick/coinkick/game/room"
)

// Client is a thin MCP client that proxies to the REST admin API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API.
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// GetMCPServer returns the underlying MCP server for mounting.
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// initMCPServer initializes the MCP server with all tools.
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Coinkick Multiplayer Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Coinkick Multiplayer Server - MCP Interface

This is a thin client that proxies all requests to the REST admin API.

The server pairs two players per room under a 6-character code. Rooms move
from "waiting" to "in_progress" once both players are ready, and back to
"waiting" on reset or restart.

AVAILABLE TOOLS:
- list_rooms: List all active rooms with occupancy and status
- get_room: Get details of a specific room
- close_room: Force-close a room, disconnecting notices to both players
- server_stats: Room counts by status`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools.
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List all active rooms",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "Get details of a specific room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code": map[string]interface{}{
					"type":        "string",
					"description": "Room code to retrieve",
				},
			},
			Required: []string{"code"},
		},
	}, c.handleGetRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "close_room",
		Description: "Force-close a room; both players are notified",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code": map[string]interface{}{
					"type":        "string",
					"description": "Room code to close",
				},
			},
			Required: []string{"code"},
		},
	}, c.handleCloseRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Summarize active rooms by status",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleServerStats)
}

// apiCall performs an HTTP request against the REST API.
func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int         `json:"count"`
		Rooms []room.Info `json:"rooms"`
	}

	err := c.apiCall("GET", "/api/rooms", nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Rooms (%d):\n\n", response.Count)
	for _, r := range response.Rooms {
		result += fmt.Sprintf("- %s [%s] host=%s guest=%s (last activity %s)\n",
			r.Code, r.Status, orEmpty(r.HostName), orEmpty(r.GuestName),
			r.LastActivity.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	code, _ := args["code"].(string)

	var info room.Info
	err := c.apiCall("GET", fmt.Sprintf("/api/rooms/%s", code), nil, &info)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoomInfo(&info)), nil
}

func (c *Client) handleCloseRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	code, _ := args["code"].(string)

	var response map[string]string
	err := c.apiCall("DELETE", fmt.Sprintf("/api/rooms/%s", code), nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response["message"]), nil
}

func (c *Client) handleServerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int         `json:"count"`
		Rooms []room.Info `json:"rooms"`
	}

	err := c.apiCall("GET", "/api/rooms", nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	byStatus := map[room.Status]int{}
	full := 0
	for _, r := range response.Rooms {
		byStatus[r.Status]++
		if r.GuestName != "" {
			full++
		}
	}

	result := fmt.Sprintf("Rooms: %d total\n", response.Count)
	result += fmt.Sprintf("  waiting:     %d\n", byStatus[room.StatusWaiting])
	result += fmt.Sprintf("  in_progress: %d\n", byStatus[room.StatusInProgress])
	result += fmt.Sprintf("  both slots occupied: %d\n", full)

	return mcp.NewToolResultText(result), nil
}

// formatRoomInfo renders one room for tool output.
func formatRoomInfo(info *room.Info) string {
	return fmt.Sprintf(
		"Room %s\nStatus: %s\nHost: %s (ready: %t)\nGuest: %s (ready: %t)\nCreated: %s\nLast activity: %s\n",
		info.Code, info.Status,
		orEmpty(info.HostName), info.HostReady,
		orEmpty(info.GuestName), info.GuestReady,
		info.CreatedAt.Format(time.RFC3339),
		info.LastActivity.Format(time.RFC3339),
	)
}

func orEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
