package room

import (
	"errors"
	"time"
)

// Protocol-visible failures. The messages are part of the wire contract: they
// travel verbatim inside error{message} envelopes, so they keep the casing the
// clients expect.
var (
	ErrNameRequired        = errors.New("Name is required")
	ErrNameAndRoomRequired = errors.New("Name and Room ID are required")
	ErrRoomNotFound        = errors.New("Room not found")
	ErrRoomFull            = errors.New("Room is full")
	ErrCharacterRequired   = errors.New("Character ID is required")
	ErrNotHost             = errors.New("Only the host can reset the game")
)

// Status is a room's lifecycle state.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Conn is the opaque connection handle a Player owns. The registry never sees
// sockets directly; anything that can send envelopes and report liveness works,
// which keeps the room logic testable without a network.
type Conn interface {
	// ID identifies the connection. A reconnecting player gets a new Conn
	// with a new ID; identity comparison is by ID.
	ID() string

	// Send encodes and delivers one envelope. Errors are advisory: a failed
	// send does not remove the player, the close handler does.
	Send(msgType string, payload any) error

	// IsOpen reports whether the underlying transport is still usable. A
	// slot held by a closed Conn is treated as vacant for reconnection.
	IsOpen() bool
}

// Player is one occupant of a room slot.
type Player struct {
	Name      string
	Ready     bool
	Character string
	Conn      Conn
}

// connected reports whether the slot is occupied by a live connection.
func (p *Player) connected() bool {
	return p != nil && p.Conn != nil && p.Conn.IsOpen()
}

// Room pairs at most two players under one shared code. The host slot is
// required; a room with no host is never kept around.
type Room struct {
	ID           string
	Host         *Player
	Guest        *Player
	Status       Status
	CreatedAt    time.Time
	LastActivity time.Time
}

// member resolves a connection to its player slot. The second result reports
// whether the match was the host.
func (r *Room) member(conn Conn) (*Player, bool) {
	if r.Host != nil && r.Host.Conn != nil && r.Host.Conn.ID() == conn.ID() {
		return r.Host, true
	}
	if r.Guest != nil && r.Guest.Conn != nil && r.Guest.Conn.ID() == conn.ID() {
		return r.Guest, false
	}
	return nil, false
}

// peer returns the other player relative to the given role.
func (r *Room) peer(isHost bool) *Player {
	if isHost {
		return r.Guest
	}
	return r.Host
}

// readyStatus snapshots both ready flags for ready-acknowledged and
// player-ready-update payloads.
func (r *Room) readyStatus() (hostReady, guestReady bool) {
	if r.Host != nil {
		hostReady = r.Host.Ready
	}
	if r.Guest != nil {
		guestReady = r.Guest.Ready
	}
	return hostReady, guestReady
}

// clearReady resets both ready flags and returns the room to waiting. Used by
// reset and restart.
func (r *Room) clearReady() {
	if r.Host != nil {
		r.Host.Ready = false
	}
	if r.Guest != nil {
		r.Guest.Ready = false
	}
	r.Status = StatusWaiting
}

// guestName is the guest's name or "" for an empty slot.
func (r *Room) guestName() string {
	if r.Guest == nil {
		return ""
	}
	return r.Guest.Name
}

// Info is the read-only view of a room served by the admin API and MCP tools.
type Info struct {
	Code         string    `json:"code"`
	Status       Status    `json:"status"`
	HostName     string    `json:"host_name,omitempty"`
	GuestName    string    `json:"guest_name,omitempty"`
	HostReady    bool      `json:"host_ready"`
	GuestReady   bool      `json:"guest_ready"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// info builds the admin view of the room.
func (r *Room) info() Info {
	hostReady, guestReady := r.readyStatus()
	inf := Info{
		Code:         r.ID,
		Status:       r.Status,
		HostReady:    hostReady,
		GuestReady:   guestReady,
		CreatedAt:    r.CreatedAt,
		LastActivity: r.LastActivity,
	}
	if r.Host != nil {
		inf.HostName = r.Host.Name
	}
	inf.GuestName = r.guestName()
	return inf
}
