package protocol

import "encoding/json"

// Envelope is the wire message unit. Every frame in either direction is a JSON
// object {"type": <string>, "data": <object>}. Data stays raw until a handler
// decodes it into its typed payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client -> server message types.
const (
	TypeCreateRoom      = "create-room"
	TypeJoinRoom        = "join-room"
	TypeSetReady        = "set-ready"
	TypeGameUpdate      = "game-update"
	TypePositionUpdate  = "position-update"
	TypeGameReset       = "game-reset"
	TypeGameRestart     = "game-restart"
	TypeSelectCharacter = "select-character"
	TypePing            = "ping"
)

// Server -> client message types.
const (
	TypeRoomCreated        = "room-created"
	TypeRoomJoined         = "room-joined"
	TypePlayerJoined       = "player-joined"
	TypePlayerLeft         = "player-left"
	TypeReadyAcknowledged  = "ready-acknowledged"
	TypePlayerReadyUpdate  = "player-ready-update"
	TypeGameStart          = "game-start"
	TypeCharacterSelected  = "character-selected"
	TypeCharacterConfirmed = "character-selection-confirmed"
	TypeError              = "error"
)

// CreateRoom requests a new room, or a host reconnect when RoomID is set.
type CreateRoom struct {
	Name   string `json:"name"`
	RoomID string `json:"roomId,omitempty"`
}

// JoinRoom requests the guest slot of an existing room.
type JoinRoom struct {
	Name   string `json:"name"`
	RoomID string `json:"roomId"`
}

// SetReady marks the sender ready. The flag is one-directional; there is no
// un-ready message in the protocol.
type SetReady struct {
	Ready bool `json:"ready"`
}

// SelectCharacter stores the sender's character choice.
type SelectCharacter struct {
	Character string `json:"character"`
}

// PlayerState is the sender's own position sample inside a position update.
type PlayerState struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Rotation float64 `json:"rotation"`
}

// BallState is the authoritative ball sample. Only the host includes it.
type BallState struct {
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	Z                float64 `json:"z"`
	VelocityX        float64 `json:"velocityX,omitempty"`
	VelocityY        float64 `json:"velocityY,omitempty"`
	VelocityZ        float64 `json:"velocityZ,omitempty"`
	AngularVelocityX float64 `json:"angularVelocityX,omitempty"`
	AngularVelocityY float64 `json:"angularVelocityY,omitempty"`
	AngularVelocityZ float64 `json:"angularVelocityZ,omitempty"`
}

// PositionUpdate is the periodic snapshot relayed between peers.
type PositionUpdate struct {
	Player PlayerState `json:"player"`
	Ball   *BallState  `json:"ball,omitempty"`
}

// RoomCreated confirms room creation (or host reconnect) to the creator.
type RoomCreated struct {
	RoomID string `json:"roomId"`
}

// RoomJoined confirms a successful join to the guest.
type RoomJoined struct {
	RoomID            string `json:"roomId"`
	Host              string `json:"host"`
	CharacterSelected string `json:"characterSelected,omitempty"`
}

// PlayerJoined tells a player that their peer arrived (or reconnected).
type PlayerJoined struct {
	Guest             string `json:"guest"`
	CharacterSelected string `json:"characterSelected,omitempty"`
}

// PlayerLeft tells the remaining player that their peer disconnected.
type PlayerLeft struct {
	Message string `json:"message"`
}

// ReadyStatus carries both ready flags. Sent to the caller as
// ready-acknowledged and to the peer as player-ready-update.
type ReadyStatus struct {
	HostReady  bool `json:"hostReady"`
	GuestReady bool `json:"guestReady"`
}

// GameStart is sent to each side with the other player's info once both are
// ready.
type GameStart struct {
	OpponentName      string `json:"opponentName"`
	OpponentCharacter string `json:"opponentCharacter,omitempty"`
}

// GameReset notifies both players of a host-initiated reset.
type GameReset struct {
	HostName  string `json:"hostName"`
	GuestName string `json:"guestName"`
}

// GameRestart notifies both players of a restart request and who asked for it.
type GameRestart struct {
	HostName    string `json:"hostName"`
	GuestName   string `json:"guestName"`
	RequestedBy string `json:"requestedBy"`
}

// CharacterSelected notifies the peer of the sender's character choice.
type CharacterSelected struct {
	Character string `json:"character"`
	IsHost    bool   `json:"isHost"`
}

// CharacterConfirmed acknowledges a character selection to its sender.
type CharacterConfirmed struct {
	Success   bool   `json:"success"`
	Character string `json:"character"`
}

// Error reports a protocol-level failure. The connection stays open.
type Error struct {
	Message string `json:"message"`
}
