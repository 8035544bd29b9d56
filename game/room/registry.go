package room

import (
	"crypto/rand"
	"encoding/json"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/coinkick/coinkick/protocol"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeLength is the length of generated room codes.
const CodeLength = 6

// Registry owns every active room. It is constructed once at startup and
// passed to the gateway and the admin API; all mutations take the registry
// lock, which gives the same at-most-one-writer-per-room semantics as the
// single event loop the protocol was designed around.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	// now is the clock; tests substitute it to drive idle eviction.
	now func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		now:   time.Now,
	}
}

// NormalizeCode upper-cases a room code. Codes are case-insensitive on the
// wire and stored uppercased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateRoom handles create-room. A request carrying the code of an existing
// room whose host connection is closed is a host reconnect: the handle is
// swapped, the character selection survives, the ready flag does not. Any
// other request allocates a fresh room (reusing the requested code if it is
// free, so a host can rebuild a room the registry already evicted).
func (reg *Registry) CreateRoom(conn Conn, name, roomID string) error {
	if name == "" {
		return ErrNameRequired
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	roomID = NormalizeCode(roomID)
	if roomID != "" {
		if r, ok := reg.rooms[roomID]; ok {
			if !r.Host.connected() {
				reg.reconnectHost(r, conn, name)
				return nil
			}
			// Code already owned by a live host; hand out a fresh room
			// instead of clobbering theirs.
			roomID = ""
		}
	}

	if roomID == "" {
		roomID = reg.generateCode()
	}

	now := reg.now()
	r := &Room{
		ID:           roomID,
		Host:         &Player{Name: name, Conn: conn},
		Status:       StatusWaiting,
		CreatedAt:    now,
		LastActivity: now,
	}
	reg.rooms[roomID] = r

	sendTo(r.Host, protocol.TypeRoomCreated, protocol.RoomCreated{RoomID: roomID})
	log.Printf("room %s created by %s", roomID, name)
	return nil
}

// reconnectHost swaps the host's connection handle in place. The previous
// character selection is preserved; ready is reset so a stale flag cannot
// start a game nobody is looking at. Both sides get a player-joined carrying
// the other's current selection so their lobbies repopulate.
func (reg *Registry) reconnectHost(r *Room, conn Conn, name string) {
	prevCharacter := ""
	if r.Host != nil {
		prevCharacter = r.Host.Character
	}
	r.Host = &Player{Name: name, Conn: conn, Character: prevCharacter}
	r.LastActivity = reg.now()

	sendTo(r.Host, protocol.TypeRoomCreated, protocol.RoomCreated{RoomID: r.ID})

	if r.Guest.connected() {
		sendTo(r.Host, protocol.TypePlayerJoined, protocol.PlayerJoined{
			Guest:             r.Guest.Name,
			CharacterSelected: r.Guest.Character,
		})
		sendTo(r.Guest, protocol.TypePlayerJoined, protocol.PlayerJoined{
			Guest:             r.Host.Name,
			CharacterSelected: r.Host.Character,
		})
	}
	log.Printf("host %s reconnected to room %s", name, r.ID)
}

// JoinRoom handles join-room. A guest slot held by a closed connection counts
// as vacant; joining it is a guest reconnect and keeps the previous character
// selection.
func (reg *Registry) JoinRoom(conn Conn, name, roomID string) error {
	if name == "" || roomID == "" {
		return ErrNameAndRoomRequired
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[NormalizeCode(roomID)]
	if !ok {
		return ErrRoomNotFound
	}
	if r.Guest.connected() {
		return ErrRoomFull
	}

	prevCharacter := ""
	if r.Guest != nil {
		prevCharacter = r.Guest.Character
	}
	r.Guest = &Player{Name: name, Conn: conn, Character: prevCharacter}
	r.LastActivity = reg.now()

	sendTo(r.Guest, protocol.TypeRoomJoined, protocol.RoomJoined{
		RoomID:            r.ID,
		Host:              r.Host.Name,
		CharacterSelected: r.Host.Character,
	})
	sendTo(r.Host, protocol.TypePlayerJoined, protocol.PlayerJoined{
		Guest:             r.Guest.Name,
		CharacterSelected: r.Guest.Character,
	})

	log.Printf("%s joined room %s", name, r.ID)
	return nil
}

// SetReady handles set-ready. The flag only ever goes up; the transition to
// in_progress fires exactly once, when both flags are up and the room is still
// waiting, so a duplicate set-ready cannot re-emit game-start.
func (reg *Registry) SetReady(conn Conn) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r := reg.findByConn(conn)
	if r == nil {
		return ErrRoomNotFound
	}
	r.LastActivity = reg.now()

	player, isHost := r.member(conn)
	if player != nil {
		player.Ready = true
	}

	hostReady, guestReady := r.readyStatus()
	status := protocol.ReadyStatus{HostReady: hostReady, GuestReady: guestReady}
	sendTo(player, protocol.TypeReadyAcknowledged, status)
	sendTo(r.peer(isHost), protocol.TypePlayerReadyUpdate, status)

	if hostReady && r.Guest != nil && guestReady && r.Status != StatusInProgress {
		r.Status = StatusInProgress
		sendTo(r.Host, protocol.TypeGameStart, protocol.GameStart{
			OpponentName:      r.Guest.Name,
			OpponentCharacter: r.Guest.Character,
		})
		sendTo(r.Guest, protocol.TypeGameStart, protocol.GameStart{
			OpponentName:      r.Host.Name,
			OpponentCharacter: r.Host.Character,
		})
		log.Printf("game started in room %s", r.ID)
	}
	return nil
}

// SelectCharacter handles select-character. Selections made outside a room are
// dropped silently; the sender still gets a confirmation once a valid one is
// stored.
func (reg *Registry) SelectCharacter(conn Conn, character string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r := reg.findByConn(conn)
	if r == nil {
		return nil
	}
	r.LastActivity = reg.now()

	if character == "" {
		return ErrCharacterRequired
	}

	player, isHost := r.member(conn)
	if player == nil {
		return nil
	}
	player.Character = character

	sendTo(player, protocol.TypeCharacterConfirmed, protocol.CharacterConfirmed{
		Success:   true,
		Character: character,
	})
	sendTo(r.peer(isHost), protocol.TypeCharacterSelected, protocol.CharacterSelected{
		Character: character,
		IsHost:    isHost,
	})
	return nil
}

// ResetGame handles game-reset. Host only; the guest gets an error envelope
// and the room state is left untouched.
func (reg *Registry) ResetGame(conn Conn) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r := reg.findByConn(conn)
	if r == nil {
		return nil
	}
	r.LastActivity = reg.now()

	if _, isHost := r.member(conn); !isHost {
		return ErrNotHost
	}

	r.clearReady()
	payload := protocol.GameReset{HostName: r.Host.Name, GuestName: r.guestName()}
	sendTo(r.Host, protocol.TypeGameReset, payload)
	sendTo(r.Guest, protocol.TypeGameReset, payload)
	log.Printf("game reset in room %s", r.ID)
	return nil
}

// RequestRestart handles game-restart. Either player may ask; both are told
// who did.
func (reg *Registry) RequestRestart(conn Conn) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r := reg.findByConn(conn)
	if r == nil {
		return nil
	}
	r.LastActivity = reg.now()

	_, isHost := r.member(conn)
	requestedBy := "guest"
	if isHost {
		requestedBy = "host"
	}

	r.clearReady()
	payload := protocol.GameRestart{
		HostName:    r.Host.Name,
		GuestName:   r.guestName(),
		RequestedBy: requestedBy,
	}
	sendTo(r.Host, protocol.TypeGameRestart, payload)
	sendTo(r.Guest, protocol.TypeGameRestart, payload)
	log.Printf("game restart requested in room %s by %s", r.ID, requestedBy)
	return nil
}

// ForwardGameUpdate relays a game-update payload to the sender's peer.
func (reg *Registry) ForwardGameUpdate(conn Conn, data json.RawMessage) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r := reg.findByConn(conn)
	if r == nil {
		return nil
	}
	r.LastActivity = reg.now()

	_, isHost := r.member(conn)
	sendTo(r.peer(isHost), protocol.TypeGameUpdate, data)
	return nil
}

// ForwardPositionUpdate relays a position-update payload to the sender's
// peer. Snapshots outside an in-progress game are dropped, and the relay does
// not touch LastActivity: a stream of 20 Hz snapshots must not keep an
// otherwise-dead room out of the idle sweep.
func (reg *Registry) ForwardPositionUpdate(conn Conn, data json.RawMessage) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r := reg.findByConn(conn)
	if r == nil || r.Status != StatusInProgress {
		return nil
	}

	_, isHost := r.member(conn)
	sendTo(r.peer(isHost), protocol.TypePositionUpdate, data)
	return nil
}

// Disconnect removes the connection's player from its room. A departing host
// takes the whole room with it; a departing guest leaves the room open for the
// next joiner.
func (reg *Registry) Disconnect(conn Conn) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for code, r := range reg.rooms {
		if r.Host != nil && r.Host.Conn != nil && r.Host.Conn.ID() == conn.ID() {
			sendTo(r.Guest, protocol.TypePlayerLeft, protocol.PlayerLeft{Message: "Host left the game"})
			delete(reg.rooms, code)
			log.Printf("host left, room %s removed", code)
			return
		}
		if r.Guest != nil && r.Guest.Conn != nil && r.Guest.Conn.ID() == conn.ID() {
			sendTo(r.Host, protocol.TypePlayerLeft, protocol.PlayerLeft{Message: "Guest left the game"})
			r.Guest = nil
			r.LastActivity = reg.now()
			log.Printf("guest left room %s", code)
			return
		}
	}
}

// RemoveIdle evicts rooms whose LastActivity is older than maxAge and returns
// how many were removed.
func (reg *Registry) RemoveIdle(maxAge time.Duration) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	cutoff := reg.now().Add(-maxAge)
	removed := 0
	for code, r := range reg.rooms {
		if r.LastActivity.Before(cutoff) {
			delete(reg.rooms, code)
			removed++
			log.Printf("room %s idle past %s, removed", code, maxAge)
		}
	}
	return removed
}

// List returns the admin view of every room.
func (reg *Registry) List() []Info {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	out := make([]Info, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r.info())
	}
	return out
}

// Get returns the admin view of one room.
func (reg *Registry) Get(code string) (Info, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[NormalizeCode(code)]
	if !ok {
		return Info{}, false
	}
	return r.info(), true
}

// Delete force-closes a room from the admin surface, telling both players.
func (reg *Registry) Delete(code string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	code = NormalizeCode(code)
	r, ok := reg.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}
	notice := protocol.PlayerLeft{Message: "Room closed by server"}
	sendTo(r.Host, protocol.TypePlayerLeft, notice)
	sendTo(r.Guest, protocol.TypePlayerLeft, notice)
	delete(reg.rooms, code)
	log.Printf("room %s closed by admin", code)
	return nil
}

// Count returns the number of active rooms.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// findByConn locates the room owning a connection. Callers hold the lock.
func (reg *Registry) findByConn(conn Conn) *Room {
	for _, r := range reg.rooms {
		if p, _ := r.member(conn); p != nil {
			return r
		}
	}
	return nil
}

// generateCode draws random codes until one is unused. Callers hold the lock.
func (reg *Registry) generateCode() string {
	for {
		code := randomCode(CodeLength)
		if _, exists := reg.rooms[code]; !exists {
			return code
		}
	}
}

func randomCode(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		idx, _ := rand.Int(rand.Reader, max)
		b[i] = codeAlphabet[idx.Int64()]
	}
	return string(b)
}

// sendTo delivers an envelope to a player's connection, tolerating empty
// slots. Send failures are logged and otherwise ignored; slot cleanup belongs
// to Disconnect.
func sendTo(p *Player, msgType string, payload any) {
	if p == nil || p.Conn == nil {
		return
	}
	if err := p.Conn.Send(msgType, payload); err != nil {
		log.Printf("send %s to %s failed: %v", msgType, p.Name, err)
	}
}
