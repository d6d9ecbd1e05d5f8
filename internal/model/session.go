package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ConnectionSession is the registry's view of one live connection.
// Identity is set once on join and never changes afterwards.
type ConnectionSession struct {
	ConnID   string
	Identity uuid.UUID
	Joined   bool
	Room     string
}

// GameRoom is the ephemeral pairing of two identities for a game.
// It is never persisted; both clients echo it back in room-scoped events.
type GameRoom struct {
	RoomID          string    `json:"roomId"`
	GameType        string    `json:"gameType"`
	HostID          uuid.UUID `json:"hostId"`
	GuestID         uuid.UUID `json:"guestId"`
	InviteMessageID uuid.UUID `json:"inviteMessageId"`
}

// Frame is the unit written to and read from a websocket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Envelope carries one emission across the bus. Each process resolves the
// targets against its own registry.
type Envelope struct {
	Event       string          `json:"event"`
	Payload     json.RawMessage `json:"payload"`
	Users       []uuid.UUID     `json:"users,omitempty"`
	Room        string          `json:"room,omitempty"`
	Broadcast   bool            `json:"broadcast,omitempty"`
	ExcludeConn string          `json:"exclude_conn,omitempty"`
}

// Frame returns the websocket frame for this envelope.
func (e Envelope) Frame() Frame {
	return Frame{Event: e.Event, Data: e.Payload}
}
