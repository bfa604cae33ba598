package room

import (
	"errors"
	"time"

	"github.com/YvesLemasson/curve-io-sub000/game"
	"github.com/YvesLemasson/curve-io-sub000/protocol"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrRoomActive   = errors.New("room already started")
	ErrNotMember    = errors.New("not a member of this room")
)

// Conn is the transport side of a member. Send must not block the caller for
// long; it runs on the room's tick goroutine.
type Conn interface {
	Send([]byte) error
	Close() error
}

// Member is a connected human participant.
type Member struct {
	ID    string
	Name  string
	Color string
	Conn  Conn
	Codec protocol.Codec

	// fresh members get a full snapshot before any delta
	fresh bool
}

// ResultSink durably records finished matches.
type ResultSink interface {
	Record(game.GameResult) error
}

// Info is the listing view of a room.
type Info struct {
	ID        string                 `json:"id"`
	Status    game.Status            `json:"status"`
	Round     int                    `json:"round"`
	Rounds    int                    `json:"totalRounds"`
	Humans    int                    `json:"humans"`
	Capacity  int                    `json:"capacity"`
	Players   []protocol.RosterEntry `json:"players"`
	CreatedAt time.Time              `json:"createdAt"`
	Age       string                 `json:"age"`
}
