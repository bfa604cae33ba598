package protocol

// Envelope types on the wire. Every message is {t, p}.
const (
	MsgInput   = "input"
	MsgStart   = "start"
	MsgAdvance = "advance"
	MsgColor   = "color"
	MsgAddBot  = "addBot"

	MsgWelcome = "welcome"
	MsgState   = "state"
	MsgRoster  = "roster"
	MsgGameEnd = "gameEnd"
	MsgError   = "error"
)

// input structs coming in from the client.

type Input struct {
	Direction string `json:"direction" msgpack:"direction"` // left|right|none
	Boost     bool   `json:"boost,omitempty" msgpack:"boost,omitempty"`
	Timestamp int64  `json:"ts,omitempty" msgpack:"ts,omitempty"` // client clock, ms
}

type ColorRequest struct {
	Color string `json:"color" msgpack:"color"`
}

type AddBotRequest struct {
	Difficulty string `json:"difficulty" msgpack:"difficulty"`
}

// outgoing structs.

type Welcome struct {
	PlayerID string `json:"playerId" msgpack:"playerId"`
	RoomID   string `json:"roomId" msgpack:"roomId"`
	Color    string `json:"color" msgpack:"color"`
	TickHz   int    `json:"tickHz" msgpack:"tickHz"`
	Codec    string `json:"codec" msgpack:"codec"`
}

type RosterEntry struct {
	ID    string `json:"id" msgpack:"id"`
	Name  string `json:"name" msgpack:"name"`
	Color string `json:"color" msgpack:"color"`
	Bot   string `json:"bot,omitempty" msgpack:"bot,omitempty"`
}

type Roster struct {
	RoomID  string        `json:"roomId" msgpack:"roomId"`
	Status  string        `json:"status" msgpack:"status"`
	Players []RosterEntry `json:"players" msgpack:"players"`
}

type GameEnd struct {
	Scores map[string]int `json:"scores" msgpack:"scores"`
	Winner string         `json:"winner" msgpack:"winner"`
	Tied   []string       `json:"tied,omitempty" msgpack:"tied,omitempty"`
}

type Error struct {
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}
