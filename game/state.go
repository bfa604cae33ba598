package game

import (
	"slices"
	"time"

	"github.com/YvesLemasson/curve-io-sub000/collision"
)

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusPlaying    Status = "playing"
	StatusRoundEnded Status = "round-ended"
	StatusEnded      Status = "ended"
)

// PlayerSnapshot is the published view of one player. Trail shares the
// engine's backing array and must be treated as read-only.
type PlayerSnapshot struct {
	ID         string          `json:"id" msgpack:"id"`
	Name       string          `json:"name" msgpack:"name"`
	Color      string          `json:"color" msgpack:"color"`
	Bot        string          `json:"bot,omitempty" msgpack:"bot,omitempty"`
	Effect     string          `json:"effect,omitempty" msgpack:"effect,omitempty"`
	X          float64         `json:"x" msgpack:"x"`
	Y          float64         `json:"y" msgpack:"y"`
	Heading    float64         `json:"heading" msgpack:"heading"`
	Alive      bool            `json:"alive" msgpack:"alive"`
	Boosting   bool            `json:"boosting" msgpack:"boosting"`
	BoostMs    int64           `json:"boostMs" msgpack:"boostMs"`
	Score      int             `json:"score" msgpack:"score"`
	Trail      collision.Trail `json:"trail" msgpack:"trail"`
	TrailStart int             `json:"trailStart" msgpack:"trailStart"`
}

func (p PlayerSnapshot) Pos() collision.Point {
	return collision.Point{X: p.X, Y: p.Y}
}

// Snapshot is the complete state of a room after one tick. Players are
// ordered by ascending ID.
type Snapshot struct {
	Tick        uint64           `json:"tick" msgpack:"tick"`
	Status      Status           `json:"status" msgpack:"status"`
	Round       int              `json:"round" msgpack:"round"`
	TotalRounds int              `json:"totalRounds" msgpack:"totalRounds"`
	CountdownMs int64            `json:"countdownMs" msgpack:"countdownMs"`
	Width       float64          `json:"width" msgpack:"width"`
	Height      float64          `json:"height" msgpack:"height"`
	Players     []PlayerSnapshot `json:"players" msgpack:"players"`
	DeathLog    []string         `json:"deathLog" msgpack:"deathLog"`
	Winner      string           `json:"winner,omitempty" msgpack:"winner,omitempty"`
}

// Player finds a player by ID.
func (s *Snapshot) Player(id string) (PlayerSnapshot, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerSnapshot{}, false
}

// Obstacles returns every trail of the snapshot for collision scans, in
// player order.
func (s *Snapshot) Obstacles() []collision.Obstacle {
	out := make([]collision.Obstacle, 0, len(s.Players))
	for _, p := range s.Players {
		out = append(out, collision.NewObstacle(p.ID, p.Trail))
	}
	return out
}

// Equal compares two snapshots field by field; nil and empty slices are
// considered equal.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s.Tick != o.Tick || s.Status != o.Status || s.Round != o.Round ||
		s.TotalRounds != o.TotalRounds || s.CountdownMs != o.CountdownMs ||
		s.Width != o.Width || s.Height != o.Height || s.Winner != o.Winner {
		return false
	}
	if !slices.Equal(s.DeathLog, o.DeathLog) || len(s.Players) != len(o.Players) {
		return false
	}
	for i := range s.Players {
		if !s.Players[i].Equal(o.Players[i]) {
			return false
		}
	}
	return true
}

func (p PlayerSnapshot) Equal(o PlayerSnapshot) bool {
	return p.ID == o.ID && p.Name == o.Name && p.Color == o.Color &&
		p.Bot == o.Bot && p.Effect == o.Effect &&
		p.X == o.X && p.Y == o.Y && p.Heading == o.Heading &&
		p.Alive == o.Alive && p.Boosting == o.Boosting && p.BoostMs == o.BoostMs &&
		p.Score == o.Score && p.TrailStart == o.TrailStart && p.Trail.Equal(o.Trail)
}

// GameResult is handed to the persistence collaborator when a match ends.
type GameResult struct {
	RoomID  string            `json:"roomId"`
	Rounds  int               `json:"rounds"`
	Scores  map[string]int    `json:"scores"`
	Names   map[string]string `json:"names"`
	Winner  string            `json:"winner"`
	Tied    []string          `json:"tied,omitempty"`
	EndedAt time.Time         `json:"endedAt"`
}
