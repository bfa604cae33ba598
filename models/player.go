// Package models player.go
package models

import (
	"strings"

	"github.com/YvesLemasson/curve-io-sub000/collision"
)

// Tuning is the per-round configuration a player is spawned with. All
// durations are expressed in simulation ticks.
type Tuning struct {
	Speed       float64
	BoostBudget int
	GapInterval int
	GapDuration int
	// MaxTrail caps the trail length; 0 means unbounded.
	MaxTrail int
}

// Player is one participant of a room. It is written only by the room's tick
// loop; other goroutines read snapshots instead.
//
// Trail entries below len(Trail) are never rewritten: growth appends, the cap
// trims by reslicing the front, and a new round allocates a fresh slice. This
// is what lets snapshots share the backing array without copying.
type Player struct {
	ID     string
	Name   string
	Color  string
	Bot    string // difficulty tag, "" for humans
	Effect string // cosmetic trail effect, never inspected by the simulation

	Position collision.Point
	Heading  float64
	Speed    float64
	Alive    bool
	Left     bool // disconnected; pruned at the next round start
	Boosting bool // moved boosted during the latest tick

	Trail      collision.Trail
	TrailStart int // entries trimmed from the front since the round began
	Box        collision.Rect
	Boost      Boost

	gap       GapCycle
	sinceDraw int
	realCount int
	maxTrail  int
}

func NewPlayer(id, name, color string) *Player {
	return &Player{
		ID:    id,
		Name:  name,
		Color: color,
		Box:   collision.EmptyRect(),
	}
}

func (p *Player) IsBot() bool {
	return p.Bot != ""
}

// SameColor compares colors case-insensitively ("#ff0000" == "#FF0000").
func SameColor(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Spawn resets the player for a new round at pos facing heading. The trail is
// rebuilt from scratch with pos as its first real point.
func (p *Player) Spawn(pos collision.Point, heading float64, t Tuning) {
	p.Position = pos
	p.Heading = heading
	p.Speed = t.Speed
	p.Alive = true
	p.Boosting = false
	p.Boost = NewBoost(t.BoostBudget)
	p.gap = NewGapCycle(t.GapInterval, t.GapDuration)
	p.maxTrail = t.MaxTrail
	p.sinceDraw = 0
	p.realCount = 0
	p.TrailStart = 0
	p.Box = collision.EmptyRect()
	p.Trail = make(collision.Trail, 0, 256)
	p.appendPoint(pos)
}

// Obstacle exposes the trail for collision scans.
func (p *Player) Obstacle() collision.Obstacle {
	return collision.Obstacle{OwnerID: p.ID, Trail: p.Trail, Box: p.Box}
}

// RealPoints is the number of non-gap entries currently in the trail.
func (p *Player) RealPoints() int {
	return p.realCount
}

// AdvanceTrail runs one tick of the gap cycle after the player has moved.
// It returns true when the trail had to be repaired because it held no real
// point, which callers should treat as unexpected.
func (p *Player) AdvanceTrail() (repaired bool) {
	draw, startGap := p.gap.Advance()
	if startGap {
		p.appendEntry(collision.GapMarker)
	}
	switch {
	case draw:
		p.appendPoint(p.Position)
	case p.sinceDraw >= p.gap.Duration:
		// the cycle never let us draw for longer than a whole gap
		p.appendPoint(p.Position)
	default:
		p.sinceDraw++
	}
	if p.realCount == 0 {
		p.appendPoint(p.Position)
		return true
	}
	return false
}

func (p *Player) appendPoint(pos collision.Point) {
	p.appendEntry(collision.At(pos))
	p.Box = p.Box.Extend(pos)
	p.sinceDraw = 0
}

func (p *Player) appendEntry(e collision.Entry) {
	p.Trail = append(p.Trail, e)
	if !e.Gap {
		p.realCount++
	}
	if p.maxTrail > 0 && len(p.Trail) > p.maxTrail {
		p.trim(len(p.Trail) - p.maxTrail)
	}
}

// trim drops n entries from the front plus any gap markers that would
// otherwise become the first entry. The newest real point is always kept, so
// a tiny cap can leave the trail one gap marker over its limit.
func (p *Player) trim(n int) {
	last := len(p.Trail) - 1
	for last > 0 && p.Trail[last].Gap {
		last--
	}
	if n > last {
		n = last
	}
	for n < last && p.Trail[n].Gap {
		n++
	}
	for _, e := range p.Trail[:n] {
		if !e.Gap {
			p.realCount--
		}
	}
	p.Trail = p.Trail[n:]
	p.TrailStart += n
}
