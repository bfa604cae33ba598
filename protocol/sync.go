package protocol

import (
	"slices"
	"time"

	"github.com/YvesLemasson/curve-io-sub000/collision"
	"github.com/YvesLemasson/curve-io-sub000/game"
)

type FrameKind string

const (
	FrameFull  FrameKind = "full"
	FrameDelta FrameKind = "delta"
)

const (
	// DefaultResyncInterval is the number of delta frames between two full
	// snapshots.
	DefaultResyncInterval = 300
	// DefaultTailWindow is how many trailing trail entries are resent when a
	// trail was trimmed or its tail changed in place.
	DefaultTailWindow = 8
)

// Frame is one tick of the state stream. Exactly one of Full and Delta is set.
type Frame struct {
	Kind       FrameKind      `json:"kind" msgpack:"kind"`
	Tick       uint64         `json:"tick" msgpack:"tick"`
	ServerTime int64          `json:"serverTime" msgpack:"serverTime"` // unix ms
	Full       *game.Snapshot `json:"full,omitempty" msgpack:"full,omitempty"`
	Delta      *Delta         `json:"delta,omitempty" msgpack:"delta,omitempty"`
}

// Delta lists only what changed since the previous frame. Nil pointers mean
// "unchanged".
type Delta struct {
	Status      *game.Status  `json:"status,omitempty" msgpack:"status,omitempty"`
	Round       *int          `json:"round,omitempty" msgpack:"round,omitempty"`
	TotalRounds *int          `json:"totalRounds,omitempty" msgpack:"totalRounds,omitempty"`
	CountdownMs *int64        `json:"countdownMs,omitempty" msgpack:"countdownMs,omitempty"`
	Width       *float64      `json:"width,omitempty" msgpack:"width,omitempty"`
	Height      *float64      `json:"height,omitempty" msgpack:"height,omitempty"`
	DeathLog    *[]string     `json:"deathLog,omitempty" msgpack:"deathLog,omitempty"`
	Winner      *string       `json:"winner,omitempty" msgpack:"winner,omitempty"`
	Players     []PlayerDelta `json:"players,omitempty" msgpack:"players,omitempty"`
	Removed     []string      `json:"removed,omitempty" msgpack:"removed,omitempty"`
}

// PlayerDelta carries the changed fields of one player.
//
// Trail updates come in two shapes. With TrailReplace the receiver discards
// its copy and takes Trail as is. Otherwise, when TrailLen is set, the
// receiver drops TrailStart-oldStart entries from the front, keeps
// TrailLen-len(Trail) of the remaining ones and appends Trail.
type PlayerDelta struct {
	ID       string   `json:"id" msgpack:"id"`
	Name     *string  `json:"name,omitempty" msgpack:"name,omitempty"`
	Color    *string  `json:"color,omitempty" msgpack:"color,omitempty"`
	Bot      *string  `json:"bot,omitempty" msgpack:"bot,omitempty"`
	Effect   *string  `json:"effect,omitempty" msgpack:"effect,omitempty"`
	X        *float64 `json:"x,omitempty" msgpack:"x,omitempty"`
	Y        *float64 `json:"y,omitempty" msgpack:"y,omitempty"`
	Heading  *float64 `json:"heading,omitempty" msgpack:"heading,omitempty"`
	Alive    *bool    `json:"alive,omitempty" msgpack:"alive,omitempty"`
	Boosting *bool    `json:"boosting,omitempty" msgpack:"boosting,omitempty"`
	BoostMs  *int64   `json:"boostMs,omitempty" msgpack:"boostMs,omitempty"`
	Score    *int     `json:"score,omitempty" msgpack:"score,omitempty"`

	Trail        collision.Trail `json:"trail,omitempty" msgpack:"trail,omitempty"`
	TrailReplace bool            `json:"trailReplace,omitempty" msgpack:"trailReplace,omitempty"`
	TrailLen     *int            `json:"trailLen,omitempty" msgpack:"trailLen,omitempty"`
	TrailStart   *int            `json:"trailStart,omitempty" msgpack:"trailStart,omitempty"`
}

// Synchronizer turns the room's snapshot stream into frames for the wire.
// The first frame, every resync interval, and every status change produce a
// full snapshot; everything else is a delta against the previous snapshot.
// A Synchronizer is not safe for concurrent use; the room calls it from the
// tick goroutine only.
type Synchronizer struct {
	resync    int
	tail      int
	prev      *game.Snapshot
	sinceFull int
	now       func() time.Time

	fulls  uint64
	deltas uint64
}

func NewSynchronizer(resyncInterval int) *Synchronizer {
	if resyncInterval <= 0 {
		resyncInterval = DefaultResyncInterval
	}
	return &Synchronizer{resync: resyncInterval, tail: DefaultTailWindow, now: time.Now}
}

// Publish produces the frame for snap and remembers snap as the new base.
func (s *Synchronizer) Publish(snap *game.Snapshot) Frame {
	full := s.prev == nil || s.sinceFull >= s.resync || snap.Status != s.prev.Status
	var f Frame
	if full {
		f = FullFrame(snap, s.now())
		s.sinceFull = 0
		s.fulls++
	} else {
		f = Frame{
			Kind:       FrameDelta,
			Tick:       snap.Tick,
			ServerTime: s.now().UnixMilli(),
			Delta:      Diff(s.prev, snap, s.tail),
		}
		s.sinceFull++
		s.deltas++
	}
	s.prev = snap
	return f
}

// Last returns the snapshot the next delta will be computed against.
func (s *Synchronizer) Last() *game.Snapshot {
	return s.prev
}

// Counts reports how many full and delta frames were produced.
func (s *Synchronizer) Counts() (fulls, deltas uint64) {
	return s.fulls, s.deltas
}

// FullFrame wraps snap as a complete snapshot, e.g. for a late joiner.
func FullFrame(snap *game.Snapshot, now time.Time) Frame {
	return Frame{Kind: FrameFull, Tick: snap.Tick, ServerTime: now.UnixMilli(), Full: snap}
}

// Diff computes the delta taking prev to cur. tail is the number of trailing
// trail entries resent when a trail changed other than by pure growth.
func Diff(prev, cur *game.Snapshot, tail int) *Delta {
	d := &Delta{}
	if cur.Status != prev.Status {
		d.Status = ptr(cur.Status)
	}
	if cur.Round != prev.Round {
		d.Round = ptr(cur.Round)
	}
	if cur.TotalRounds != prev.TotalRounds {
		d.TotalRounds = ptr(cur.TotalRounds)
	}
	if cur.CountdownMs != prev.CountdownMs {
		d.CountdownMs = ptr(cur.CountdownMs)
	}
	if cur.Width != prev.Width {
		d.Width = ptr(cur.Width)
	}
	if cur.Height != prev.Height {
		d.Height = ptr(cur.Height)
	}
	if !slices.Equal(cur.DeathLog, prev.DeathLog) {
		dl := append([]string{}, cur.DeathLog...)
		d.DeathLog = &dl
	}
	if cur.Winner != prev.Winner {
		d.Winner = ptr(cur.Winner)
	}

	old := make(map[string]*game.PlayerSnapshot, len(prev.Players))
	for i := range prev.Players {
		old[prev.Players[i].ID] = &prev.Players[i]
	}
	for i := range cur.Players {
		p := &cur.Players[i]
		if pd, changed := diffPlayer(old[p.ID], p, tail); changed {
			d.Players = append(d.Players, pd)
		}
		delete(old, p.ID)
	}
	for _, p := range prev.Players {
		if _, gone := old[p.ID]; gone {
			d.Removed = append(d.Removed, p.ID)
		}
	}
	return d
}

func diffPlayer(o, p *game.PlayerSnapshot, tail int) (PlayerDelta, bool) {
	pd := PlayerDelta{ID: p.ID}
	if o == nil {
		o = &game.PlayerSnapshot{}
		// a new player always ships its trail whole, even when empty
		pd.TrailReplace = true
		pd.Trail = p.Trail
		pd.TrailStart = ptr(p.TrailStart)
	}
	changed := pd.TrailReplace
	set := func(cond bool, apply func()) {
		if cond {
			apply()
			changed = true
		}
	}
	set(p.Name != o.Name, func() { pd.Name = ptr(p.Name) })
	set(p.Color != o.Color, func() { pd.Color = ptr(p.Color) })
	set(p.Bot != o.Bot, func() { pd.Bot = ptr(p.Bot) })
	set(p.Effect != o.Effect, func() { pd.Effect = ptr(p.Effect) })
	set(p.X != o.X, func() { pd.X = ptr(p.X) })
	set(p.Y != o.Y, func() { pd.Y = ptr(p.Y) })
	set(p.Heading != o.Heading, func() { pd.Heading = ptr(p.Heading) })
	set(p.Alive != o.Alive, func() { pd.Alive = ptr(p.Alive) })
	set(p.Boosting != o.Boosting, func() { pd.Boosting = ptr(p.Boosting) })
	set(p.BoostMs != o.BoostMs, func() { pd.BoostMs = ptr(p.BoostMs) })
	set(p.Score != o.Score, func() { pd.Score = ptr(p.Score) })

	if !pd.TrailReplace && diffTrail(&pd, o, p, tail) {
		changed = true
	}
	return pd, changed
}

// diffTrail fills the trail part of pd and reports whether anything changed.
func diffTrail(pd *PlayerDelta, o, p *game.PlayerSnapshot, tail int) bool {
	oldT, newT := o.Trail, p.Trail
	drop := p.TrailStart - o.TrailStart
	replace := func() bool {
		pd.TrailReplace = true
		pd.Trail = newT
		pd.TrailStart = ptr(p.TrailStart)
		return true
	}
	if drop < 0 || drop > len(oldT) {
		return replace()
	}
	kept := len(oldT) - drop // old entries still present at the front of newT
	if len(newT) < kept {
		return replace()
	}

	var send int
	switch {
	case drop == 0 && len(newT) > kept:
		send = len(newT) - kept
	case drop == 0:
		// same window; resend the tail only when it differs
		n := min(tail, len(newT))
		if collision.Trail(oldT[len(oldT)-n:]).Equal(newT[len(newT)-n:]) {
			return false
		}
		send = n
	default:
		send = min(max(tail, len(newT)-kept), len(newT))
	}

	keep := len(newT) - send
	// the last entry the receiver keeps must match ours, otherwise the trails
	// diverged somewhere before the window we are about to send
	if keep > 0 && oldT[drop+keep-1] != newT[keep-1] {
		return replace()
	}
	pd.Trail = newT[keep:]
	pd.TrailLen = ptr(len(newT))
	if drop != 0 {
		pd.TrailStart = ptr(p.TrailStart)
	}
	return true
}

func ptr[T any](v T) *T {
	return &v
}
