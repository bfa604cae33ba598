package protocol

import (
	"errors"
	"fmt"
	"sort"

	"github.com/YvesLemasson/curve-io-sub000/collision"
	"github.com/YvesLemasson/curve-io-sub000/game"
)

var (
	ErrNoBase        = errors.New("delta received before any full snapshot")
	ErrTrailMismatch = errors.New("trail delta does not fit the local trail")
)

// Mirror rebuilds the server's snapshots from a frame stream, the way a
// client does. It is not safe for concurrent use.
type Mirror struct {
	state *game.Snapshot
}

// State returns the reconstructed snapshot, or nil before the first full
// frame. The returned value must not be modified.
func (m *Mirror) State() *game.Snapshot {
	if m.state == nil {
		return nil
	}
	s := *m.state
	s.Players = append([]game.PlayerSnapshot(nil), m.state.Players...)
	return &s
}

// Apply folds one frame into the mirrored state.
func (m *Mirror) Apply(f Frame) error {
	switch f.Kind {
	case FrameFull:
		if f.Full == nil {
			return fmt.Errorf("full frame %d without snapshot", f.Tick)
		}
		s := *f.Full
		s.Players = append([]game.PlayerSnapshot(nil), f.Full.Players...)
		m.state = &s
		return nil
	case FrameDelta:
		if m.state == nil {
			return ErrNoBase
		}
		if f.Delta == nil {
			return fmt.Errorf("delta frame %d without delta", f.Tick)
		}
		next := *m.state
		next.Players = append([]game.PlayerSnapshot(nil), m.state.Players...)
		if err := applyDelta(&next, f.Delta); err != nil {
			return fmt.Errorf("tick %d: %w", f.Tick, err)
		}
		next.Tick = f.Tick
		m.state = &next
		return nil
	default:
		return fmt.Errorf("unknown frame kind %q", f.Kind)
	}
}

func applyDelta(s *game.Snapshot, d *Delta) error {
	if d.Status != nil {
		s.Status = *d.Status
	}
	if d.Round != nil {
		s.Round = *d.Round
	}
	if d.TotalRounds != nil {
		s.TotalRounds = *d.TotalRounds
	}
	if d.CountdownMs != nil {
		s.CountdownMs = *d.CountdownMs
	}
	if d.Width != nil {
		s.Width = *d.Width
	}
	if d.Height != nil {
		s.Height = *d.Height
	}
	if d.DeathLog != nil {
		s.DeathLog = append([]string(nil), (*d.DeathLog)...)
	}
	if d.Winner != nil {
		s.Winner = *d.Winner
	}

	if len(d.Removed) > 0 {
		gone := make(map[string]bool, len(d.Removed))
		for _, id := range d.Removed {
			gone[id] = true
		}
		kept := s.Players[:0]
		for _, p := range s.Players {
			if !gone[p.ID] {
				kept = append(kept, p)
			}
		}
		s.Players = kept
	}

	for _, pd := range d.Players {
		i := sort.Search(len(s.Players), func(i int) bool { return s.Players[i].ID >= pd.ID })
		if i == len(s.Players) || s.Players[i].ID != pd.ID {
			s.Players = append(s.Players, game.PlayerSnapshot{})
			copy(s.Players[i+1:], s.Players[i:])
			s.Players[i] = game.PlayerSnapshot{ID: pd.ID}
		}
		if err := applyPlayer(&s.Players[i], pd); err != nil {
			return fmt.Errorf("player %s: %w", pd.ID, err)
		}
	}
	return nil
}

func applyPlayer(p *game.PlayerSnapshot, pd PlayerDelta) error {
	assign(&p.Name, pd.Name)
	assign(&p.Color, pd.Color)
	assign(&p.Bot, pd.Bot)
	assign(&p.Effect, pd.Effect)
	assign(&p.X, pd.X)
	assign(&p.Y, pd.Y)
	assign(&p.Heading, pd.Heading)
	assign(&p.Alive, pd.Alive)
	assign(&p.Boosting, pd.Boosting)
	assign(&p.BoostMs, pd.BoostMs)
	assign(&p.Score, pd.Score)

	switch {
	case pd.TrailReplace:
		p.Trail = append(collision.Trail(nil), pd.Trail...)
		p.TrailStart = 0
		assign(&p.TrailStart, pd.TrailStart)
	case pd.TrailLen != nil:
		start := p.TrailStart
		assign(&start, pd.TrailStart)
		drop := start - p.TrailStart
		if drop < 0 || drop > len(p.Trail) {
			return ErrTrailMismatch
		}
		rest := p.Trail[drop:]
		keep := *pd.TrailLen - len(pd.Trail)
		if keep < 0 || keep > len(rest) {
			return ErrTrailMismatch
		}
		t := make(collision.Trail, 0, *pd.TrailLen)
		t = append(t, rest[:keep]...)
		p.Trail = append(t, pd.Trail...)
		p.TrailStart = start
	}
	return nil
}

func assign[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
