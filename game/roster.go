package game

import (
	"sort"

	"github.com/YvesLemasson/curve-io-sub000/models"
)

// AddPlayer registers a participant. Players can only join while waiting.
func (e *Engine) AddPlayer(p *models.Player) error {
	if e.status != StatusWaiting {
		return ErrAlreadyStarted
	}
	if e.player(p.ID) != nil {
		return ErrDuplicatePlayer
	}
	if e.colorTaken(p.ID, p.Color) {
		return ErrColorTaken
	}
	i := sort.Search(len(e.players), func(i int) bool { return e.players[i].ID >= p.ID })
	e.players = append(e.players, nil)
	copy(e.players[i+1:], e.players[i:])
	e.players[i] = p
	e.scores[p.ID] = 0
	return nil
}

// RemovePlayer handles a departure. While waiting the player is dropped
// outright; once started they are eliminated, keep their trail and score,
// and are pruned when the next round begins.
func (e *Engine) RemovePlayer(id string) error {
	p := e.player(id)
	if p == nil {
		return ErrUnknownPlayer
	}
	if e.status == StatusWaiting {
		i := sort.Search(len(e.players), func(i int) bool { return e.players[i].ID >= id })
		e.players = append(e.players[:i], e.players[i+1:]...)
		delete(e.scores, id)
		delete(e.latest, id)
		return nil
	}
	p.Left = true
	if e.status == StatusPlaying && p.Alive {
		e.eliminate(p)
		e.checkRoundOver()
	}
	return nil
}

// SetColor changes a participant's color between rounds. The color must not
// be used by another active participant.
func (e *Engine) SetColor(id, color string) error {
	p := e.player(id)
	if p == nil {
		return ErrUnknownPlayer
	}
	if e.status == StatusPlaying {
		return ErrRoundInProgress
	}
	if e.colorTaken(id, color) {
		return ErrColorTaken
	}
	p.Color = color
	return nil
}

// colorTaken reports whether any active participant other than id uses color.
func (e *Engine) colorTaken(id, color string) bool {
	for _, o := range e.players {
		if o.ID != id && !o.Left && models.SameColor(o.Color, color) {
			return true
		}
	}
	return false
}

// ActivePlayers counts participants that have not left.
func (e *Engine) ActivePlayers() int {
	n := 0
	for _, p := range e.players {
		if !p.Left {
			n++
		}
	}
	return n
}

// ActiveBots counts bots that have not left.
func (e *Engine) ActiveBots() int {
	n := 0
	for _, p := range e.players {
		if !p.Left && p.IsBot() {
			n++
		}
	}
	return n
}

// UsedColors lists the colors of active participants.
func (e *Engine) UsedColors() []string {
	out := make([]string, 0, len(e.players))
	for _, p := range e.players {
		if !p.Left {
			out = append(out, p.Color)
		}
	}
	return out
}
