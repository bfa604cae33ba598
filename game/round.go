package game

import (
	"log"
	"math"
	"sort"
	"time"

	"github.com/YvesLemasson/curve-io-sub000/collision"
)

const spawnAttempts = 32

// Start leaves the waiting state and begins the first round.
func (e *Engine) Start() error {
	if e.status != StatusWaiting {
		return ErrAlreadyStarted
	}
	active := 0
	for _, p := range e.players {
		if !p.Left {
			active++
		}
	}
	need := e.cfg.MinPlayers
	if need < 1 {
		need = 1
	}
	if active < need {
		return ErrNotEnoughPlayers
	}
	e.startRound()
	return nil
}

// AdvanceRound requests the next round while paused between rounds. It
// returns false, without error, when not in round-ended or when a countdown
// is already running.
func (e *Engine) AdvanceRound() bool {
	if e.status != StatusRoundEnded || e.countdown > 0 {
		return false
	}
	if ticks := e.cfg.Ticks(e.cfg.Countdown); ticks > 0 {
		e.countdown = ticks
		return true
	}
	e.startRound()
	return true
}

func (e *Engine) stepCountdown() {
	if e.countdown == 0 {
		return
	}
	e.countdown--
	if e.countdown == 0 {
		e.startRound()
	}
}

func (e *Engine) startRound() {
	kept := e.players[:0]
	for _, p := range e.players {
		if p.Left {
			delete(e.latest, p.ID)
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(e.players); i++ {
		e.players[i] = nil
	}
	e.players = kept

	e.round++
	e.deathLog = nil
	e.countdown = 0
	e.participants = len(e.players)
	e.latest = make(map[string]Input, len(e.players))

	spawned := make([]collision.Point, 0, len(e.players))
	for _, p := range e.players {
		pos := e.spawnPoint(spawned)
		spawned = append(spawned, pos)
		// face roughly towards the middle so nobody starts against a wall
		center := collision.Point{X: e.cfg.Width / 2, Y: e.cfg.Height / 2}
		heading := pos.Bearing(center) + (e.rng.Float64()-0.5)*math.Pi/2
		p.Spawn(pos, collision.NormalizeAngle(heading), e.tuning)
	}
	e.status = StatusPlaying
	log.Printf("room %s: round %d/%d started with %d players", e.id, e.round, e.cfg.TotalRounds, e.participants)
}

func (e *Engine) spawnPoint(taken []collision.Point) collision.Point {
	m := math.Min(e.cfg.SpawnMargin, math.Min(e.cfg.Width, e.cfg.Height)/2-1)
	var best collision.Point
	bestGap := -1.0
	for i := 0; i < spawnAttempts; i++ {
		p := collision.Point{
			X: m + e.rng.Float64()*(e.cfg.Width-2*m),
			Y: m + e.rng.Float64()*(e.cfg.Height-2*m),
		}
		gap := math.Inf(1)
		for _, q := range taken {
			gap = math.Min(gap, p.Dist(q))
		}
		if gap >= e.cfg.SpawnSpacing {
			return p
		}
		if gap > bestGap {
			best, bestGap = p, gap
		}
	}
	return best
}

// checkRoundOver ends the round once at most one player is alive. A round
// that began with a single participant runs until that participant dies.
func (e *Engine) checkRoundOver() {
	alive := 0
	for _, p := range e.players {
		if p.Alive {
			alive++
		}
	}
	if alive == 0 || (e.participants > 1 && alive <= 1) {
		e.endRound()
	}
}

func (e *Engine) endRound() {
	survivor := ""
	for _, p := range e.players {
		if p.Alive {
			survivor = p.ID
		}
	}
	for id, pts := range RoundPoints(e.deathLog, survivor) {
		e.scores[id] += pts
	}
	if survivor != "" {
		e.deathLog = append(e.deathLog, survivor)
	}

	if e.round < e.cfg.TotalRounds {
		e.status = StatusRoundEnded
		log.Printf("room %s: round %d ended, order %v", e.id, e.round, e.deathLog)
		return
	}

	e.status = StatusEnded
	winner, tied := Winner(e.scores)
	e.winner = winner
	log.Printf("room %s: match ended after %d rounds, winner %q", e.id, e.round, winner)
	res := e.result(tied)
	e.ended = &res
}

func (e *Engine) result(tied []string) GameResult {
	r := GameResult{
		RoomID:  e.id,
		Rounds:  e.round,
		Scores:  make(map[string]int, len(e.scores)),
		Names:   make(map[string]string, len(e.players)),
		Winner:  e.winner,
		Tied:    tied,
		EndedAt: time.Now(),
	}
	for id, s := range e.scores {
		r.Scores[id] = s
	}
	for _, p := range e.players {
		r.Names[p.ID] = p.Name
	}
	return r
}

// RoundPoints scores one round: each eliminated player earns the number of
// players eliminated before them, and the survivor, if any, earns the total
// number of eliminations.
func RoundPoints(deaths []string, survivor string) map[string]int {
	pts := make(map[string]int, len(deaths)+1)
	for i, id := range deaths {
		pts[id] = i
	}
	if survivor != "" {
		pts[survivor] = len(deaths)
	}
	return pts
}

// Winner returns the player with the highest cumulative score. A shared top
// score yields no winner; the tied IDs are returned in ascending order.
func Winner(scores map[string]int) (string, []string) {
	best := math.MinInt
	var top []string
	for id, s := range scores {
		switch {
		case s > best:
			best, top = s, []string{id}
		case s == best:
			top = append(top, id)
		}
	}
	if len(top) == 1 {
		return top[0], nil
	}
	sort.Strings(top)
	return "", top
}

// Scores returns a copy of the cumulative scores.
func (e *Engine) Scores() map[string]int {
	out := make(map[string]int, len(e.scores))
	for id, s := range e.scores {
		out[id] = s
	}
	return out
}
