// Package game is the authoritative simulation of one room: a fixed-rate tick
// loop that owns every player, applies queued inputs, resolves collisions and
// drives the round state machine.
package game

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"github.com/YvesLemasson/curve-io-sub000/collision"
	"github.com/YvesLemasson/curve-io-sub000/models"
)

var (
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrAlreadyStarted   = errors.New("game already started")
	ErrRoundInProgress  = errors.New("round in progress")
	ErrColorTaken       = errors.New("color already taken")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrDuplicatePlayer  = errors.New("player already in game")
	ErrEngineStopped    = errors.New("engine stopped")
)

const inputQueueSize = 1024

type call struct {
	fn    func(*Engine) error
	reply chan error
}

// Engine runs one room's simulation. Every field below the channels is owned
// by the goroutine executing Run (or by the caller of Step when the engine is
// driven manually); other goroutines interact only through Enqueue, Call and
// View.
type Engine struct {
	id     string
	cfg    Config
	tuning models.Tuning
	rng    *rand.Rand

	inputs chan Input
	calls  chan call
	done   chan struct{}
	ran    atomic.Bool
	view   atomic.Pointer[Snapshot]

	onPublish func(*Snapshot)
	onEnd     func(GameResult)
	ended     *GameResult // final result waiting for the next publish

	players      []*models.Player
	latest       map[string]Input
	scores       map[string]int
	status       Status
	round        int
	deathLog     []string
	participants int
	countdown    int
	winner       string
	tick         uint64
}

func NewEngine(id string, cfg Config) *Engine {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	e := &Engine{
		id:     id,
		cfg:    cfg,
		tuning: cfg.tuning(),
		rng:    rand.New(rand.NewSource(seed)),
		inputs: make(chan Input, inputQueueSize),
		calls:  make(chan call),
		done:   make(chan struct{}),
		latest: make(map[string]Input),
		scores: make(map[string]int),
		status: StatusWaiting,
	}
	return e
}

func (e *Engine) ID() string { return e.id }
func (e *Engine) Config() Config { return e.cfg }
func (e *Engine) Status() Status { return e.status }
func (e *Engine) Round() int { return e.round }
func (e *Engine) DeathLog() []string { return e.deathLog }

// OnPublish registers the hook receiving every tick's snapshot. It runs on
// the tick goroutine and must be set before Run.
func (e *Engine) OnPublish(fn func(*Snapshot)) { e.onPublish = fn }

// OnGameEnd registers the hook receiving the final result. It runs on the
// tick goroutine, after the snapshot with status ended has been published,
// and must be set before Run.
func (e *Engine) OnGameEnd(fn func(GameResult)) { e.onEnd = fn }

// View returns the snapshot published by the latest tick, or nil before the
// first one. Safe for concurrent use.
func (e *Engine) View() *Snapshot {
	return e.view.Load()
}

// Done is closed once Run has returned.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Run ticks until ctx is cancelled. An engine runs at most once; a stopped
// engine cannot be restarted.
func (e *Engine) Run(ctx context.Context) {
	if !e.ran.CompareAndSwap(false, true) {
		return
	}
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.TickDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-e.calls:
			c.reply <- c.fn(e)
		case <-ticker.C:
			e.Step()
		}
	}
}

// Call executes fn on the tick goroutine between two ticks and returns its
// error.
func (e *Engine) Call(ctx context.Context, fn func(*Engine) error) error {
	reply := make(chan error, 1)
	select {
	case e.calls <- call{fn: fn, reply: reply}:
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue queues an input for the next tick without blocking. Inputs with an
// invalid direction, and inputs arriving while the queue is full, are dropped.
func (e *Engine) Enqueue(in Input) bool {
	if in.PlayerID == "" || !in.Direction.valid() {
		return false
	}
	select {
	case e.inputs <- in:
		return true
	default:
		return false
	}
}

// Step advances the simulation by one tick and publishes the result.
func (e *Engine) Step() *Snapshot {
	e.tick++
	e.drainInputs()

	switch e.status {
	case StatusPlaying:
		e.stepPlaying()
	case StatusRoundEnded:
		e.stepCountdown()
	}

	snap := e.snapshot()
	e.view.Store(snap)
	if e.onPublish != nil {
		e.onPublish(snap)
	}
	if res := e.ended; res != nil {
		e.ended = nil
		if e.onEnd != nil {
			e.onEnd(*res)
		}
	}
	return snap
}

func (e *Engine) drainInputs() {
	for {
		select {
		case in := <-e.inputs:
			if e.player(in.PlayerID) == nil {
				continue
			}
			e.latest[in.PlayerID] = in
		default:
			return
		}
	}
}

type move struct {
	p    *models.Player
	next collision.Point
}

func (e *Engine) stepPlaying() {
	obstacles := make([]collision.Obstacle, 0, len(e.players))
	for _, p := range e.players {
		if len(p.Trail) > 0 {
			obstacles = append(obstacles, p.Obstacle())
		}
	}

	moves := make([]move, 0, len(e.players))
	for _, p := range e.players {
		if !p.Alive {
			continue
		}
		in := e.latest[p.ID]
		switch in.Direction {
		case DirLeft:
			p.Heading = collision.NormalizeAngle(p.Heading - e.cfg.TurnRate)
		case DirRight:
			p.Heading = collision.NormalizeAngle(p.Heading + e.cfg.TurnRate)
		}
		speed := p.Speed
		p.Boosting = p.Boost.Update(in.Boost)
		if p.Boosting {
			speed *= e.cfg.BoostMultiplier
		}
		moves = append(moves, move{p: p, next: p.Position.Step(p.Heading, speed)})
	}

	// every check sees the trails as they were at the start of the tick
	for _, m := range moves {
		if cause := e.collide(m.p, m.next, obstacles); cause != "" {
			log.Printf("room %s: player %s eliminated (%s) in round %d", e.id, m.p.ID, cause, e.round)
			e.eliminate(m.p)
		}
	}
	for _, m := range moves {
		if !m.p.Alive {
			continue
		}
		m.p.Position = m.next
		if m.p.AdvanceTrail() {
			log.Printf("room %s: unexpected empty trail for player %s, appended current position", e.id, m.p.ID)
		}
	}

	e.checkRoundOver()
}

// collide runs boundary, other-trail and self-trail checks in that order and
// names the first that fired.
func (e *Engine) collide(p *models.Player, next collision.Point, obstacles []collision.Obstacle) string {
	if collision.BoundaryHit(next, e.cfg.Width, e.cfg.Height) {
		return "boundary"
	}
	if hit := collision.TrailCollision(p.Position, next, obstacles, p.ID); hit.Hit {
		return "trail of " + hit.By
	}
	if collision.SelfCollision(p.Position, next, p.Trail) {
		return "own trail"
	}
	return ""
}

func (e *Engine) eliminate(p *models.Player) {
	p.Alive = false
	p.Boosting = false
	for _, id := range e.deathLog {
		if id == p.ID {
			return
		}
	}
	e.deathLog = append(e.deathLog, p.ID)
}

func (e *Engine) player(id string) *models.Player {
	i := sort.Search(len(e.players), func(i int) bool { return e.players[i].ID >= id })
	if i < len(e.players) && e.players[i].ID == id {
		return e.players[i]
	}
	return nil
}

func (e *Engine) snapshot() *Snapshot {
	s := &Snapshot{
		Tick:        e.tick,
		Status:      e.status,
		Round:       e.round,
		TotalRounds: e.cfg.TotalRounds,
		CountdownMs: e.cfg.millis(e.countdown),
		Width:       e.cfg.Width,
		Height:      e.cfg.Height,
		Players:     make([]PlayerSnapshot, 0, len(e.players)),
		DeathLog:    e.deathLog[:len(e.deathLog):len(e.deathLog)],
		Winner:      e.winner,
	}
	for _, p := range e.players {
		s.Players = append(s.Players, PlayerSnapshot{
			ID:         p.ID,
			Name:       p.Name,
			Color:      p.Color,
			Bot:        p.Bot,
			Effect:     p.Effect,
			X:          p.Position.X,
			Y:          p.Position.Y,
			Heading:    p.Heading,
			Alive:      p.Alive,
			Boosting:   p.Boosting,
			BoostMs:    e.cfg.millis(p.Boost.Remaining),
			Score:      e.scores[p.ID],
			Trail:      p.Trail[:len(p.Trail):len(p.Trail)],
			TrailStart: p.TrailStart,
		})
	}
	return s
}
