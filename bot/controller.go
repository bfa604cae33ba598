package bot

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/YvesLemasson/curve-io-sub000/game"
)

// Target is the room side a bot plays against: published snapshots in, the
// shared input queue out.
type Target interface {
	View() *game.Snapshot
	Enqueue(game.Input) bool
}

// Controller plays one bot on its own decision cadence, independent of the
// tick rate.
type Controller struct {
	ID         string
	Difficulty Difficulty

	target Target
	params Params
	rng    *rand.Rand
	last   uint64
}

func NewController(id string, d Difficulty, cfg game.Config, t Target, seed int64) *Controller {
	return &Controller{
		ID:         id,
		Difficulty: d,
		target:     t,
		params:     NewParams(d, cfg),
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Run decides every DecisionInterval and submits each decision after the
// tier's reaction delay, until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.params.DecisionInterval)
	defer ticker.Stop()
	log.Printf("bot %s (%s) running", c.ID, c.Difficulty)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		d, ok := c.decide(c.target.View())
		if !ok {
			continue
		}
		if c.params.ReactionDelay > 0 {
			t := time.NewTimer(c.params.ReactionDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		c.submit(d)
	}
}

// Act decides on snap and submits immediately. It reports false when there
// was nothing to decide: no new playing snapshot, or the bot is dead.
func (c *Controller) Act(snap *game.Snapshot) (Decision, bool) {
	d, ok := c.decide(snap)
	if ok {
		c.submit(d)
	}
	return d, ok
}

func (c *Controller) decide(snap *game.Snapshot) (Decision, bool) {
	if snap == nil || snap.Status != game.StatusPlaying || snap.Tick == c.last {
		return Decision{}, false
	}
	c.last = snap.Tick
	d := Decide(snap, c.ID, c.params, c.rng)
	return d, d.Reason != "idle"
}

func (c *Controller) submit(d Decision) {
	c.target.Enqueue(game.Input{
		PlayerID:  c.ID,
		Direction: d.Direction,
		Boost:     d.Boost,
		Timestamp: time.Now(),
	})
}
