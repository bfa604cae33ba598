// Package bot drives computer players. A bot only ever reads published
// snapshots and submits inputs through the same queue humans use.
package bot

import (
	"math"
	"math/rand"

	"github.com/YvesLemasson/curve-io-sub000/collision"
	"github.com/YvesLemasson/curve-io-sub000/game"
)

const (
	// ownRecent is how many of the bot's newest trail entries it ignores when
	// looking for obstacles; they always sit right behind it.
	ownRecent = 30

	minClearance    = 20.0
	scoreTurnTicks  = 8
	scoreSamples    = 6
	followTicks     = 30
	marginThreshold = 6.0
	gapTolerance    = math.Pi / 3
	minGapWidth     = 10.0
	steerDeadband   = 1e-3
	crashScore      = -1000.0
	crampedPenalty  = 500.0

	// A move is only safe when some chain of survivalDepth held or turning
	// segments, survivalSegment ticks each, keeps clear after it.
	survivalSegment = 15
	survivalDepth   = 8
	survivalBudget  = 3000

	// areaShare is the fraction of the best reachable region below which a
	// move counts as heading into a pocket.
	areaShare = 0.8
	openShare = 1.15

	rayCount = 7
	rayRange = 300.0
	rayChunk = 64.0

	// laneWidth is how far the bot keeps from the wall it runs alongside.
	// Each lap then packs inside the previous one.
	laneWidth    = 55.0
	followWeight = 6.0
	crowdWeight  = 3.0
	frontRange   = 120.0
)

var (
	sideRays  = [...]float64{math.Pi / 2, math.Pi / 3, 2 * math.Pi / 9, 5 * math.Pi / 36}
	frontRays = [...]float64{-math.Pi / 9, -math.Pi / 18, 0, math.Pi / 18, math.Pi / 9}
)

// Params are the inputs of one decision besides the snapshot.
type Params struct {
	Profile
	Speed    float64 // units per tick, unboosted
	TurnRate float64 // radians per tick
	Commit   int     // ticks one decision stays in force
}

// NewParams derives the per-tick parameters of tier d for an engine running
// cfg.
func NewParams(d Difficulty, cfg game.Config) Params {
	p := d.Profile()
	return Params{
		Profile:  p,
		Speed:    cfg.Speed,
		TurnRate: cfg.TurnRate,
		Commit:   max(1, cfg.Ticks(p.DecisionInterval)),
	}
}

// Decision is what a bot submits for its next input.
type Decision struct {
	Direction game.Direction
	Boost     bool
	Reason    string
}

// Decide picks the next input for player id. It is a pure function of its
// arguments; all randomness comes from rng.
func Decide(snap *game.Snapshot, id string, prm Params, rng *rand.Rand) Decision {
	self, ok := snap.Player(id)
	if !ok || !self.Alive {
		return Decision{Reason: "idle"}
	}
	w := newWorld(snap, self, prm)
	d := w.decide(rng)
	if prm.ErrorRate > 0 && rng.Float64() < prm.ErrorRate {
		d.Direction = game.Direction(rng.Intn(3))
		d.Reason += "+error"
	}
	return d
}

// Steer turns heading towards bearing. The signed difference heading-bearing
// decides: positive turns left, negative turns right.
func Steer(heading, bearing float64) game.Direction {
	diff := collision.NormalizeAngle(heading - bearing)
	switch {
	case diff > steerDeadband:
		return game.DirLeft
	case diff < -steerDeadband:
		return game.DirRight
	default:
		return game.DirNone
	}
}

type world struct {
	width, height float64
	center        collision.Point
	self          game.PlayerSnapshot
	pos           collision.Point
	ix            *collision.Index
	space         *space
	keep          collision.Filter
	prm           Params
	commit        int
	tick          uint64
	budget        int
}

func newWorld(snap *game.Snapshot, self game.PlayerSnapshot, prm Params) *world {
	ix := collision.NewIndex(32)
	ownLen := 0
	for _, p := range snap.Players {
		t := p.Trail
		if p.ID == self.ID {
			t = closeGaps(t)
			ownLen = len(t)
		}
		ix.Add(p.ID, t)
	}
	sp := newSpace(snap.Width, snap.Height)
	ix.Each(func(s collision.Segment) { sp.block(s.A, s.B) })
	sp.label()

	return &world{
		width:  snap.Width,
		height: snap.Height,
		center: collision.Point{X: snap.Width / 2, Y: snap.Height / 2},
		self:   self,
		pos:    self.Pos(),
		ix:     ix,
		space:  sp,
		keep: func(s collision.Segment) bool {
			return s.Owner != self.ID || s.Seq < ownLen-ownRecent
		},
		prm:    prm,
		commit: max(1, prm.Commit),
		tick:   snap.Tick,
	}
}

// closeGaps joins the drawn runs of t across its gap markers. A bot treats
// its own holes as walls: behind them lie its older, narrower lanes.
func closeGaps(t collision.Trail) collision.Trail {
	out := make(collision.Trail, 0, len(t))
	for _, e := range t {
		if !e.Gap {
			out = append(out, e)
		}
	}
	return out
}

func (w *world) decide(rng *rand.Rand) Decision {
	h := w.self.Heading
	ahead := w.pos.Step(h, w.prm.Lookahead)

	if collision.BoundaryHit(ahead, w.width, w.height) {
		return Decision{Direction: w.boundaryTurn(), Reason: "boundary"}
	}
	if w.ix.Crosses(w.pos, ahead, w.keep) {
		if g, ok := w.gapTarget(); ok {
			return Decision{Direction: Steer(h, w.pos.Bearing(g.Mid())), Reason: "gap"}
		}
		return Decision{Direction: w.safeTurn(rng), Reason: "avoid"}
	}
	if w.clearance(w.pos) < minClearance {
		return Decision{Direction: w.safeTurn(rng), Reason: "clearance"}
	}
	return w.explore(rng)
}

// boundaryTurn steers towards the center unless only the other side leaves
// a way out, or the other side opens onto a much larger region.
func (w *world) boundaryTurn() game.Direction {
	d := Steer(w.self.Heading, w.pos.Bearing(w.center))
	if d == game.DirNone {
		d = game.DirLeft
	}
	o := game.DirLeft
	if d == game.DirLeft {
		o = game.DirRight
	}
	there, other := w.assess(d), w.assess(o)
	if other.safe && (!there.safe || float64(there.area) < float64(other.area)*areaShare) {
		return o
	}
	return d
}

// gapTarget looks for a hole in a nearby trail that is wide enough, roughly
// ahead, and reachable in a straight line.
func (w *world) gapTarget() (collision.Gap, bool) {
	h := w.self.Heading
	best, bestDist := collision.Gap{}, math.Inf(1)
	for _, g := range w.ix.GapsNear(w.pos, w.prm.Lookahead*1.5) {
		if g.Width() < minGapWidth {
			continue
		}
		mid := g.Mid()
		if math.Abs(collision.NormalizeAngle(h-w.pos.Bearing(mid))) > gapTolerance {
			continue
		}
		if w.ix.Crosses(w.pos, mid, w.keep) {
			continue
		}
		if d := w.pos.Dist(mid); d < bestDist {
			best, bestDist = g, d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}

// safeTurn compares a turn to either side. An unsafe side loses, and so does
// a side leading into a much smaller region; between comparable sides the
// more open one wins and a coin settles the rest.
func (w *world) safeTurn(rng *rand.Rand) game.Direction {
	left, right := w.assess(game.DirLeft), w.assess(game.DirRight)
	switch {
	case left.safe && right.safe:
		switch {
		case float64(left.area) < float64(right.area)*areaShare:
			return game.DirRight
		case float64(right.area) < float64(left.area)*areaShare:
			return game.DirLeft
		case left.open > right.open*openShare:
			return game.DirLeft
		case right.open > left.open*openShare:
			return game.DirRight
		}
		if rng.Intn(2) == 0 {
			return game.DirLeft
		}
		return game.DirRight
	case left.safe:
		return game.DirLeft
	case right.safe:
		return game.DirRight
	}
	if d := Steer(w.self.Heading, w.pos.Bearing(w.center)); d != game.DirNone {
		return d
	}
	return game.DirLeft
}

type outlook struct {
	safe bool
	open float64 // mean free distance around the best way out
	area int     // free cells reachable from the best way out
}

// assess holds dir for one decision's worth of ticks and is safe when the
// bot can survive from there. The way out is judged by holding, turning left
// and turning right for the rest of the horizon, or by where the move ends
// when none of those stays clear.
func (w *world) assess(dir game.Direction) outlook {
	p, h, ok := w.run(w.pos, w.self.Heading, dir, w.commit, w.commit)
	if !ok {
		return outlook{}
	}
	w.budget = survivalBudget
	first := survivalSegment - int((w.tick+uint64(w.commit))%survivalSegment)
	if !w.survive(p, h, survivalDepth, first) {
		return outlook{}
	}
	n := max(1, w.horizon()-w.commit)
	out := outlook{safe: true}
	found := false
	for _, f := range [...]game.Direction{game.DirNone, game.DirLeft, game.DirRight} {
		q, g, ok := w.run(p, h, f, followTicks, n)
		if !ok {
			continue
		}
		found = true
		out.open = math.Max(out.open, w.openness(q, g))
		out.area = max(out.area, w.space.area(q))
	}
	if !found {
		out.open, out.area = w.openness(p, h), w.space.area(p)
	}
	return out
}

// survive searches depth first for a chain of depth segments that stays
// clear from p, h. Segment ends sit on multiples of survivalSegment ticks,
// so the first one lasts first ticks. Running out of budget counts as
// surviving.
func (w *world) survive(p collision.Point, h float64, depth, first int) bool {
	for _, f := range [...]game.Direction{game.DirNone, game.DirLeft, game.DirRight} {
		w.budget--
		if w.budget < 0 {
			return true
		}
		q, g, ok := w.run(p, h, f, first, first)
		if ok && (depth == 1 || w.survive(q, g, depth-1, survivalSegment)) {
			return true
		}
	}
	return false
}

// run advances n ticks from p, turning towards dir during the first turns
// ticks. It stops at the first blocked step and reports false.
func (w *world) run(p collision.Point, h float64, dir game.Direction, turns, n int) (collision.Point, float64, bool) {
	for i := 1; i <= n; i++ {
		if i <= turns {
			h = w.turn(h, dir)
		}
		next := p.Step(h, w.prm.Speed)
		if w.blocked(p, next) {
			return p, h, false
		}
		p = next
	}
	return p, h, true
}

func (w *world) blocked(a, b collision.Point) bool {
	return collision.BoundaryHit(b, w.width, w.height) || w.ix.Crosses(a, b, w.keep)
}

// openness averages the free distance along a fan of rays spanning half a
// turn around heading h.
func (w *world) openness(p collision.Point, h float64) float64 {
	total := 0.0
	for k := 0; k < rayCount; k++ {
		a := h + (float64(k)-float64(rayCount-1)/2)*math.Pi/float64(rayCount-1)
		total += w.ray(p, a)
	}
	return total / rayCount
}

// ray is the free distance from p along heading a, capped at rayRange.
func (w *world) ray(p collision.Point, a float64) float64 {
	dx, dy := math.Cos(a), math.Sin(a)
	limit := rayRange
	switch {
	case dx > 1e-9:
		limit = math.Min(limit, (w.width-p.X)/dx)
	case dx < -1e-9:
		limit = math.Min(limit, -p.X/dx)
	}
	switch {
	case dy > 1e-9:
		limit = math.Min(limit, (w.height-p.Y)/dy)
	case dy < -1e-9:
		limit = math.Min(limit, -p.Y/dy)
	}
	limit = math.Max(limit, 0)
	for done := 0.0; done < limit; done += rayChunk {
		l := math.Min(rayChunk, limit-done)
		if f, ok := w.ix.Cast(p.Step(a, done), p.Step(a, done+l), w.keep); ok {
			return done + f*l
		}
	}
	return limit
}

type candidate struct {
	dir   game.Direction
	score float64
	crash bool
}

// explore scores turning left, holding and turning right. A move that
// crashes, or that heads into a pocket much smaller than the best reachable
// region, is marked as a crash. With a wall in sight the bot runs alongside
// the nearer one a lane width away. A clear winner is taken, otherwise the
// bot holds its heading; in open ground that carries it to a wall.
func (w *world) explore(rng *rand.Rand) Decision {
	cands := []candidate{
		{dir: game.DirLeft},
		{dir: game.DirNone},
		{dir: game.DirRight},
	}
	looks := make([]outlook, len(cands))
	top := 0
	for i, c := range cands {
		looks[i] = w.assess(c.dir)
		top = max(top, looks[i].area)
	}
	side, walled := w.wallSide(w.pos, w.self.Heading)
	for i := range cands {
		c := &cands[i]
		c.score, c.crash = w.score(c.dir)
		switch l := looks[i]; {
		case !l.safe:
			c.crash = true
			c.score = math.Min(c.score, crashScore)
		case float64(l.area) < float64(top)*areaShare:
			c.crash = true
			c.score -= crampedPenalty
		}
		if looks[i].safe && walled {
			c.score -= w.follow(c.dir, side)
		}
	}

	best, second, hold := cands[0], cands[1], cands[1]
	if second.score > best.score {
		best, second = second, best
	}
	if c := cands[2]; c.score > best.score {
		best, second = c, best
	} else if c.score > second.score {
		second = c
	}

	d := Decision{Direction: game.DirNone, Reason: "hold"}
	if best.score-second.score > marginThreshold || hold.crash {
		d.Direction, d.Reason = best.dir, "score"
	}

	if rng.Float64() < w.prm.BoostAggressiveness && w.self.BoostMs > 0 && w.roomToBoost(looks[1]) {
		d.Boost = true
	}
	return d
}

// wallSide reports the side of the nearer wall in sight from p facing h.
func (w *world) wallSide(p collision.Point, h float64) (game.Direction, bool) {
	left, right := w.wallDist(p, h, game.DirLeft), w.wallDist(p, h, game.DirRight)
	switch {
	case math.IsInf(left, 1) && math.IsInf(right, 1):
		return game.DirNone, false
	case left <= right:
		return game.DirLeft, true
	default:
		return game.DirRight, true
	}
}

// wallDist estimates the perpendicular distance to the wall on side of the
// pose p, h from a fan of rays. It is +Inf when no ray hits within rayRange.
func (w *world) wallDist(p collision.Point, h float64, side game.Direction) float64 {
	sign := 1.0
	if side == game.DirLeft {
		sign = -1
	}
	d := math.Inf(1)
	for _, a := range sideRays {
		if r := w.ray(p, h+sign*a); r < rayRange {
			d = math.Min(d, r*math.Sin(a))
		}
	}
	return d
}

// follow is the cost of dir for a bot running alongside the wall on side:
// the error against the lane width after one decision, plus how much the far
// side and the way ahead close in.
func (w *world) follow(dir, side game.Direction) float64 {
	q, g, _ := w.run(w.pos, w.self.Heading, dir, w.commit, w.commit)
	cost := 0.0
	if d := w.wallDist(q, g, side); !math.IsInf(d, 1) {
		cost += followWeight * math.Abs(d-laneWidth)
	}
	other := game.DirLeft
	if side == game.DirLeft {
		other = game.DirRight
	}
	if d := w.wallDist(q, g, other); d < laneWidth {
		cost += crowdWeight * (laneWidth - d)
	}
	front := math.Inf(1)
	for _, a := range frontRays {
		front = math.Min(front, w.ray(q, g+a)*math.Cos(a))
	}
	if front < frontRange {
		cost += crowdWeight * (frontRange - front)
	}
	return cost
}

// roomToBoost requires a safe and open way ahead with nothing within the
// lookahead distance.
func (w *world) roomToBoost(ahead outlook) bool {
	return ahead.safe && ahead.open >= 2*w.prm.Lookahead &&
		w.boundaryDist(w.pos) > w.prm.Lookahead &&
		math.IsInf(w.ix.Nearest(w.pos, w.prm.Lookahead, w.keep), 1)
}

// score sums pointScore over samples of the simulated path; a path that
// leaves the arena or crosses a trail is marked as a crash.
func (w *world) score(dir game.Direction) (float64, bool) {
	p, h := w.pos, w.self.Heading
	n := w.horizon()
	every := max(1, n/scoreSamples)
	total := 0.0
	for i := 1; i <= n; i++ {
		if i <= scoreTurnTicks {
			h = w.turn(h, dir)
		}
		next := p.Step(h, w.prm.Speed)
		if w.blocked(p, next) {
			return total + crashScore, true
		}
		p = next
		if i%every == 0 {
			total += w.pointScore(p)
		}
	}
	return total, false
}

// pointScore penalises closeness to the edge and to trails.
func (w *world) pointScore(p collision.Point) float64 {
	s := 0.0
	switch edge := w.boundaryDist(p); {
	case edge < 15:
		s -= 100
	case edge < 30:
		s -= 40
	}
	switch d := w.ix.Nearest(p, 60, w.keep); {
	case d < 15:
		s -= 80
	case d < 30:
		s -= 30
	case d < 60:
		s -= 8
	}
	return s
}

func (w *world) turn(h float64, dir game.Direction) float64 {
	switch dir {
	case game.DirLeft:
		return collision.NormalizeAngle(h - w.prm.TurnRate)
	case game.DirRight:
		return collision.NormalizeAngle(h + w.prm.TurnRate)
	}
	return h
}

// horizon is the number of ticks needed to cover the lookahead distance.
func (w *world) horizon() int {
	if w.prm.Speed <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(w.prm.Lookahead/w.prm.Speed)))
}

func (w *world) boundaryDist(p collision.Point) float64 {
	return math.Min(math.Min(p.X, w.width-p.X), math.Min(p.Y, w.height-p.Y))
}

func (w *world) clearance(p collision.Point) float64 {
	return math.Min(w.boundaryDist(p), w.ix.Nearest(p, minClearance, w.keep))
}
