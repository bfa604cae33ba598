package models

// GapCycle decides, tick by tick, whether a trail is drawn. A cycle lasts
// Interval ticks; its first Duration ticks are a gap. Counting integer ticks
// modulo Interval keeps the phase exact over arbitrarily long matches.
type GapCycle struct {
	Interval int
	Duration int

	phase   int
	drawing bool
}

// NewGapCycle starts just past the gap so a fresh trail draws immediately.
func NewGapCycle(interval, duration int) GapCycle {
	if interval <= 0 {
		interval = 1
	}
	if duration < 0 {
		duration = 0
	}
	return GapCycle{
		Interval: interval,
		Duration: duration,
		phase:    duration % interval,
		drawing:  true,
	}
}

// Advance consumes one tick. draw reports whether the current position is
// appended this tick; startGap is true on the falling edge, when exactly one
// gap marker must be pushed.
func (g *GapCycle) Advance() (draw, startGap bool) {
	draw = g.phase >= g.Duration
	startGap = g.drawing && !draw
	g.drawing = draw
	g.phase = (g.phase + 1) % g.Interval
	return draw, startGap
}

// Boost is the per-round speed resource. The budget only depletes: it is
// consumed one tick at a time while the boost is both active and requested.
type Boost struct {
	Active    bool
	Remaining int
	Budget    int
}

func NewBoost(budget int) Boost {
	return Boost{Remaining: budget, Budget: budget}
}

// Update applies the latest request flag and reports whether this tick moves
// boosted. Releasing the request deactivates immediately without consuming.
func (b *Boost) Update(requested bool) bool {
	if !requested || b.Remaining <= 0 {
		b.Active = false
		return false
	}
	b.Remaining--
	b.Active = b.Remaining > 0
	return true
}
