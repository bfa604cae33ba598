package game

import (
	"math"
	"time"

	"github.com/YvesLemasson/curve-io-sub000/models"
)

// Config tunes one engine. Speeds and turn rates are per tick.
type Config struct {
	Width  float64
	Height float64

	TickRate        int
	TurnRate        float64
	Speed           float64
	BoostMultiplier float64
	BoostBudget     time.Duration
	GapInterval     time.Duration
	GapDuration     time.Duration
	MaxTrail        int

	TotalRounds int
	MinPlayers  int
	Countdown   time.Duration

	// SpawnMargin keeps spawns this far from the arena edge.
	SpawnMargin float64
	// SpawnSpacing is the preferred minimum distance between two spawns.
	SpawnSpacing float64
	// Seed drives spawn placement; 0 picks a time based seed.
	Seed int64
}

func DefaultConfig() Config {
	return Config{
		Width:           1200,
		Height:          900,
		TickRate:        60,
		TurnRate:        0.055,
		Speed:           2,
		BoostMultiplier: 1.8,
		BoostBudget:     3 * time.Second,
		GapInterval:     3 * time.Second,
		GapDuration:     500 * time.Millisecond,
		TotalRounds:     5,
		MinPlayers:      2,
		Countdown:       3 * time.Second,
		SpawnMargin:     120,
		SpawnSpacing:    90,
	}
}

func (c Config) TickDuration() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.TickRate)
}

// Ticks converts a duration into whole ticks, rounding to nearest.
func (c Config) Ticks(d time.Duration) int {
	return int(math.Round(float64(d) / float64(c.TickDuration())))
}

func (c Config) millis(ticks int) int64 {
	return (time.Duration(ticks) * c.TickDuration()).Milliseconds()
}

func (c Config) tuning() models.Tuning {
	return models.Tuning{
		Speed:       c.Speed,
		BoostBudget: c.Ticks(c.BoostBudget),
		GapInterval: c.Ticks(c.GapInterval),
		GapDuration: c.Ticks(c.GapDuration),
		MaxTrail:    c.MaxTrail,
	}
}
