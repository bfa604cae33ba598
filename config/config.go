// Package config reads server settings from the environment, after loading
// an optional .env file.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/YvesLemasson/curve-io-sub000/bot"
	"github.com/YvesLemasson/curve-io-sub000/game"
	"github.com/YvesLemasson/curve-io-sub000/protocol"
	"github.com/YvesLemasson/curve-io-sub000/room"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	TickRate       int
	ArenaWidth     float64
	ArenaHeight    float64
	RoomCapacity   int
	MinPlayers     int
	TotalRounds    int
	RoundCountdown time.Duration
	BoostBudget    time.Duration
	GapInterval    time.Duration
	GapDuration    time.Duration
	MaxTrail       int

	ResyncInterval int
	FinishedGrace  time.Duration
	SweepInterval  time.Duration
	InputRate      float64
	Codec          protocol.Codec
	DataDir        string
	BotFill        bool
	BotDifficulty  bot.Difficulty
}

func Default() Config {
	g := game.DefaultConfig()
	return Config{
		Port:           "8080",
		TickRate:       g.TickRate,
		ArenaWidth:     g.Width,
		ArenaHeight:    g.Height,
		RoomCapacity:   8,
		MinPlayers:     g.MinPlayers,
		TotalRounds:    g.TotalRounds,
		RoundCountdown: g.Countdown,
		BoostBudget:    g.BoostBudget,
		GapInterval:    g.GapInterval,
		GapDuration:    g.GapDuration,
		ResyncInterval: protocol.DefaultResyncInterval,
		FinishedGrace:  5 * time.Minute,
		SweepInterval:  2 * time.Minute,
		InputRate:      120,
		Codec:          protocol.JSON,
		DataDir:        "data",
		BotFill:        true,
		BotDifficulty:  bot.Medium,
	}
}

// Load reads .env when present and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded:", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, keeping defaults for unset keys.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	p := parser{lookup: lookup}

	if v, ok := lookup("PORT"); ok && v != "" {
		c.Port = v
	}
	p.intVar("TICK_RATE", &c.TickRate, 1)
	p.floatVar("ARENA_WIDTH", &c.ArenaWidth)
	p.floatVar("ARENA_HEIGHT", &c.ArenaHeight)
	p.intVar("ROOM_CAPACITY", &c.RoomCapacity, 1)
	p.intVar("MIN_PLAYERS", &c.MinPlayers, 1)
	p.intVar("TOTAL_ROUNDS", &c.TotalRounds, 1)
	p.durationVar("ROUND_COUNTDOWN", &c.RoundCountdown)
	p.durationVar("BOOST_BUDGET", &c.BoostBudget)
	p.durationVar("GAP_INTERVAL", &c.GapInterval)
	p.durationVar("GAP_DURATION", &c.GapDuration)
	p.intVar("MAX_TRAIL", &c.MaxTrail, 0)
	p.intVar("RESYNC_INTERVAL", &c.ResyncInterval, 1)
	p.durationVar("FINISHED_GRACE", &c.FinishedGrace)
	p.durationVar("SWEEP_INTERVAL", &c.SweepInterval)
	p.floatVar("INPUT_RATE", &c.InputRate)
	p.boolVar("BOT_FILL", &c.BotFill)
	if v, ok := lookup("CODEC"); ok && p.err == nil {
		codec, err := protocol.CodecByName(v)
		if err != nil {
			p.err = fmt.Errorf("CODEC: %w", err)
		}
		c.Codec = codec
	}
	if v, ok := lookup("BOT_DIFFICULTY"); ok && p.err == nil {
		d, err := bot.ParseDifficulty(v)
		if err != nil {
			p.err = fmt.Errorf("BOT_DIFFICULTY: %w", err)
		}
		c.BotDifficulty = d
	}
	if v, ok := lookup("DATA_DIR"); ok && v != "" {
		c.DataDir = v
	}
	if p.err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", p.err)
	}
	if c.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("invalid configuration: SWEEP_INTERVAL must be positive")
	}
	if c.MinPlayers > c.RoomCapacity {
		return Config{}, fmt.Errorf("invalid configuration: MIN_PLAYERS %d exceeds ROOM_CAPACITY %d", c.MinPlayers, c.RoomCapacity)
	}
	return c, nil
}

// Engine is the per-room simulation config.
func (c Config) Engine() game.Config {
	g := game.DefaultConfig()
	g.Width, g.Height = c.ArenaWidth, c.ArenaHeight
	g.TickRate = c.TickRate
	g.MinPlayers = c.MinPlayers
	g.TotalRounds = c.TotalRounds
	g.Countdown = c.RoundCountdown
	g.BoostBudget = c.BoostBudget
	g.GapInterval = c.GapInterval
	g.GapDuration = c.GapDuration
	g.MaxTrail = c.MaxTrail
	return g
}

func (c Config) Rooms(results room.ResultSink) room.Options {
	return room.Options{
		Engine:         c.Engine(),
		Capacity:       c.RoomCapacity,
		ResyncInterval: c.ResyncInterval,
		BotFill:        c.BotFill,
		BotDifficulty:  c.BotDifficulty,
		FinishedGrace:  c.FinishedGrace,
		Results:        results,
	}
}

// parser keeps the first error and skips everything after it.
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) get(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := p.lookup(key)
	return v, ok && v != ""
}

func (p *parser) intVar(key string, dst *int, floor int) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	if n < floor {
		p.err = fmt.Errorf("%s: %d is below %d", key, n, floor)
		return
	}
	*dst = n
}

func (p *parser) floatVar(key string, dst *float64) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	if f <= 0 {
		p.err = fmt.Errorf("%s: must be positive, got %v", key, f)
		return
	}
	*dst = f
}

func (p *parser) durationVar(key string, dst *time.Duration) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	if d < 0 {
		p.err = fmt.Errorf("%s: negative duration %s", key, d)
		return
	}
	*dst = d
}

func (p *parser) boolVar(key string, dst *bool) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = b
}
