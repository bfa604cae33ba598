package bot

import (
	"fmt"
	"strings"
	"time"
)

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
	Expert Difficulty = "expert"
)

// Difficulties lists the tiers from weakest to strongest.
var Difficulties = []Difficulty{Easy, Medium, Hard, Expert}

// Profile is how one difficulty tier plays. Harder tiers react sooner,
// decide more often, err less and look further ahead.
type Profile struct {
	ReactionDelay       time.Duration
	DecisionInterval    time.Duration
	ErrorRate           float64 // probability of replacing a decision with a random one
	BoostAggressiveness float64 // probability of boosting when the way ahead is clear
	Lookahead           float64 // projection distance in arena units
}

var profiles = map[Difficulty]Profile{
	Easy:   {ReactionDelay: 250 * time.Millisecond, DecisionInterval: 200 * time.Millisecond, ErrorRate: 0.20, BoostAggressiveness: 0.05, Lookahead: 70},
	Medium: {ReactionDelay: 150 * time.Millisecond, DecisionInterval: 120 * time.Millisecond, ErrorRate: 0.10, BoostAggressiveness: 0.15, Lookahead: 95},
	Hard:   {ReactionDelay: 80 * time.Millisecond, DecisionInterval: 70 * time.Millisecond, ErrorRate: 0.04, BoostAggressiveness: 0.30, Lookahead: 120},
	Expert: {ReactionDelay: 30 * time.Millisecond, DecisionInterval: 40 * time.Millisecond, ErrorRate: 0.01, BoostAggressiveness: 0.45, Lookahead: 150},
}

// ParseDifficulty accepts a tier name in any case; the empty string means
// Medium.
func ParseDifficulty(s string) (Difficulty, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Medium, nil
	}
	d := Difficulty(s)
	if _, ok := profiles[d]; !ok {
		return "", fmt.Errorf("unknown bot difficulty %q", s)
	}
	return d, nil
}

// Profile returns the tier's settings; unknown tiers play as Medium.
func (d Difficulty) Profile() Profile {
	if p, ok := profiles[d]; ok {
		return p
	}
	return profiles[Medium]
}
