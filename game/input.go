package game

import "time"

// Direction is the steering part of an input.
type Direction int8

const (
	DirNone Direction = iota
	DirLeft
	DirRight
)

// ParseDirection maps a wire token to a Direction. Unknown tokens are
// rejected so the caller can drop the input.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "", "none":
		return DirNone, true
	case "left":
		return DirLeft, true
	case "right":
		return DirRight, true
	default:
		return DirNone, false
	}
}

func (d Direction) String() string {
	switch d {
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return "none"
	}
}

func (d Direction) valid() bool {
	return d == DirNone || d == DirLeft || d == DirRight
}

// Input is what humans and bots alike submit. Only the latest input per
// player per tick is applied; its direction is held until replaced.
type Input struct {
	PlayerID  string
	Direction Direction
	Boost     bool
	Timestamp time.Time
}
