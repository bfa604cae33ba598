// Package collision holds the geometry shared by the authoritative simulation
// and any client-side predictive mirror. Everything here is a pure function of
// its arguments.
package collision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// parallelEpsilon is the determinant magnitude below which two segments are
// treated as parallel and therefore non-intersecting.
const parallelEpsilon = 1e-10

type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Step returns the point reached by moving dist along heading.
func (p Point) Step(heading, dist float64) Point {
	return Point{X: p.X + math.Cos(heading)*dist, Y: p.Y + math.Sin(heading)*dist}
}

// Bearing returns the heading pointing from p towards q.
func (p Point) Bearing(q Point) float64 {
	return math.Atan2(q.Y-p.Y, q.X-p.X)
}

// Entry is one slot of a trail: either a real position or a gap marker.
// On the JSON wire a real entry is [x,y] and a gap marker is null.
type Entry struct {
	X   float64 `msgpack:"x"`
	Y   float64 `msgpack:"y"`
	Gap bool    `msgpack:"g,omitempty"`
}

// GapMarker is the sentinel separating two drawn runs of a trail.
var GapMarker = Entry{Gap: true}

func At(p Point) Entry {
	return Entry{X: p.X, Y: p.Y}
}

func (e Entry) Pos() Point {
	return Point{X: e.X, Y: e.Y}
}

func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Gap {
		return []byte("null"), nil
	}
	return json.Marshal([2]float64{e.X, e.Y})
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*e = GapMarker
		return nil
	}
	var xy [2]float64
	if err := json.Unmarshal(b, &xy); err != nil {
		return fmt.Errorf("trail entry: %w", err)
	}
	*e = Entry{X: xy[0], Y: xy[1]}
	return nil
}

// Trail is an ordered run of positions and gap markers. Two consecutive real
// entries form a collidable segment; any pair touching a gap marker does not.
type Trail []Entry

// RealCount returns the number of non-gap entries.
func (t Trail) RealCount() int {
	n := 0
	for _, e := range t {
		if !e.Gap {
			n++
		}
	}
	return n
}

// LastReal returns the most recent real position, if any.
func (t Trail) LastReal() (Point, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if !t[i].Gap {
			return t[i].Pos(), true
		}
	}
	return Point{}, false
}

// Equal compares two trails entry by entry.
func (t Trail) Equal(o Trail) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

// Rect is an axis-aligned box used as a coarse pre-filter.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// EmptyRect contains nothing and intersects nothing until extended.
func EmptyRect() Rect {
	return Rect{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
}

func SegmentRect(a, b Point) Rect {
	return Rect{
		MinX: math.Min(a.X, b.X),
		MinY: math.Min(a.Y, b.Y),
		MaxX: math.Max(a.X, b.X),
		MaxY: math.Max(a.Y, b.Y),
	}
}

func (r Rect) Empty() bool {
	return r.MinX > r.MaxX || r.MinY > r.MaxY
}

func (r Rect) Extend(p Point) Rect {
	return Rect{
		MinX: math.Min(r.MinX, p.X),
		MinY: math.Min(r.MinY, p.Y),
		MaxX: math.Max(r.MaxX, p.X),
		MaxY: math.Max(r.MaxY, p.Y),
	}
}

func (r Rect) Inflate(d float64) Rect {
	if r.Empty() {
		return r
	}
	return Rect{MinX: r.MinX - d, MinY: r.MinY - d, MaxX: r.MaxX + d, MaxY: r.MaxY + d}
}

// Intersects is inclusive: boxes that only touch still intersect.
func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.MinX <= o.MaxX && r.MaxX >= o.MinX && r.MinY <= o.MaxY && r.MaxY >= o.MinY
}

// NormalizeAngle folds an angle into (-Pi, Pi].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// DistanceToSegment returns the shortest distance from p to segment ab.
func DistanceToSegment(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return p.Dist(a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Dist(Point{X: a.X + t*dx, Y: a.Y + t*dy})
}
