package collision

import "math"

// Segment is one drawn piece of a trail. Seq is the trail index of B, so the
// newest segment of a trail t has Seq == len(t)-1.
type Segment struct {
	Owner string
	Seq   int
	A, B  Point
}

// Gap is a closed hole in a trail: A is the last real point before the gap
// marker and B the first real point after it.
type Gap struct {
	Owner string
	A, B  Point
}

func (g Gap) Mid() Point {
	return Point{X: (g.A.X + g.B.X) / 2, Y: (g.A.Y + g.B.Y) / 2}
}

func (g Gap) Width() float64 {
	return g.A.Dist(g.B)
}

// Filter decides whether a query should consider a segment.
type Filter func(s Segment) bool

type cellKey struct {
	X, Y int
}

// Index is a uniform grid over drawn trail segments. It is built once from a
// read-only view and then queried many times; it is not safe for concurrent
// mutation.
type Index struct {
	cell  float64
	cells map[cellKey][]int
	segs  []Segment
	gaps  []Gap
}

func NewIndex(cellSize float64) *Index {
	if cellSize <= 0 {
		cellSize = 32
	}
	return &Index{
		cell:  cellSize,
		cells: make(map[cellKey][]int),
	}
}

func (ix *Index) key(x, y float64) cellKey {
	return cellKey{X: int(math.Floor(x / ix.cell)), Y: int(math.Floor(y / ix.cell))}
}

// Add indexes every drawn segment and every closed gap of t.
func (ix *Index) Add(owner string, t Trail) {
	for i := 1; i < len(t); i++ {
		a, b := t[i-1], t[i]
		if a.Gap || b.Gap {
			continue
		}
		id := len(ix.segs)
		seg := Segment{Owner: owner, Seq: i, A: a.Pos(), B: b.Pos()}
		ix.segs = append(ix.segs, seg)
		r := SegmentRect(seg.A, seg.B)
		lo, hi := ix.key(r.MinX, r.MinY), ix.key(r.MaxX, r.MaxY)
		for cx := lo.X; cx <= hi.X; cx++ {
			for cy := lo.Y; cy <= hi.Y; cy++ {
				k := cellKey{X: cx, Y: cy}
				ix.cells[k] = append(ix.cells[k], id)
			}
		}
	}
	for i := 1; i < len(t); i++ {
		if !t[i].Gap || t[i-1].Gap {
			continue
		}
		j := i + 1
		for j < len(t) && t[j].Gap {
			j++
		}
		if j < len(t) {
			ix.gaps = append(ix.gaps, Gap{Owner: owner, A: t[i-1].Pos(), B: t[j].Pos()})
		}
	}
}

// Len returns the number of indexed segments.
func (ix *Index) Len() int {
	return len(ix.segs)
}

func (ix *Index) visit(r Rect, fn func(s Segment) bool) {
	lo, hi := ix.key(r.MinX, r.MinY), ix.key(r.MaxX, r.MaxY)
	for cx := lo.X; cx <= hi.X; cx++ {
		for cy := lo.Y; cy <= hi.Y; cy++ {
			for _, id := range ix.cells[cellKey{X: cx, Y: cy}] {
				if !fn(ix.segs[id]) {
					return
				}
			}
		}
	}
}

// Nearest returns the distance from p to the closest kept segment within
// radius, or +Inf when nothing is that close.
func (ix *Index) Nearest(p Point, radius float64, keep Filter) float64 {
	best := math.Inf(1)
	r := Rect{MinX: p.X - radius, MinY: p.Y - radius, MaxX: p.X + radius, MaxY: p.Y + radius}
	ix.visit(r, func(s Segment) bool {
		if keep != nil && !keep(s) {
			return true
		}
		if d := DistanceToSegment(p, s.A, s.B); d < best && d <= radius {
			best = d
		}
		return true
	})
	return best
}

// Crosses reports whether segment a-b intersects any kept segment.
func (ix *Index) Crosses(a, b Point, keep Filter) bool {
	hit := false
	ix.visit(SegmentRect(a, b), func(s Segment) bool {
		if keep != nil && !keep(s) {
			return true
		}
		if SegmentsIntersect(a, b, s.A, s.B) {
			hit = true
			return false
		}
		return true
	})
	return hit
}

// Cast returns the fraction of the way from a to b at which the first kept
// segment is hit.
func (ix *Index) Cast(a, b Point, keep Filter) (float64, bool) {
	best, hit := 1.0, false
	ix.visit(SegmentRect(a, b), func(s Segment) bool {
		if keep != nil && !keep(s) {
			return true
		}
		if t, ok := Intersection(a, b, s.A, s.B); ok && (!hit || t < best) {
			best, hit = t, true
		}
		return true
	})
	return best, hit
}

// Each calls fn for every indexed segment in insertion order.
func (ix *Index) Each(fn func(s Segment)) {
	for _, s := range ix.segs {
		fn(s)
	}
}

// GapsNear returns the closed gaps whose midpoint lies within radius of p, in
// insertion order.
func (ix *Index) GapsNear(p Point, radius float64) []Gap {
	var out []Gap
	for _, g := range ix.gaps {
		if g.Mid().Dist(p) <= radius {
			out = append(out, g)
		}
	}
	return out
}
