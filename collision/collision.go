package collision

import "math"

const (
	// SelfSkipSegments is how many of the newest own segments are ignored by
	// SelfCollision.
	SelfSkipSegments = 5
	// SelfMinPoints is the number of real points a trail needs before
	// SelfCollision can report anything.
	SelfMinPoints = 10
)

// Obstacle is one participant's trail plus a bounding box covering every
// entry of it. Box may be larger than the trail but never smaller.
type Obstacle struct {
	OwnerID string
	Trail   Trail
	Box     Rect
}

// NewObstacle computes the box from scratch.
func NewObstacle(owner string, t Trail) Obstacle {
	box := EmptyRect()
	for _, e := range t {
		if !e.Gap {
			box = box.Extend(e.Pos())
		}
	}
	return Obstacle{OwnerID: owner, Trail: t, Box: box}
}

// Hit reports the outcome of a trail scan.
type Hit struct {
	Hit bool
	By  string
}

// BoundaryHit reports whether pos lies outside [0,width) x [0,height).
func BoundaryHit(pos Point, width, height float64) bool {
	return pos.X < 0 || pos.X >= width || pos.Y < 0 || pos.Y >= height
}

// SegmentsIntersect tests segment a1-a2 against b1-b2. Near-parallel pairs
// are reported as non-intersecting.
func SegmentsIntersect(a1, a2, b1, b2 Point) bool {
	_, ok := Intersection(a1, a2, b1, b2)
	return ok
}

// Intersection returns where a1-a2 meets b1-b2 as a fraction of the way from
// a1 to a2.
func Intersection(a1, a2, b1, b2 Point) (float64, bool) {
	rx, ry := a2.X-a1.X, a2.Y-a1.Y
	sx, sy := b2.X-b1.X, b2.Y-b1.Y
	d := rx*sy - ry*sx
	if math.Abs(d) < parallelEpsilon {
		return 0, false
	}
	qx, qy := b1.X-a1.X, b1.Y-a1.Y
	t := (qx*sy - qy*sx) / d
	u := (qx*ry - qy*rx) / d
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

// TrailCollision scans obstacles in slice order and returns the first owner
// whose drawn segments the move current->next crosses. The obstacle owned by
// excludeID is skipped; pass "" to scan everything.
func TrailCollision(current, next Point, obstacles []Obstacle, excludeID string) Hit {
	move := SegmentRect(current, next)
	for _, o := range obstacles {
		if excludeID != "" && o.OwnerID == excludeID {
			continue
		}
		if !o.Box.Intersects(move) {
			continue
		}
		if crossesTrail(current, next, move, o.Trail, len(o.Trail)) {
			return Hit{Hit: true, By: o.OwnerID}
		}
	}
	return Hit{}
}

// SelfCollision scans the caller's own trail, ignoring the newest
// SelfSkipSegments segments. Trails with fewer than SelfMinPoints real points
// never collide with themselves.
func SelfCollision(current, next Point, own Trail) bool {
	if own.RealCount() < SelfMinPoints {
		return false
	}
	limit := len(own) - SelfSkipSegments
	if limit < 2 {
		return false
	}
	return crossesTrail(current, next, SegmentRect(current, next), own, limit)
}

// crossesTrail checks segments (t[i-1], t[i]) for 1 <= i < limit.
func crossesTrail(current, next Point, move Rect, t Trail, limit int) bool {
	for i := 1; i < limit; i++ {
		a, b := t[i-1], t[i]
		if a.Gap || b.Gap {
			continue
		}
		ap, bp := a.Pos(), b.Pos()
		if !SegmentRect(ap, bp).Intersects(move) {
			continue
		}
		if SegmentsIntersect(current, next, ap, bp) {
			return true
		}
	}
	return false
}
