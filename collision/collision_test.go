package collision

import (
	"encoding/json"
	"math"
	"testing"
)

func pt(x, y float64) Point { return Point{X: x, Y: y} }

func line(from, to Point, n int) Trail {
	t := make(Trail, 0, n)
	for i := 0; i < n; i++ {
		f := float64(i) / float64(n-1)
		t = append(t, At(pt(from.X+(to.X-from.X)*f, from.Y+(to.Y-from.Y)*f)))
	}
	return t
}

func TestBoundaryHit(t *testing.T) {
	cases := []struct {
		p    Point
		want bool
	}{
		{pt(0, 0), false},
		{pt(799.9, 599.9), false},
		{pt(800, 10), true},
		{pt(10, 600), true},
		{pt(-0.01, 10), true},
		{pt(10, -1), true},
	}
	for _, c := range cases {
		if got := BoundaryHit(c.p, 800, 600); got != c.want {
			t.Fatalf("BoundaryHit(%v) = %v, want %v", c.p, got, c.want)
		}
	}
}

func TestSegmentsIntersect(t *testing.T) {
	cases := []struct {
		name           string
		a1, a2, b1, b2 Point
		want           bool
	}{
		{"cross", pt(0, 0), pt(10, 10), pt(0, 10), pt(10, 0), true},
		{"disjoint", pt(0, 0), pt(1, 1), pt(5, 5), pt(6, 4), false},
		{"touching endpoint", pt(0, 0), pt(5, 0), pt(5, -5), pt(5, 5), true},
		{"parallel", pt(0, 0), pt(10, 0), pt(0, 1), pt(10, 1), false},
		{"collinear overlap", pt(0, 0), pt(10, 0), pt(5, 0), pt(15, 0), false},
		{"nearly parallel", pt(0, 0), pt(1, 0), pt(0, 0), pt(1, 1e-12), false},
		{"short of reach", pt(0, 0), pt(4, 0), pt(5, -5), pt(5, 5), false},
	}
	for _, c := range cases {
		if got := SegmentsIntersect(c.a1, c.a2, c.b1, c.b2); got != c.want {
			t.Fatalf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestTrailCollisionSkipsGapSegments(t *testing.T) {
	// vertical wall at x=50 with a hole around y=50
	wall := Trail{At(pt(50, 0)), At(pt(50, 40)), GapMarker, At(pt(50, 60)), At(pt(50, 100))}
	obs := []Obstacle{NewObstacle("p1", wall)}

	if hit := TrailCollision(pt(40, 50), pt(60, 50), obs, ""); hit.Hit {
		t.Fatalf("crossing through the gap reported a hit: %+v", hit)
	}
	hit := TrailCollision(pt(40, 20), pt(60, 20), obs, "")
	if !hit.Hit || hit.By != "p1" {
		t.Fatalf("crossing the drawn part: got %+v, want hit by p1", hit)
	}
	if hit := TrailCollision(pt(40, 20), pt(60, 20), obs, "p1"); hit.Hit {
		t.Fatalf("excluded owner still reported: %+v", hit)
	}
}

func TestTrailCollisionIsDeterministic(t *testing.T) {
	a := NewObstacle("a", line(pt(50, 0), pt(50, 100), 20))
	b := NewObstacle("b", line(pt(55, 0), pt(55, 100), 20))
	for i := 0; i < 10; i++ {
		if hit := TrailCollision(pt(40, 50), pt(70, 50), []Obstacle{a, b}, ""); hit.By != "a" {
			t.Fatalf("run %d: first owner = %q, want a", i, hit.By)
		}
		if hit := TrailCollision(pt(40, 50), pt(70, 50), []Obstacle{b, a}, ""); hit.By != "b" {
			t.Fatalf("run %d: first owner = %q, want b", i, hit.By)
		}
	}
}

func TestTrailCollisionBoxPrefilter(t *testing.T) {
	o := NewObstacle("p", line(pt(500, 500), pt(600, 500), 10))
	if hit := TrailCollision(pt(0, 0), pt(5, 5), []Obstacle{o}, ""); hit.Hit {
		t.Fatalf("far trail reported a hit")
	}
	empty := NewObstacle("e", Trail{GapMarker})
	if hit := TrailCollision(pt(0, 0), pt(5, 5), []Obstacle{empty}, ""); hit.Hit {
		t.Fatalf("gap-only trail reported a hit")
	}
}

func TestSelfCollisionGracePeriod(t *testing.T) {
	// a tight loop of 9 real points whose first segment the head crosses
	own := Trail{
		At(pt(0, 0)), At(pt(10, 0)), At(pt(20, 0)), At(pt(20, 10)), At(pt(20, 20)),
		At(pt(10, 20)), At(pt(0, 20)), At(pt(0, 10)), At(pt(5, 5)),
	}
	if SelfCollision(pt(5, 5), pt(5, -5), own) {
		t.Fatalf("trail with %d real points reported a self collision", own.RealCount())
	}
	own = append(Trail{At(pt(-10, 0))}, own...)
	if !SelfCollision(pt(5, 5), pt(5, -5), own) {
		t.Fatalf("trail with %d real points should self collide", own.RealCount())
	}
}

func TestSelfCollisionIgnoresNewestSegments(t *testing.T) {
	own := line(pt(0, 0), pt(100, 0), 20)
	head := own[len(own)-1].Pos()
	// doubling back over the last few segments only
	if SelfCollision(head, pt(head.X-1, 0.5), own) {
		t.Fatalf("move near the head counted as self collision")
	}
	// crossing the oldest part still counts
	if !SelfCollision(pt(10, -5), pt(10, 5), own) {
		t.Fatalf("crossing an old segment not detected")
	}
}

func TestSelfCollisionSkipsGaps(t *testing.T) {
	own := line(pt(0, 0), pt(40, 0), 10)
	own = append(own, GapMarker)
	own = append(own, line(pt(60, 0), pt(100, 0), 10)...)
	// segment straddling the marker would join (40,0)-(60,0); it must not exist
	if SelfCollision(pt(50, -5), pt(50, 5), own) {
		t.Fatalf("crossing a gap reported self collision")
	}
}

func TestEntryJSON(t *testing.T) {
	tr := Trail{At(pt(1.5, 2)), GapMarker, At(pt(3, 4))}
	b, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "[[1.5,2],null,[3,4]]" {
		t.Fatalf("wire form = %s", b)
	}
	var back Trail
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(tr) {
		t.Fatalf("round trip = %v, want %v", back, tr)
	}
}

func TestNormalizeAngle(t *testing.T) {
	for _, a := range []float64{0, 1, -1, 3 * math.Pi, -3 * math.Pi, 7.5, -7.5} {
		n := NormalizeAngle(a)
		if n <= -math.Pi || n > math.Pi {
			t.Fatalf("NormalizeAngle(%v) = %v out of range", a, n)
		}
		if math.Abs(math.Sin(n)-math.Sin(a)) > 1e-9 || math.Abs(math.Cos(n)-math.Cos(a)) > 1e-9 {
			t.Fatalf("NormalizeAngle(%v) = %v changed direction", a, n)
		}
	}
}

func TestIndexQueries(t *testing.T) {
	ix := NewIndex(16)
	tr := line(pt(0, 50), pt(40, 50), 5)
	tr = append(tr, GapMarker)
	tr = append(tr, line(pt(60, 50), pt(100, 50), 5)...)
	ix.Add("p", tr)

	if ix.Len() != 8 {
		t.Fatalf("indexed %d segments, want 8", ix.Len())
	}
	if d := ix.Nearest(pt(20, 40), 30, nil); math.Abs(d-10) > 1e-9 {
		t.Fatalf("nearest = %v, want 10", d)
	}
	if d := ix.Nearest(pt(50, 50), 5, nil); !math.IsInf(d, 1) {
		t.Fatalf("nearest inside gap = %v, want +Inf", d)
	}
	if !ix.Crosses(pt(20, 40), pt(20, 60), nil) {
		t.Fatalf("crossing drawn segment not found")
	}
	if ix.Crosses(pt(50, 40), pt(50, 60), nil) {
		t.Fatalf("crossing through gap reported")
	}
	skipAll := func(Segment) bool { return false }
	if ix.Crosses(pt(20, 40), pt(20, 60), skipAll) {
		t.Fatalf("filter ignored")
	}

	gaps := ix.GapsNear(pt(50, 50), 20)
	if len(gaps) != 1 {
		t.Fatalf("gaps near = %d, want 1", len(gaps))
	}
	if g := gaps[0]; g.Mid() != pt(50, 50) || g.Width() != 20 {
		t.Fatalf("gap = %+v", g)
	}
}

func TestIndexCastFindsFirstHit(t *testing.T) {
	ix := NewIndex(16)
	ix.Add("near", line(pt(30, 0), pt(30, 100), 3))
	ix.Add("far", line(pt(70, 0), pt(70, 100), 3))

	if f, ok := ix.Cast(pt(0, 50), pt(100, 50), nil); !ok || math.Abs(f-0.3) > 1e-9 {
		t.Fatalf("cast = %v, %v, want 0.3", f, ok)
	}
	skipNear := func(s Segment) bool { return s.Owner != "near" }
	if f, ok := ix.Cast(pt(0, 50), pt(100, 50), skipNear); !ok || math.Abs(f-0.7) > 1e-9 {
		t.Fatalf("filtered cast = %v, %v, want 0.7", f, ok)
	}
	if _, ok := ix.Cast(pt(0, 50), pt(20, 50), nil); ok {
		t.Fatal("short cast reported a hit")
	}

	owners := map[string]int{}
	ix.Each(func(s Segment) { owners[s.Owner]++ })
	if owners["near"] != 2 || owners["far"] != 2 {
		t.Fatalf("segments per owner = %v", owners)
	}
}
