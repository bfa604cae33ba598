package bot

import (
	"math"

	"github.com/YvesLemasson/curve-io-sub000/collision"
)

const (
	spaceCell = 16.0
	// spacePad closes every corridor too narrow to turn around in.
	spacePad = 30.0
)

// space is a coarse occupancy grid of the arena. A cell is blocked when its
// center lies within spacePad of a trail or of the arena edge; the free cells
// are grouped into 4-connected regions so that a bot can tell a pocket from
// open ground.
type space struct {
	cols, rows int
	blocked    []bool
	region     []int32
	sizes      []int
}

func newSpace(width, height float64) *space {
	cols := max(1, int(math.Ceil(width/spaceCell)))
	rows := max(1, int(math.Ceil(height/spaceCell)))
	s := &space{cols: cols, rows: rows, blocked: make([]bool, cols*rows)}
	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			c := s.center(cx, cy)
			if math.Min(math.Min(c.X, width-c.X), math.Min(c.Y, height-c.Y)) < spacePad {
				s.blocked[cy*cols+cx] = true
			}
		}
	}
	return s
}

func (s *space) center(cx, cy int) collision.Point {
	return collision.Point{X: (float64(cx) + 0.5) * spaceCell, Y: (float64(cy) + 0.5) * spaceCell}
}

func (s *space) cell(v float64, n int) int {
	return min(n-1, max(0, int(math.Floor(v/spaceCell))))
}

// block marks every cell within spacePad of segment a-b.
func (s *space) block(a, b collision.Point) {
	r := collision.SegmentRect(a, b).Inflate(spacePad)
	x0, x1 := s.cell(r.MinX, s.cols), s.cell(r.MaxX, s.cols)
	y0, y1 := s.cell(r.MinY, s.rows), s.cell(r.MaxY, s.rows)
	for cy := y0; cy <= y1; cy++ {
		for cx := x0; cx <= x1; cx++ {
			i := cy*s.cols + cx
			if !s.blocked[i] && collision.DistanceToSegment(s.center(cx, cy), a, b) <= spacePad {
				s.blocked[i] = true
			}
		}
	}
}

// label groups the free cells into regions. It must run after the last
// block call and before area.
func (s *space) label() {
	n := len(s.blocked)
	s.region = make([]int32, n)
	for i := range s.region {
		s.region[i] = -1
	}
	s.sizes = s.sizes[:0]
	var stack []int
	for i := 0; i < n; i++ {
		if s.blocked[i] || s.region[i] >= 0 {
			continue
		}
		id := int32(len(s.sizes))
		s.region[i] = id
		stack = append(stack[:0], i)
		size := 0
		for len(stack) > 0 {
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			x := j % s.cols
			for _, k := range [4]int{j - 1, j + 1, j - s.cols, j + s.cols} {
				switch {
				case k < 0 || k >= n:
					continue
				case k == j-1 && x == 0, k == j+1 && x == s.cols-1:
					continue
				}
				if !s.blocked[k] && s.region[k] < 0 {
					s.region[k] = id
					stack = append(stack, k)
				}
			}
		}
		s.sizes = append(s.sizes, size)
	}
}

// area is the number of free cells reachable from p, or 0 when p sits in a
// blocked cell or outside the arena.
func (s *space) area(p collision.Point) int {
	if p.X < 0 || p.Y < 0 {
		return 0
	}
	cx, cy := int(p.X/spaceCell), int(p.Y/spaceCell)
	if cx >= s.cols || cy >= s.rows {
		return 0
	}
	id := s.region[cy*s.cols+cx]
	if id < 0 {
		return 0
	}
	return s.sizes[id]
}
