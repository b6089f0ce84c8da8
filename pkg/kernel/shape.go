package kernel

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/peterstace/simplefeatures/geom"
)

// Loop is a closed polygon ring. The closing edge from the last point back
// to the first is implicit.
type Loop []v2.Vec

// Rect returns the counter-clockwise rectangle with corners (x0,y0) and
// (x1,y1).
func Rect(x0, y0, x1, y1 float64) Loop {
	return Loop{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

// SignedArea returns the shoelace area of the loop: positive when the loop
// winds counter-clockwise.
func (l Loop) SignedArea() float64 {
	var sum float64
	for i := range l {
		a, b := l[i], l[(i+1)%len(l)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}

// Reversed returns a copy of the loop with its winding flipped.
func (l Loop) Reversed() Loop {
	r := make(Loop, len(l))
	for i, p := range l {
		r[len(l)-1-i] = p
	}
	return r
}

// Bounds returns the bounding box of the loop.
func (l Loop) Bounds() sdf.Box2 {
	if len(l) == 0 {
		return sdf.Box2{}
	}
	b := sdf.Box2{Min: l[0], Max: l[0]}
	for _, p := range l[1:] {
		b = b.Include(p)
	}
	return b
}

// Shape is a planar polygon with zero or more holes.
type Shape struct {
	Outer Loop
	Holes []Loop
}

// NewShape returns a shape with the given outline and no holes.
func NewShape(outer Loop) *Shape {
	return &Shape{Outer: outer}
}

// AddHole punches a hole loop into the shape.
func (s *Shape) AddHole(h Loop) {
	s.Holes = append(s.Holes, h)
}

// PointCount returns the total number of loop points.
func (s *Shape) PointCount() int {
	n := len(s.Outer)
	for _, h := range s.Holes {
		n += len(h)
	}
	return n
}

// Area returns the area of the outline minus the area of its holes.
func (s *Shape) Area() float64 {
	a := math.Abs(s.Outer.SignedArea())
	for _, h := range s.Holes {
		a -= math.Abs(h.SignedArea())
	}
	return a
}

// Bounds returns the bounding box of the outline.
func (s *Shape) Bounds() sdf.Box2 {
	return s.Outer.Bounds()
}

// WKT renders the shape as a Well Known Text POLYGON.
func (s *Shape) WKT() string {
	var sb strings.Builder
	sb.WriteString("POLYGON(")
	writeRing(&sb, s.Outer)
	for _, h := range s.Holes {
		sb.WriteByte(',')
		writeRing(&sb, h)
	}
	sb.WriteByte(')')
	return sb.String()
}

func writeRing(sb *strings.Builder, l Loop) {
	sb.WriteByte('(')
	for i := 0; i <= len(l); i++ {
		p := l[i%len(l)]
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(p.X, 'g', -1, 64))
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(p.Y, 'g', -1, 64))
	}
	sb.WriteByte(')')
}

// Validate checks that the shape is a valid simple polygon: the outline and
// every hole are simple rings, holes lie inside the outline, and no two
// rings cross or overlap. The returned error wraps ErrTriangulation.
func (s *Shape) Validate() error {
	if len(s.Outer) < 3 {
		return fmt.Errorf("%w: outline has %d points", ErrTriangulation, len(s.Outer))
	}
	for i, h := range s.Holes {
		if len(h) < 3 {
			return fmt.Errorf("%w: hole %d has %d points", ErrTriangulation, i, len(h))
		}
	}
	g, err := geom.UnmarshalWKT(s.WKT())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTriangulation, err)
	}
	if !g.IsPolygon() {
		return fmt.Errorf("%w: outline is not a polygon", ErrTriangulation)
	}
	return nil
}
