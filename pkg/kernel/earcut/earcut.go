// Ported from mapbox/earcut (https://github.com/mapbox/earcut).
//
// ISC License
//
// Copyright (c) 2016, Mapbox
//
// Permission to use, copy, modify, and/or distribute this software for any purpose
// with or without fee is hereby granted, provided that the above copyright notice
// and this permission notice appear in all copies.
//
// THE SOFTWARE IS PROVIDED "AS IS" AND ISC DISCLAIMS ALL WARRANTIES WITH REGARD TO
// THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS.
// IN NO EVENT SHALL ISC BE LIABLE FOR ANY SPECIAL, DIRECT, INDIRECT, OR
// CONSEQUENTIAL DAMAGES OR ANY DAMAGES WHATSOEVER RESULTING FROM LOSS OF USE, DATA
// OR PROFITS, WHETHER IN AN ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION,
// ARISING OUT OF OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.

// Package earcut implements kernel.Triangulator with a Go port of the
// mapbox/earcut ear-clipping algorithm. Holes are
// first merged into the outline through bridge edges, turning the polygon
// with holes into a single weakly simple ring that is then clipped.
//
// Input is expected to be valid (see kernel.Shape.Validate). As a final
// check the triangle area is compared with the shape area, so a ring the
// clipper could not fully reduce is reported instead of returned.
package earcut

import (
	"fmt"
	"math"
	"sort"

	"github.com/chazu/wallforge/pkg/kernel"
)

// Compile-time interface check.
var _ kernel.Triangulator = (*Triangulator)(nil)

// areaTolerance is the relative mismatch allowed between triangle area and
// shape area.
const areaTolerance = 1e-4

// Triangulator implements kernel.Triangulator. The zero value is ready to use
// and safe for concurrent use.
type Triangulator struct{}

// New returns a Triangulator.
func New() *Triangulator {
	return &Triangulator{}
}

// node is a vertex in the circular doubly linked ring being clipped.
type node struct {
	i          uint32 // index into the output vertex buffer
	x, y       float64
	prev, next *node
}

// Triangulate returns a z=0 mesh holding every loop point of s in order
// (outline first, then each hole) and CCW triangles covering the region
// inside the outline and outside all holes.
func (t *Triangulator) Triangulate(s *kernel.Shape) (*kernel.Mesh, error) {
	if len(s.Outer) < 3 {
		return nil, fmt.Errorf("%w: outline has %d points", kernel.ErrTriangulation, len(s.Outer))
	}

	m := &kernel.Mesh{Vertices: make([]float32, 0, 3*s.PointCount())}
	appendLoop := func(l kernel.Loop) {
		for _, p := range l {
			m.Vertices = append(m.Vertices, float32(p.X), float32(p.Y), 0)
		}
	}

	outer := linkLoop(s.Outer, 0, true)
	appendLoop(s.Outer)
	next := uint32(len(s.Outer))

	holes := make([]*node, 0, len(s.Holes))
	for i, h := range s.Holes {
		if len(h) < 3 {
			return nil, fmt.Errorf("%w: hole %d has %d points", kernel.ErrTriangulation, i, len(h))
		}
		ring := linkLoop(h, next, false)
		appendLoop(h)
		next += uint32(len(h))
		holes = append(holes, leftmost(ring))
	}

	outer = eliminateHoles(holes, outer)
	if outer == nil {
		return nil, fmt.Errorf("%w: could not bridge holes into the outline", kernel.ErrTriangulation)
	}

	var tris []uint32
	clip(outer, &tris, 0)
	m.Indices = tris

	if got, want := m.Area(), s.Area(); math.Abs(got-want) > areaTolerance*math.Max(want, 1) {
		return nil, fmt.Errorf("%w: triangles cover %.6g, shape area is %.6g", kernel.ErrTriangulation, got, want)
	}

	m.ComputeNormals()
	return m, nil
}

// linkLoop builds a circular list from l, starting at output index base.
// The outline is linked counter-clockwise and holes clockwise regardless
// of the input winding.
func linkLoop(l kernel.Loop, base uint32, ccw bool) *node {
	reverse := (l.SignedArea() > 0) != ccw
	var last *node
	add := func(k int) {
		n := &node{i: base + uint32(k), x: l[k].X, y: l[k].Y}
		if last == nil {
			n.prev, n.next = n, n
		} else {
			n.next = last.next
			n.prev = last
			last.next.prev = n
			last.next = n
		}
		last = n
	}
	if reverse {
		for k := len(l) - 1; k >= 0; k-- {
			add(k)
		}
	} else {
		for k := range l {
			add(k)
		}
	}
	return last
}

// leftmost returns the ring node with the smallest x, then smallest y.
func leftmost(start *node) *node {
	best, p := start, start
	for {
		if p.x < best.x || (p.x == best.x && p.y < best.y) {
			best = p
		}
		p = p.next
		if p == start {
			return best
		}
	}
}

// eliminateHoles links every hole into the outline, left to right.
func eliminateHoles(holes []*node, outer *node) *node {
	sort.Slice(holes, func(a, b int) bool { return holes[a].x < holes[b].x })
	for _, h := range holes {
		bridge := findBridge(h, outer)
		if bridge == nil {
			return nil
		}
		b2 := split(bridge, h)
		filter(b2, b2.next)
		outer = filter(bridge, bridge.next)
	}
	return outer
}

// findBridge finds an outline vertex visible from the hole's leftmost
// point h by casting a ray towards -x.
func findBridge(h, outer *node) *node {
	hx, hy := h.x, h.y
	qx := math.Inf(-1)
	var m *node

	p := outer
	for {
		if hy <= p.y && hy >= p.next.y && p.next.y != p.y {
			x := p.x + (hy-p.y)*(p.next.x-p.x)/(p.next.y-p.y)
			if x <= hx && x > qx {
				qx = x
				if p.x < p.next.x {
					m = p
				} else {
					m = p.next
				}
				if x == hx {
					return m
				}
			}
		}
		p = p.next
		if p == outer {
			break
		}
	}
	if m == nil {
		return nil
	}

	// Any outline vertex inside the triangle (h, ray hit, m) would block the
	// bridge; pick the one closest in angle to the ray instead.
	stop := m
	mx, my := m.x, m.y
	tanMin := math.Inf(1)
	p = m
	for {
		ax, cx := qx, hx
		if hy < my {
			ax, cx = hx, qx
		}
		if hx >= p.x && p.x >= mx && hx != p.x && pointInTriangle(ax, hy, mx, my, cx, hy, p.x, p.y) {
			tan := math.Abs(hy-p.y) / (hx - p.x)
			if locallyInside(p, h) &&
				(tan < tanMin || (tan == tanMin && (p.x > m.x || (p.x == m.x && sectorContainsSector(m, p))))) {
				m = p
				tanMin = tan
			}
		}
		p = p.next
		if p == stop {
			break
		}
	}
	return m
}

// split joins a and b with a pair of coincident bridge edges, duplicating
// both endpoints, and returns the duplicate of b.
func split(a, b *node) *node {
	a2 := &node{i: a.i, x: a.x, y: a.y}
	b2 := &node{i: b.i, x: b.x, y: b.y}
	an, bp := a.next, b.prev

	a.next = b
	b.prev = a

	a2.next = an
	an.prev = a2

	b2.next = a2
	a2.prev = b2

	bp.next = b2
	b2.prev = bp

	return b2
}

// filter removes duplicate and collinear vertices between start and end.
func filter(start, end *node) *node {
	if start == nil {
		return nil
	}
	if end == nil {
		end = start
	}
	p := start
	for {
		again := false
		if equal(p, p.next) || cross(p.prev, p, p.next) == 0 {
			remove(p)
			p = p.prev
			end = p
			if p == p.next {
				break
			}
			again = true
		} else {
			p = p.next
		}
		if !again && p == end {
			break
		}
	}
	return end
}

// clip repeatedly cuts ears off the ring, appending CCW triangles to tris.
// When a full cycle finds no ear it escalates: pass 1 drops collinear
// points, pass 2 cuts local self-intersections, pass 3 splits the ring
// along a valid diagonal and clips both halves.
func clip(ear *node, tris *[]uint32, pass int) {
	if ear == nil {
		return
	}
	stop := ear
	for ear.prev != ear.next {
		prev, next := ear.prev, ear.next
		if isEar(ear) {
			*tris = append(*tris, prev.i, ear.i, next.i)
			remove(ear)
			ear = next.next
			stop = next.next
			continue
		}
		ear = next
		if ear == stop {
			switch pass {
			case 0:
				clip(filter(ear, nil), tris, 1)
			case 1:
				clip(cureLocalIntersections(filter(ear, nil), tris), tris, 2)
			case 2:
				splitClip(ear, tris)
			}
			return
		}
	}
}

// isEar reports whether the triangle (ear.prev, ear, ear.next) is convex and
// contains no reflex vertex of the ring.
func isEar(ear *node) bool {
	a, b, c := ear.prev, ear, ear.next
	if cross(a, b, c) <= 0 {
		return false
	}
	for p := c.next; p != a; p = p.next {
		if equal(p, a) {
			continue
		}
		if pointInTriangle(a.x, a.y, b.x, b.y, c.x, c.y, p.x, p.y) && cross(p.prev, p, p.next) <= 0 {
			return false
		}
	}
	return true
}

// cureLocalIntersections removes pairs of crossing edges a-p and p.next-b by
// emitting the triangle (a, p, b).
func cureLocalIntersections(start *node, tris *[]uint32) *node {
	if start == nil {
		return nil
	}
	p := start
	for {
		a, b := p.prev, p.next.next
		if !equal(a, b) && intersects(a, p, p.next, b) && locallyInside(a, b) && locallyInside(b, a) {
			*tris = append(*tris, a.i, p.i, b.i)
			remove(p)
			remove(p.next)
			p = b
			start = b
		}
		p = p.next
		if p == start {
			break
		}
	}
	return filter(p, nil)
}

// splitClip looks for a diagonal that splits the ring into two valid rings
// and clips each of them.
func splitClip(start *node, tris *[]uint32) {
	a := start
	for {
		for b := a.next.next; b != a.prev; b = b.next {
			if a.i != b.i && isValidDiagonal(a, b) {
				c := split(a, b)
				a = filter(a, a.next)
				c = filter(c, c.next)
				clip(a, tris, 0)
				clip(c, tris, 0)
				return
			}
		}
		a = a.next
		if a == start {
			return
		}
	}
}

func isValidDiagonal(a, b *node) bool {
	if a.next.i == b.i || a.prev.i == b.i || intersectsRing(a, b) {
		return false
	}
	if locallyInside(a, b) && locallyInside(b, a) && middleInside(a, b) &&
		(cross(a.prev, a, b.prev) != 0 || cross(a, b.prev, b) != 0) {
		return true
	}
	return equal(a, b) && cross(a.prev, a, a.next) < 0 && cross(b.prev, b, b.next) < 0
}

// intersects reports whether segments p1-q1 and p2-q2 intersect, touching
// included.
func intersects(p1, q1, p2, q2 *node) bool {
	o1 := sign(cross(p1, q1, p2))
	o2 := sign(cross(p1, q1, q2))
	o3 := sign(cross(p2, q2, p1))
	o4 := sign(cross(p2, q2, q1))
	switch {
	case o1 != o2 && o3 != o4:
		return true
	case o1 == 0 && onSegment(p1, p2, q1):
		return true
	case o2 == 0 && onSegment(p1, q2, q1):
		return true
	case o3 == 0 && onSegment(p2, p1, q2):
		return true
	case o4 == 0 && onSegment(p2, q1, q2):
		return true
	}
	return false
}

// onSegment reports whether q lies within the bounding box of p-r.
func onSegment(p, q, r *node) bool {
	return q.x <= math.Max(p.x, r.x) && q.x >= math.Min(p.x, r.x) &&
		q.y <= math.Max(p.y, r.y) && q.y >= math.Min(p.y, r.y)
}

// intersectsRing reports whether the diagonal a-b crosses any ring edge not
// incident to a or b.
func intersectsRing(a, b *node) bool {
	p := a
	for {
		if p.i != a.i && p.next.i != a.i && p.i != b.i && p.next.i != b.i && intersects(p, p.next, a, b) {
			return true
		}
		p = p.next
		if p == a {
			return false
		}
	}
}

// middleInside reports whether the midpoint of a-b lies inside the ring.
func middleInside(a, b *node) bool {
	px, py := (a.x+b.x)/2, (a.y+b.y)/2
	inside := false
	p := a
	for {
		if (p.y > py) != (p.next.y > py) && p.next.y != p.y &&
			px < (p.next.x-p.x)*(py-p.y)/(p.next.y-p.y)+p.x {
			inside = !inside
		}
		p = p.next
		if p == a {
			return inside
		}
	}
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func remove(p *node) {
	p.next.prev = p.prev
	p.prev.next = p.next
}

func equal(a, b *node) bool {
	return a.x == b.x && a.y == b.y
}

// cross returns twice the signed area of triangle (a, b, c), positive when
// counter-clockwise.
func cross(a, b, c *node) float64 {
	return (b.x-a.x)*(c.y-a.y) - (b.y-a.y)*(c.x-a.x)
}

// pointInTriangle reports whether p lies inside or on the CCW triangle abc.
func pointInTriangle(ax, ay, bx, by, cx, cy, px, py float64) bool {
	return (cx-px)*(ay-py) >= (ax-px)*(cy-py) &&
		(ax-px)*(by-py) >= (bx-px)*(ay-py) &&
		(bx-px)*(cy-py) >= (cx-px)*(by-py)
}

// locallyInside reports whether the diagonal a-b lies inside the ring near a.
func locallyInside(a, b *node) bool {
	if cross(a.prev, a, a.next) > 0 {
		return cross(a, b, a.next) <= 0 && cross(a, a.prev, b) <= 0
	}
	return cross(a, b, a.prev) > 0 || cross(a, a.next, b) > 0
}

// sectorContainsSector reports whether the sector of p lies within the
// sector of m.
func sectorContainsSector(m, p *node) bool {
	return cross(m.prev, m, p.prev) > 0 && cross(p.next, m, m.next) > 0
}
