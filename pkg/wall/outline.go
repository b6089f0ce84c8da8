// Package wall generates the mesh assembly of a straight wall segment: two
// textured faces with the openings punched out, reveal closures lining each
// opening, and end caps, all attached to a pivot rotated into the wall's
// world orientation.
//
// The pipeline runs Normalize, NewOutline, Outline.Cut for each opening,
// triangulation and assembly, then orientation and texture assignment.
// Every stage is a pure function of its inputs; Build wires them together
// and BuildPlan runs Build for a whole floor plan on a worker pool.
package wall

import (
	"fmt"
	"math"

	"github.com/chazu/wallforge/pkg/kernel"
	"github.com/chazu/wallforge/pkg/plan"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Endpoints is a wall's vertex pair ordered so Start is the leftmost.
type Endpoints struct {
	Start    v2.Vec
	End      v2.Vec
	Inverted bool // the input vertices were swapped
}

// Normalize orders p0 and p1 so that Start.X <= End.X.
func Normalize(p0, p1 v2.Vec) Endpoints {
	if p0.X > p1.X {
		return Endpoints{Start: p1, End: p0, Inverted: true}
	}
	return Endpoints{Start: p0, End: p1}
}

// Length returns the distance between the endpoints.
func (e Endpoints) Length() float64 {
	return e.End.Sub(e.Start).Length()
}

// Outline is the wall rectangle in the local frame: origin at the start
// vertex, x along the wall, y up. It is extended by the bevel radius so
// that neighboring walls overlap at corners.
type Outline struct {
	Endpoints Endpoints
	Length    float64 // L, distance between the endpoints
	Bevel     float64 // B, the bevel radius
	Extended  float64 // L' = L + B
	Thickness float64
	Height    float64
	Shape     *kernel.Shape
}

// NewOutline builds the outline with the default bevel profile.
func NewOutline(ep Endpoints, thickness, height float64) *Outline {
	return NewOutlineWithBevel(ep, thickness, height, DefaultBevel())
}

// NewOutlineWithBevel builds the rectangle (0,0) (L',0) (L',h) (0,h).
func NewOutlineWithBevel(ep Endpoints, thickness, height float64, b BevelProfile) *Outline {
	l := ep.Length()
	bevel := b.Radius(thickness)
	ext := l + bevel
	return &Outline{
		Endpoints: ep,
		Length:    l,
		Bevel:     bevel,
		Extended:  ext,
		Thickness: thickness,
		Height:    height,
		Shape:     kernel.NewShape(kernel.Rect(0, 0, ext, height)),
	}
}

// Cut is one opening punched into an outline.
type Cut struct {
	Opening  plan.Opening // the opening as placed, after clamping
	Offset   float64      // effective offset along the wall, mirrored if inverted
	StartX   float64      // left edge of the hole in the outline frame
	Hole     kernel.Loop
	Closures Closures
	Rejected bool // the opening was skipped; nothing was punched
}

// HasBottom reports whether the opening is raised off the floor and so
// needs a sill closure.
func (c Cut) HasBottom() bool {
	return c.Opening.Altitude > 0
}

// Cut punches op into the outline. Openings that cannot fit are rejected
// and openings that stick out past the wall ends are clamped; both cases
// are reported as warnings and never fail the wall.
func (o *Outline) Cut(op plan.Opening, inverted bool) (Cut, []kernel.Warning) {
	var warnings []kernel.Warning
	warn := func(format string, args ...any) {
		warnings = append(warnings, kernel.Warning{
			Subject: "opening " + string(op.ID),
			Message: fmt.Sprintf(format, args...),
		})
	}
	reject := func(format string, args ...any) (Cut, []kernel.Warning) {
		warn(format+"; skipped", args...)
		return Cut{Opening: op, Rejected: true}, warnings
	}

	switch {
	case op.Width <= 0 || op.Height <= 0:
		return reject("size %gx%g is not positive", op.Width, op.Height)
	case op.Altitude < 0:
		return reject("altitude %g is below the wall base", op.Altitude)
	case op.Altitude+op.Height >= o.Height:
		return reject("top %g reaches the wall height %g", op.Altitude+op.Height, o.Height)
	case op.Width >= o.Extended-2*OpeningEpsilon:
		return reject("width %g does not fit the wall span %g", op.Width, o.Extended)
	}

	f := op.Offset
	if f < 0 || f > 1 || math.IsNaN(f) {
		clamped := math.Max(0, math.Min(1, f))
		if math.IsNaN(f) {
			clamped = 0.5
		}
		warn("offset %g clamped to %g", f, clamped)
		f = clamped
		op.Offset = f
	}
	if inverted {
		f = 1 - f
	}

	startX := (o.Extended-o.Bevel)*f + o.Bevel/2 - op.Width/2
	lo, hi := OpeningEpsilon, o.Extended-op.Width-OpeningEpsilon
	if startX < lo || startX > hi {
		clamped := math.Max(lo, math.Min(hi, startX))
		warn("extends past the wall end; moved from x=%g to x=%g", startX, clamped)
		startX = clamped
	}

	a := op.Altitude
	hole := kernel.Loop{
		{X: startX, Y: a + OpeningEpsilon},
		{X: startX + op.Width, Y: a + OpeningEpsilon},
		{X: startX + op.Width, Y: a + op.Height},
		{X: startX, Y: a + op.Height},
	}
	o.Shape.AddHole(hole)

	return Cut{
		Opening:  op,
		Offset:   f,
		StartX:   startX,
		Hole:     hole,
		Closures: ShapeClosures(v2.Vec{}, v2.Vec{X: op.Width}, op.Height, o.Thickness),
	}, warnings
}

// Closures are the outlines shared by every perpendicular closure panel.
// Top spans the gap lying flat once rotated; Left stands vertically and is
// reused for the right side.
type Closures struct {
	Distance float64
	Top      kernel.Loop
	Left     kernel.Loop
}

// ShapeClosures returns the top and left closure outlines for a gap running
// from origin to second, of the given height and thickness.
func ShapeClosures(origin, second v2.Vec, height, thickness float64) Closures {
	d := second.Sub(origin).Length()
	return Closures{
		Distance: d,
		Top:      kernel.Rect(0, 0, d, thickness),
		Left:     kernel.Rect(0, 0, thickness, height),
	}
}
