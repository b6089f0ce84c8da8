package plan

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Tier 2: geometric validation (errors and warnings)
// ---------------------------------------------------------------------------

// validateGeometry runs all Tier 2 geometric checks.
// Returns errors (blocking) and warnings (advisory) separately.
func validateGeometry(p *Plan) ([]ValidationError, []ValidationWarning) {
	var errs []ValidationError
	var warnings []ValidationWarning

	errs = append(errs, validateWallDimensions(p)...)
	warnings = append(warnings, validateOpeningPlacement(p)...)
	warnings = append(warnings, validateOpeningOverlap(p)...)

	return errs, warnings
}

// validateWallDimensions checks that every wall has distinct endpoints and
// positive thickness and height.
func validateWallDimensions(p *Plan) []ValidationError {
	var errs []ValidationError

	for _, w := range p.OrderedWalls() {
		if w.Length() == 0 {
			errs = append(errs, ValidationError{
				WallID:   w.ID,
				Message:  fmt.Sprintf("wall endpoints coincide at (%.4f, %.4f)", w.From.X, w.From.Y),
				Severity: SeverityError,
			})
		}
		if w.Thickness <= 0 {
			errs = append(errs, ValidationError{
				WallID:   w.ID,
				Message:  fmt.Sprintf("wall thickness is %.4f, must be positive", w.Thickness),
				Severity: SeverityError,
			})
		}
		if w.Height <= 0 {
			errs = append(errs, ValidationError{
				WallID:   w.ID,
				Message:  fmt.Sprintf("wall height is %.4f, must be positive", w.Height),
				Severity: SeverityError,
			})
		}
	}

	return errs
}

// OpeningEpsilon is the clearance the generator keeps between a hole and
// the outline: holes stay this far inside the wall ends, and the hole's
// lower edge is lifted by it off the sill line.
const OpeningEpsilon = 1e-5

// footprint is where the generator will punch o into w with the default
// bevel, in the extended outline frame [0, L+thickness]. ok is false when
// the opening will be skipped; clamped reports an end overhang.
type footprint struct {
	x0, x1, y0, y1 float64
	clamped        bool
}

func placeOpening(w *Wall, o Opening) (fp footprint, ok bool) {
	ext := w.Length() + w.Thickness
	if o.Width <= 0 || o.Height <= 0 || o.Altitude < 0 ||
		o.Altitude+o.Height >= w.Height || o.Width >= ext-2*OpeningEpsilon {
		return footprint{}, false
	}
	f := o.Offset
	switch {
	case math.IsNaN(f):
		f = 0.5
	case f < 0:
		f = 0
	case f > 1:
		f = 1
	}
	x := w.Length()*f + w.Thickness/2 - o.Width/2
	lo, hi := OpeningEpsilon, ext-o.Width-OpeningEpsilon
	if x < lo || x > hi {
		fp.clamped = true
		x = math.Max(lo, math.Min(hi, x))
	}
	fp.x0, fp.x1 = x, x+o.Width
	fp.y0, fp.y1 = o.Altitude+OpeningEpsilon, o.Altitude+o.Height
	return fp, true
}

// validateOpeningPlacement warns about openings the generator will clamp or
// skip. The thresholds are the ones the generator applies.
func validateOpeningPlacement(p *Plan) []ValidationWarning {
	var warnings []ValidationWarning

	for _, w := range p.OrderedWalls() {
		openings, _ := p.ResolveOpenings(w)
		ext := w.Length() + w.Thickness

		for _, o := range openings {
			warn := func(format string, args ...any) {
				warnings = append(warnings, ValidationWarning{
					WallID:    w.ID,
					OpeningID: o.ID,
					Message:   fmt.Sprintf(format, args...),
				})
			}

			if o.Offset < 0 || o.Offset > 1 || math.IsNaN(o.Offset) {
				warn("offset %.4f outside [0,1] will be clamped", o.Offset)
			}
			if o.Width <= 0 || o.Height <= 0 {
				warn("opening size %.4fx%.4f is not positive and will be skipped", o.Width, o.Height)
				continue
			}
			if w.Length() == 0 || w.Thickness <= 0 || w.Height <= 0 {
				continue // the wall itself is reported
			}
			if o.Altitude < 0 {
				warn("altitude %.4f is below the wall base and the opening will be skipped", o.Altitude)
			}
			if o.Width >= ext-2*OpeningEpsilon {
				warn("opening width %.4f does not fit the wall span %.4f and will be skipped", o.Width, ext)
			}
			if o.Altitude+o.Height >= w.Height {
				warn("opening top %.4f reaches wall height %.4f and will be skipped", o.Altitude+o.Height, w.Height)
			}
			if fp, ok := placeOpening(w, o); ok && fp.clamped {
				warn("opening extends past the wall end and will be moved inside it")
			}
		}
	}

	return warnings
}

// span is the footprint of an opening on its wall.
type span struct {
	id OpeningID
	footprint
}

// overlaps reports whether two holes intersect or share an edge. A shared
// edge is as fatal to triangulation as an overlap.
func (a span) overlaps(b span) bool {
	return a.x0 <= b.x1 && b.x0 <= a.x1 && a.y0 <= b.y1 && b.y0 <= a.y1
}

// validateOpeningOverlap warns when two openings on one wall intersect.
// Overlapping holes cannot be triangulated, so the wall will fail to build.
func validateOpeningOverlap(p *Plan) []ValidationWarning {
	var warnings []ValidationWarning

	for _, w := range p.OrderedWalls() {
		openings, _ := p.ResolveOpenings(w)
		spans := make([]span, 0, len(openings))
		for _, o := range openings {
			if fp, ok := placeOpening(w, o); ok {
				spans = append(spans, span{id: o.ID, footprint: fp})
			}
		}

		for i := range spans {
			for j := i + 1; j < len(spans); j++ {
				if spans[i].overlaps(spans[j]) {
					warnings = append(warnings, ValidationWarning{
						WallID:    w.ID,
						OpeningID: spans[j].id,
						Message:   fmt.Sprintf("opening overlaps opening %s; the wall outline cannot be triangulated", spans[i].id),
					})
				}
			}
		}
	}

	return warnings
}
