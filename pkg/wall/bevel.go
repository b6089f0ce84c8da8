package wall

import "github.com/chazu/wallforge/pkg/plan"

// OpeningEpsilon lifts the hole's lower edge off the sill line so a hole
// touching the wall base never shares an edge with the outline. Plan
// validation predicts placement with the same value.
const OpeningEpsilon = plan.OpeningEpsilon

// BevelProfile holds the corner-overlap approximation in one place. Adjacent
// walls overlap because every wall is extended by Radius(thickness) and its
// faces are shifted back by half of that. A miter-joint implementation would
// replace this type and nothing else.
//
// The cap outsets move the end closures along the wall's length, outward
// positive. They default to zero, which leaves each cap flush with the
// corresponding end of the extended faces.
type BevelProfile struct {
	// RadiusScale multiplies the thickness to give the bevel radius.
	RadiusScale float64
	// LeftCapOutset and RightCapOutset shift the start and end caps.
	LeftCapOutset  float64
	RightCapOutset float64
}

// DefaultBevel is the profile where the bevel radius equals the thickness,
// so two walls of equal thickness fully cover each other's end gap.
func DefaultBevel() BevelProfile {
	return BevelProfile{RadiusScale: 1}
}

// Radius returns the bevel radius for a wall of the given thickness.
func (b BevelProfile) Radius(thickness float64) float64 {
	return thickness * b.RadiusScale
}

// FaceShift is the x offset applied to faces and closures so the visible
// wall starts at the true vertex.
func (b BevelProfile) FaceShift(thickness float64) float64 {
	return -b.Radius(thickness) / 2
}

// LeftCapX returns the x position of the start cap in the pivot frame.
func (b BevelProfile) LeftCapX(thickness float64) float64 {
	return b.FaceShift(thickness) - b.LeftCapOutset
}

// RightCapX returns the x position of the end cap in the pivot frame for a
// wall of the given extended length. The cap lies in the plane at that x,
// flush with the end of the faces.
func (b BevelProfile) RightCapX(extended, thickness float64) float64 {
	return extended + b.FaceShift(thickness) + b.RightCapOutset
}
