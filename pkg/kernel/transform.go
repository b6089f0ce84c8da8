package kernel

import (
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Transform places a node relative to its parent. Rotation holds Euler
// angles in radians in XYZ order: the matrix is Rx·Ry·Rz, so a point is
// turned about Z first, then Y, then X, about the node's own origin, and
// then translated to Position.
type Transform struct {
	Position v3.Vec `json:"position"`
	Rotation v3.Vec `json:"rotation"`
}

// Identity returns the transform that leaves points unchanged.
func Identity() Transform {
	return Transform{}
}

// At returns a pure translation.
func At(x, y, z float64) Transform {
	return Transform{Position: v3.Vec{X: x, Y: y, Z: z}}
}

// Rotated returns a copy of t with extra rotation added about each axis.
func (t Transform) Rotated(x, y, z float64) Transform {
	t.Rotation = t.Rotation.Add(v3.Vec{X: x, Y: y, Z: z})
	return t
}

// IsIdentity reports whether t has no translation and no rotation.
func (t Transform) IsIdentity() bool {
	return t.Position == (v3.Vec{}) && t.Rotation == (v3.Vec{})
}

// Matrix returns the 4x4 matrix mapping local coordinates into the parent
// frame.
func (t Transform) Matrix() sdf.M44 {
	m := sdf.Translate3d(t.Position)
	if t.Rotation.X != 0 {
		m = m.Mul(sdf.RotateX(t.Rotation.X))
	}
	if t.Rotation.Y != 0 {
		m = m.Mul(sdf.RotateY(t.Rotation.Y))
	}
	if t.Rotation.Z != 0 {
		m = m.Mul(sdf.RotateZ(t.Rotation.Z))
	}
	return m
}

// Apply maps p from local coordinates into the parent frame.
func (t Transform) Apply(p v3.Vec) v3.Vec {
	return t.Matrix().MulPosition(p)
}
