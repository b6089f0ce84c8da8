// Package kernel defines the internal scene representation produced by the
// wall generator: flat triangle meshes, planar shapes with holes, transforms,
// materials, and the node tree an Assembly is rooted at. A thin adapter
// (see package tessellate) maps it into whatever renderer consumes it.
//
// Triangulation is abstracted behind the Triangulator interface so the
// polygon-with-holes backend can be swapped without touching the rest of
// the system.
package kernel

import "errors"

// ErrTriangulation is returned when a shape cannot be decomposed into
// triangles, typically because hole loops overlap or cross the outline.
var ErrTriangulation = errors.New("kernel: triangulation failed")

// Triangulator turns a planar polygon with holes into a triangle mesh lying
// in the z=0 plane. Implementations must return a mesh whose vertex count
// equals the total number of loop points and whose triangles are wound
// counter-clockwise when viewed from +Z.
type Triangulator interface {
	Triangulate(s *Shape) (*Mesh, error)
}

// TriangulatorFunc adapts a plain function to the Triangulator interface.
type TriangulatorFunc func(s *Shape) (*Mesh, error)

// Triangulate calls f(s).
func (f TriangulatorFunc) Triangulate(s *Shape) (*Mesh, error) {
	return f(s)
}
