// Package tessellate flattens wall assemblies into world-space meshes for a
// renderer. One mesh is produced per panel, named after the wall and the
// panel's path in the assembly tree.
package tessellate

import (
	"fmt"
	"strings"

	"github.com/chazu/wallforge/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Options selects which nodes are emitted.
type Options struct {
	// Helpers includes selection box outlines as line meshes.
	Helpers bool
}

// transformStack accumulates node transforms during the tree walk.
type transformStack struct {
	matrices []sdf.M44
	names    []string
}

func newTransformStack(root string) *transformStack {
	return &transformStack{names: []string{root}}
}

func (ts *transformStack) push(n *kernel.Node) {
	ts.matrices = append(ts.matrices, n.Transform.Matrix())
	if n.Kind != kernel.NodePivot {
		ts.names = append(ts.names, n.Name)
	}
}

func (ts *transformStack) pop(n *kernel.Node) {
	ts.matrices = ts.matrices[:len(ts.matrices)-1]
	if n.Kind != kernel.NodePivot {
		ts.names = ts.names[:len(ts.names)-1]
	}
}

// accumulated returns the product of every matrix on the stack, outermost
// first.
func (ts *transformStack) accumulated() sdf.M44 {
	m := sdf.Identity3d()
	for _, t := range ts.matrices {
		m = m.Mul(t)
	}
	return m
}

func (ts *transformStack) partName() string {
	return strings.Join(ts.names, "/")
}

// Tessellate returns the world-space panel meshes of every assembly,
// without selection helpers. The assemblies are never mutated.
func Tessellate(assemblies []*kernel.Assembly) ([]*kernel.Mesh, error) {
	return TessellateWith(assemblies, Options{})
}

// TessellateWith is Tessellate with explicit options.
func TessellateWith(assemblies []*kernel.Assembly, opts Options) ([]*kernel.Mesh, error) {
	var meshes []*kernel.Mesh
	for i, a := range assemblies {
		if a == nil || a.Root == nil {
			return nil, fmt.Errorf("tessellate: assembly %d has no root", i)
		}
		ts := newTransformStack(a.WallID)
		collected, err := walkNode(a.Root, ts, opts)
		if err != nil {
			return nil, fmt.Errorf("tessellate: error walking wall %s: %w", a.WallID, err)
		}
		meshes = append(meshes, collected...)
	}
	return meshes, nil
}

// walkNode pushes n's transform, emits its mesh, recurses into children,
// then pops.
func walkNode(n *kernel.Node, ts *transformStack, opts Options) ([]*kernel.Mesh, error) {
	if n.Kind == kernel.NodeBoxHelper && !opts.Helpers {
		return nil, nil
	}

	ts.push(n)
	defer ts.pop(n)

	var meshes []*kernel.Mesh
	if n.Mesh != nil {
		m, err := toWorld(n.Mesh, ts.accumulated())
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", ts.partName(), err)
		}
		m.PartName = ts.partName()
		meshes = append(meshes, m)
	}

	for _, child := range n.Children {
		collected, err := walkNode(child, ts, opts)
		if err != nil {
			return nil, err
		}
		meshes = append(meshes, collected...)
	}
	return meshes, nil
}

// toWorld returns a copy of m with positions and normals mapped through the
// rigid transform world.
func toWorld(m *kernel.Mesh, world sdf.M44) (*kernel.Mesh, error) {
	if len(m.Vertices)%3 != 0 {
		return nil, fmt.Errorf("vertex buffer length %d is not a multiple of 3", len(m.Vertices))
	}
	out := m.Clone()
	origin := world.MulPosition(v3.Vec{})
	for i := 0; i < out.VertexCount(); i++ {
		p := world.MulPosition(m.Vertex(i))
		out.Vertices[3*i] = float32(p.X)
		out.Vertices[3*i+1] = float32(p.Y)
		out.Vertices[3*i+2] = float32(p.Z)

		if len(m.Normals) == len(m.Vertices) {
			n := v3.Vec{
				X: float64(m.Normals[3*i]),
				Y: float64(m.Normals[3*i+1]),
				Z: float64(m.Normals[3*i+2]),
			}
			wn := world.MulPosition(n).Sub(origin)
			if l := wn.Length(); l > 0 {
				wn = wn.DivScalar(l)
			}
			out.Normals[3*i] = float32(wn.X)
			out.Normals[3*i+1] = float32(wn.Y)
			out.Normals[3*i+2] = float32(wn.Z)
		}
	}
	return out, nil
}

// Stats summarizes a set of tessellated meshes.
type Stats struct {
	Meshes    int
	Vertices  int
	Triangles int
	Lines     int
}

// Summarize counts the geometry in meshes.
func Summarize(meshes []*kernel.Mesh) Stats {
	s := Stats{Meshes: len(meshes)}
	for _, m := range meshes {
		s.Vertices += m.VertexCount()
		s.Triangles += m.TriangleCount()
		s.Lines += m.LineCount()
	}
	return s
}
