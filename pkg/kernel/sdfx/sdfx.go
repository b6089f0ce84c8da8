// Package sdfx turns wall outlines into watertight solids using the
// github.com/deadsy/sdfx SDF-based CAD library, and writes triangle meshes
// to STL.
package sdfx

import (
	"fmt"

	"github.com/chazu/wallforge/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DefaultMeshCells controls marching cubes tessellation resolution along the
// longest axis of a solid.
const DefaultMeshCells = 300

// Solid wraps an sdf.SDF3.
type Solid struct {
	s sdf.SDF3
}

// Solidify extrudes shape by thickness along Z, centered on z=0, giving the
// solid wall the two face panels of an assembly enclose.
func Solidify(shape *kernel.Shape, thickness float64) (*Solid, error) {
	if thickness <= 0 {
		return nil, fmt.Errorf("sdfx: thickness %g must be positive", thickness)
	}
	outer, err := sdf.Polygon2D(shape.Outer)
	if err != nil {
		return nil, fmt.Errorf("sdfx: outline: %w", err)
	}

	profile := outer
	if len(shape.Holes) > 0 {
		holes := make([]sdf.SDF2, 0, len(shape.Holes))
		for i, h := range shape.Holes {
			hs, err := sdf.Polygon2D(h)
			if err != nil {
				return nil, fmt.Errorf("sdfx: hole %d: %w", i, err)
			}
			holes = append(holes, hs)
		}
		profile = sdf.Difference2D(outer, sdf.Union2D(holes...))
	}

	return &Solid{s: sdf.Extrude3D(profile, thickness)}, nil
}

// SolidifyAssembly returns the solid wall of a in the frame of its pivot's
// parent, i.e. world space for a top-level assembly.
func SolidifyAssembly(a *kernel.Assembly) (*Solid, error) {
	if a.Outline == nil {
		return nil, fmt.Errorf("sdfx: assembly %s has no outline", a.WallID)
	}
	s, err := Solidify(a.Outline, a.Thickness)
	if err != nil {
		return nil, fmt.Errorf("sdfx: wall %s: %w", a.WallID, err)
	}
	m := a.Root.Transform.Matrix().Mul(sdf.Translate3d(v3.Vec{X: -a.Bevel / 2}))
	return s.Transform(m), nil
}

// Transform returns the solid moved by m.
func (s *Solid) Transform(m sdf.M44) *Solid {
	return &Solid{s: sdf.Transform3D(s.s, m)}
}

// Union returns the union of s and others.
func (s *Solid) Union(others ...*Solid) *Solid {
	all := make([]sdf.SDF3, 0, len(others)+1)
	all = append(all, s.s)
	for _, o := range others {
		all = append(all, o.s)
	}
	return &Solid{s: sdf.Union3D(all...)}
}

// BoundingBox returns the axis-aligned bounding box.
func (s *Solid) BoundingBox() sdf.Box3 {
	return s.s.BoundingBox()
}

// Contains reports whether p lies inside the solid.
func (s *Solid) Contains(p v3.Vec) bool {
	return s.s.Evaluate(p) < 0
}

// Triangles renders the solid with marching cubes.
func (s *Solid) Triangles(cells int) []*sdf.Triangle3 {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	return render.ToTriangles(s.s, render.NewMarchingCubesUniform(cells))
}

// ToMesh converts the solid to a triangle mesh using marching cubes.
func (s *Solid) ToMesh(cells int) (*kernel.Mesh, error) {
	triangles := s.Triangles(cells)
	if len(triangles) == 0 {
		return nil, fmt.Errorf("sdfx: marching cubes produced no triangles")
	}

	numVerts := len(triangles) * 3
	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		// Compute face normal.
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}

// SaveSTL renders the solid and writes it to path as binary STL.
func (s *Solid) SaveSTL(path string, cells int) error {
	if err := render.SaveSTL(path, s.Triangles(cells)); err != nil {
		return fmt.Errorf("sdfx: writing %s: %w", path, err)
	}
	return nil
}

// MeshTriangles converts the triangles of kernel meshes into sdfx
// triangles. Line meshes are skipped.
func MeshTriangles(meshes ...*kernel.Mesh) []*sdf.Triangle3 {
	var out []*sdf.Triangle3
	for _, m := range meshes {
		if m == nil || m.Mode == kernel.ModeLines {
			continue
		}
		for t := 0; t+2 < len(m.Indices); t += 3 {
			out = append(out, &sdf.Triangle3{
				m.Vertex(int(m.Indices[t])),
				m.Vertex(int(m.Indices[t+1])),
				m.Vertex(int(m.Indices[t+2])),
			})
		}
	}
	return out
}

// SaveMeshesSTL writes the triangles of meshes to path as binary STL.
func SaveMeshesSTL(path string, meshes ...*kernel.Mesh) error {
	tris := MeshTriangles(meshes...)
	if len(tris) == 0 {
		return fmt.Errorf("sdfx: no triangles to write to %s", path)
	}
	if err := render.SaveSTL(path, tris); err != nil {
		return fmt.Errorf("sdfx: writing %s: %w", path, err)
	}
	return nil
}
