package kernel

import (
	"github.com/chewxy/math32"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Mode selects how Indices are interpreted.
type Mode int

const (
	ModeTriangles Mode = iota // 3 indices per triangle
	ModeLines                 // 2 indices per line segment
)

func (m Mode) String() string {
	if m == ModeLines {
		return "lines"
	}
	return "triangles"
}

// Mesh is a triangle (or line) mesh suitable for rendering.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, uvs has 2 floats per vertex.
type Mesh struct {
	Vertices []float32 `json:"vertices"`       // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`        // [nx0,ny0,nz0, ...]
	UVs      []float32 `json:"uvs,omitempty"`  // [u0,v0, u1,v1, ...]
	Indices  []uint32  `json:"indices"`        // [i0,i1,i2, ...] triangles
	Mode     Mode      `json:"mode,omitempty"` // triangles unless ModeLines
	PartName string    `json:"partName"`       // which wall panel this came from
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles. Line meshes have none.
func (m *Mesh) TriangleCount() int {
	if m.Mode == ModeLines {
		return 0
	}
	return len(m.Indices) / 3
}

// LineCount returns the number of line segments in a line mesh.
func (m *Mesh) LineCount() int {
	if m.Mode != ModeLines {
		return 0
	}
	return len(m.Indices) / 2
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Vertex returns the i-th vertex position.
func (m *Mesh) Vertex(i int) v3.Vec {
	return v3.Vec{
		X: float64(m.Vertices[3*i]),
		Y: float64(m.Vertices[3*i+1]),
		Z: float64(m.Vertices[3*i+2]),
	}
}

// Bounds returns the axis-aligned bounding box of the mesh vertices.
// An empty mesh yields the zero box.
func (m *Mesh) Bounds() sdf.Box3 {
	if m.IsEmpty() {
		return sdf.Box3{}
	}
	min := [3]float32{math32.Inf(1), math32.Inf(1), math32.Inf(1)}
	max := [3]float32{math32.Inf(-1), math32.Inf(-1), math32.Inf(-1)}
	for i := 0; i < len(m.Vertices); i += 3 {
		for k := 0; k < 3; k++ {
			min[k] = math32.Min(min[k], m.Vertices[i+k])
			max[k] = math32.Max(max[k], m.Vertices[i+k])
		}
	}
	return sdf.Box3{
		Min: v3.Vec{X: float64(min[0]), Y: float64(min[1]), Z: float64(min[2])},
		Max: v3.Vec{X: float64(max[0]), Y: float64(max[1]), Z: float64(max[2])},
	}
}

// AssignUVs projects every vertex onto the mesh's own x/y bounding box and
// normalizes it to [0,1] per axis. The vertex at the box minimum maps to
// (0,0) and the one at the maximum to (1,1). A flat axis maps to 0.
func (m *Mesh) AssignUVs() {
	n := m.VertexCount()
	m.UVs = make([]float32, 2*n)
	if n == 0 {
		return
	}

	minX, minY := math32.Inf(1), math32.Inf(1)
	maxX, maxY := math32.Inf(-1), math32.Inf(-1)
	for i := 0; i < n; i++ {
		x, y := m.Vertices[3*i], m.Vertices[3*i+1]
		minX, maxX = math32.Min(minX, x), math32.Max(maxX, x)
		minY, maxY = math32.Min(minY, y), math32.Max(maxY, y)
	}
	spanX, spanY := maxX-minX, maxY-minY

	for i := 0; i < n; i++ {
		if spanX > 0 {
			m.UVs[2*i] = (m.Vertices[3*i] - minX) / spanX
		}
		if spanY > 0 {
			m.UVs[2*i+1] = (m.Vertices[3*i+1] - minY) / spanY
		}
	}
}

// ComputeNormals sets per-vertex normals to the area-weighted average of the
// adjacent triangle normals. Line meshes get +Z normals.
func (m *Mesh) ComputeNormals() {
	n := m.VertexCount()
	m.Normals = make([]float32, 3*n)
	if m.Mode == ModeLines {
		for i := 0; i < n; i++ {
			m.Normals[3*i+2] = 1
		}
		return
	}

	for t := 0; t+2 < len(m.Indices); t += 3 {
		a, b, c := m.Indices[t], m.Indices[t+1], m.Indices[t+2]
		ax, ay, az := m.Vertices[3*a], m.Vertices[3*a+1], m.Vertices[3*a+2]
		e1x, e1y, e1z := m.Vertices[3*b]-ax, m.Vertices[3*b+1]-ay, m.Vertices[3*b+2]-az
		e2x, e2y, e2z := m.Vertices[3*c]-ax, m.Vertices[3*c+1]-ay, m.Vertices[3*c+2]-az
		// Unnormalized cross product: its length is twice the triangle area.
		nx := e1y*e2z - e1z*e2y
		ny := e1z*e2x - e1x*e2z
		nz := e1x*e2y - e1y*e2x
		for _, v := range [3]uint32{a, b, c} {
			m.Normals[3*v] += nx
			m.Normals[3*v+1] += ny
			m.Normals[3*v+2] += nz
		}
	}

	for i := 0; i < n; i++ {
		x, y, z := m.Normals[3*i], m.Normals[3*i+1], m.Normals[3*i+2]
		l := math32.Sqrt(x*x + y*y + z*z)
		if l == 0 {
			m.Normals[3*i+2] = 1
			continue
		}
		m.Normals[3*i], m.Normals[3*i+1], m.Normals[3*i+2] = x/l, y/l, z/l
	}
}

// Area returns the total area of the mesh's triangles.
func (m *Mesh) Area() float64 {
	if m.Mode == ModeLines {
		return 0
	}
	var sum float64
	for t := 0; t+2 < len(m.Indices); t += 3 {
		a := m.Vertex(int(m.Indices[t]))
		b := m.Vertex(int(m.Indices[t+1]))
		c := m.Vertex(int(m.Indices[t+2]))
		sum += b.Sub(a).Cross(c.Sub(a)).Length() / 2
	}
	return sum
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Vertices: append([]float32(nil), m.Vertices...),
		Normals:  append([]float32(nil), m.Normals...),
		UVs:      append([]float32(nil), m.UVs...),
		Indices:  append([]uint32(nil), m.Indices...),
		Mode:     m.Mode,
		PartName: m.PartName,
	}
}

// boxEdges lists the 12 edges of a box by corner index. Corner i has x from
// bit 0, y from bit 1 and z from bit 2.
var boxEdges = [24]uint32{
	0, 1, 2, 3, 4, 5, 6, 7, // along x
	0, 2, 1, 3, 4, 6, 5, 7, // along y
	0, 4, 1, 5, 2, 6, 3, 7, // along z
}

// BoxOutline returns a 12-edge line mesh tracing b.
func BoxOutline(b sdf.Box3) *Mesh {
	m := &Mesh{Mode: ModeLines}
	for i := 0; i < 8; i++ {
		x, y, z := b.Min.X, b.Min.Y, b.Min.Z
		if i&1 != 0 {
			x = b.Max.X
		}
		if i&2 != 0 {
			y = b.Max.Y
		}
		if i&4 != 0 {
			z = b.Max.Z
		}
		m.Vertices = append(m.Vertices, float32(x), float32(y), float32(z))
	}
	m.Indices = append(m.Indices, boxEdges[:]...)
	m.ComputeNormals()
	return m
}
