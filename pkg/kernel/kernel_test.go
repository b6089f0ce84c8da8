package kernel

import (
	"errors"
	"math"
	"testing"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// --- Mesh helper method tests ---

func TestMeshVertexCount(t *testing.T) {
	tests := []struct {
		name     string
		vertices []float32
		want     int
	}{
		{"empty", nil, 0},
		{"one vertex", []float32{1, 2, 3}, 1},
		{"four vertices", []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Vertices: tt.vertices}
			if got := m.VertexCount(); got != tt.want {
				t.Errorf("VertexCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshTriangleCount(t *testing.T) {
	tests := []struct {
		name    string
		indices []uint32
		mode    Mode
		tris    int
		lines   int
	}{
		{"empty", nil, ModeTriangles, 0, 0},
		{"one triangle", []uint32{0, 1, 2}, ModeTriangles, 1, 0},
		{"two triangles", []uint32{0, 1, 2, 2, 3, 0}, ModeTriangles, 2, 0},
		{"three lines", []uint32{0, 1, 1, 2, 2, 0}, ModeLines, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Indices: tt.indices, Mode: tt.mode}
			if got := m.TriangleCount(); got != tt.tris {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.tris)
			}
			if got := m.LineCount(); got != tt.lines {
				t.Errorf("LineCount() = %d, want %d", got, tt.lines)
			}
		})
	}
}

func TestMeshIsEmpty(t *testing.T) {
	t.Run("empty mesh", func(t *testing.T) {
		m := &Mesh{}
		if !m.IsEmpty() {
			t.Error("IsEmpty() = false for empty mesh, want true")
		}
	})
	t.Run("non-empty mesh", func(t *testing.T) {
		m := &Mesh{Vertices: []float32{1, 2, 3}}
		if m.IsEmpty() {
			t.Error("IsEmpty() = true for non-empty mesh, want false")
		}
	})
}

// quad returns a 2x1 rectangle at (1,3) split into two triangles.
func quad() *Mesh {
	return &Mesh{
		Vertices: []float32{1, 3, 0, 3, 3, 0, 3, 4, 0, 1, 4, 0},
		Indices:  []uint32{0, 1, 2, 0, 2, 3},
	}
}

func TestMeshBounds(t *testing.T) {
	b := quad().Bounds()
	if b.Min != (v3.Vec{X: 1, Y: 3, Z: 0}) || b.Max != (v3.Vec{X: 3, Y: 4, Z: 0}) {
		t.Errorf("Bounds() = %v, want (1,3,0)-(3,4,0)", b)
	}
	if empty := (&Mesh{}).Bounds(); empty != (sdf.Box3{}) {
		t.Errorf("empty Bounds() = %v, want zero box", empty)
	}
}

func TestAssignUVsRoundTrip(t *testing.T) {
	m := quad()
	m.AssignUVs()
	want := []float32{0, 0, 1, 0, 1, 1, 0, 1}
	if len(m.UVs) != len(want) {
		t.Fatalf("len(UVs) = %d, want %d", len(m.UVs), len(want))
	}
	for i := range want {
		if m.UVs[i] != want[i] {
			t.Errorf("UVs[%d] = %v, want %v", i, m.UVs[i], want[i])
		}
	}
}

func TestAssignUVsFlatAxis(t *testing.T) {
	m := &Mesh{Vertices: []float32{0, 2, 0, 5, 2, 0}}
	m.AssignUVs()
	if m.UVs[1] != 0 || m.UVs[3] != 0 {
		t.Errorf("flat y axis should map to 0, got %v", m.UVs)
	}
	if m.UVs[2] != 1 {
		t.Errorf("max x should map to 1, got %v", m.UVs[2])
	}
}

func TestComputeNormals(t *testing.T) {
	m := quad()
	m.ComputeNormals()
	for i := 0; i < m.VertexCount(); i++ {
		nx, ny, nz := m.Normals[3*i], m.Normals[3*i+1], m.Normals[3*i+2]
		if nx != 0 || ny != 0 || nz != 1 {
			t.Errorf("normal %d = (%v,%v,%v), want (0,0,1)", i, nx, ny, nz)
		}
	}
}

func TestMeshArea(t *testing.T) {
	if got := quad().Area(); math.Abs(got-2) > 1e-9 {
		t.Errorf("Area() = %v, want 2", got)
	}
}

func TestMeshCloneIsDeep(t *testing.T) {
	m := quad()
	c := m.Clone()
	c.Vertices[0] = 42
	if m.Vertices[0] == 42 {
		t.Error("Clone shares vertex storage")
	}
}

func TestBoxOutline(t *testing.T) {
	b := sdf.Box3{Min: v3.Vec{X: -1, Y: 0, Z: -0.1}, Max: v3.Vec{X: 9, Y: 2.5, Z: 0.1}}
	m := BoxOutline(b)
	if m.Mode != ModeLines {
		t.Fatalf("Mode = %v, want lines", m.Mode)
	}
	if m.VertexCount() != 8 || m.LineCount() != 12 {
		t.Errorf("got %d vertices / %d lines, want 8 / 12", m.VertexCount(), m.LineCount())
	}
	// Vertices are stored as float32.
	if got := m.Bounds(); !nearVec3(got.Min, b.Min, 1e-6) || !nearVec3(got.Max, b.Max, 1e-6) {
		t.Errorf("outline bounds = %v, want %v", got, b)
	}
	// Every edge must be axis aligned.
	for i := 0; i < len(m.Indices); i += 2 {
		d := m.Vertex(int(m.Indices[i+1])).Sub(m.Vertex(int(m.Indices[i])))
		nonZero := 0
		for _, c := range []float64{d.X, d.Y, d.Z} {
			if c != 0 {
				nonZero++
			}
		}
		if nonZero != 1 {
			t.Errorf("edge %d is not axis aligned: %v", i/2, d)
		}
	}
}

func nearVec3(a, b v3.Vec, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps && math.Abs(a.Z-b.Z) <= eps
}

// --- Shape tests ---

func TestLoopSignedArea(t *testing.T) {
	r := Rect(0, 0, 4, 2)
	if got := r.SignedArea(); got != 8 {
		t.Errorf("SignedArea() = %v, want 8", got)
	}
	if got := r.Reversed().SignedArea(); got != -8 {
		t.Errorf("reversed SignedArea() = %v, want -8", got)
	}
}

func TestShapeAreaAndWKT(t *testing.T) {
	s := NewShape(Rect(0, 0, 4, 2))
	s.AddHole(Rect(1, 0.5, 2, 1.5))
	if got := s.Area(); got != 7 {
		t.Errorf("Area() = %v, want 7", got)
	}
	if s.PointCount() != 8 {
		t.Errorf("PointCount() = %d, want 8", s.PointCount())
	}
	want := "POLYGON((0 0,4 0,4 2,0 2,0 0),(1 0.5,2 0.5,2 1.5,1 1.5,1 0.5))"
	if got := s.WKT(); got != want {
		t.Errorf("WKT() = %s, want %s", got, want)
	}
}

func TestShapeValidate(t *testing.T) {
	tests := []struct {
		name  string
		holes []Loop
		ok    bool
	}{
		{"no holes", nil, true},
		{"two separate holes", []Loop{Rect(1, 1, 2, 2), Rect(3, 1, 4, 2)}, true},
		{"overlapping holes", []Loop{Rect(1, 1, 3, 2), Rect(2, 1.5, 4, 2.5)}, false},
		{"hole outside", []Loop{Rect(20, 1, 21, 2)}, false},
		{"hole crossing outline", []Loop{Rect(9, 1, 11, 2)}, false},
		{"degenerate hole", []Loop{{{X: 1, Y: 1}, {X: 2, Y: 2}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Shape{Outer: Rect(0, 0, 10, 3), Holes: tt.holes}
			err := s.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("Validate() = nil, want error")
				}
				if !errors.Is(err, ErrTriangulation) {
					t.Errorf("error %v does not wrap ErrTriangulation", err)
				}
			}
		})
	}
}

// --- Transform and node tests ---

func vecNear(a, b v3.Vec) bool {
	return a.Sub(b).Length() < 1e-9
}

func TestTransformApply(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
		in   v3.Vec
		want v3.Vec
	}{
		{"identity", Identity(), v3.Vec{X: 1, Y: 2, Z: 3}, v3.Vec{X: 1, Y: 2, Z: 3}},
		{"translate", At(1, 0, -1), v3.Vec{X: 1}, v3.Vec{X: 2, Z: -1}},
		{"quarter turn about y", Identity().Rotated(0, math.Pi/2, 0), v3.Vec{X: 1}, v3.Vec{Z: -1}},
		{"flat about x", Identity().Rotated(math.Pi/2, 0, 0), v3.Vec{Y: 1}, v3.Vec{Z: 1}},
		{"rotate then translate", At(5, 0, 0).Rotated(0, math.Pi, 0), v3.Vec{X: 1}, v3.Vec{X: 4}},
		// XYZ order: y turns (1,0,0) to (0,0,-1), then x lifts it to (0,1,0).
		{"x and y together", Identity().Rotated(math.Pi/2, math.Pi/2, 0), v3.Vec{X: 1}, v3.Vec{Y: 1}},
		{"y and z together", Identity().Rotated(0, math.Pi/2, math.Pi/2), v3.Vec{X: 1}, v3.Vec{Y: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tr.Apply(tt.in); !vecNear(got, tt.want) {
				t.Errorf("Apply(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
	if !Identity().IsIdentity() || At(1, 0, 0).IsIdentity() {
		t.Error("IsIdentity() wrong")
	}
}

func TestNodeWalkAccumulatesTransforms(t *testing.T) {
	root := &Node{Name: "pivot", Kind: NodePivot, Transform: Identity().Rotated(0, math.Pi/2, 0)}
	face := root.Add(&Node{Name: "face", Kind: NodeFace, Transform: At(2, 0, 0)})
	face.Add(&Node{Name: "box", Kind: NodeBoxHelper})

	var got v3.Vec
	err := root.Walk(func(n *Node, world sdf.M44) error {
		if n.Name == "box" {
			got = world.MulPosition(v3.Vec{})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if want := (v3.Vec{Z: -2}); !vecNear(got, want) {
		t.Errorf("box origin in pivot frame = %v, want %v", got, want)
	}

	if root.Find("box") == nil || root.Find("nope") != nil {
		t.Error("Find() wrong")
	}
	if root.Count(NodeFace) != 1 || root.Count(NodeBoxHelper) != 1 {
		t.Error("Count() wrong")
	}
}

func TestNodeWalkStopsOnError(t *testing.T) {
	root := &Node{Name: "a"}
	root.Add(&Node{Name: "b"})
	root.Add(&Node{Name: "c"})
	stop := errors.New("stop")

	visited := 0
	err := root.Walk(func(n *Node, _ sdf.M44) error {
		visited++
		if n.Name == "b" {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("Walk error = %v, want stop", err)
	}
	if visited != 2 {
		t.Errorf("visited %d nodes, want 2", visited)
	}
}

func TestHelperMaterial(t *testing.T) {
	m := HelperMaterial()
	if m.Color != 0x99c3fb || m.DepthTest || m.LineWidth != 2 || m.RenderOrder != 1000 {
		t.Errorf("unexpected helper material: %+v", m)
	}
	r, g, b := m.Color.RGB()
	if math.Abs(r-0x99/255.0) > 1e-12 || math.Abs(g-0xc3/255.0) > 1e-12 || math.Abs(b-0xfb/255.0) > 1e-12 {
		t.Errorf("RGB() = %v %v %v", r, g, b)
	}
}

// --- Triangulator adapter ---

func TestTriangulatorFunc(t *testing.T) {
	var tri Triangulator = TriangulatorFunc(func(s *Shape) (*Mesh, error) {
		return &Mesh{PartName: "stub"}, nil
	})
	m, err := tri.Triangulate(NewShape(Rect(0, 0, 1, 1)))
	if err != nil || m.PartName != "stub" {
		t.Errorf("Triangulate() = %v, %v", m, err)
	}
}
