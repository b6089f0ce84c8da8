package wall

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/chazu/wallforge/pkg/kernel"
	"github.com/chazu/wallforge/pkg/plan"
	"github.com/chazu/wallforge/pkg/texture"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func straightWall(from, to v2.Vec) plan.Wall {
	return plan.Wall{
		ID:        "w",
		From:      from,
		To:        to,
		Thickness: 0.2,
		Height:    2.5,
		TextureA:  "bricks",
		TextureB:  "painted",
	}
}

func mustBuild(t *testing.T, in Input) *kernel.Assembly {
	t.Helper()
	if in.Textures.Len() == 0 {
		in.Textures = texture.DefaultLibrary()
	}
	a, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return a
}

// worldBounds returns the bounding box of the named node's mesh in the
// assembly's world frame.
func worldBounds(t *testing.T, a *kernel.Assembly, name string) sdf.Box3 {
	t.Helper()
	var box sdf.Box3
	found := false
	_ = a.Root.Walk(func(n *kernel.Node, world sdf.M44) error {
		if n.Name != name || n.Mesh == nil {
			return nil
		}
		found = true
		lo := v3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
		hi := v3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
		for i := 0; i < n.Mesh.VertexCount(); i++ {
			p := world.MulPosition(n.Mesh.Vertex(i))
			lo, hi = lo.Min(p), hi.Max(p)
		}
		box = sdf.Box3{Min: lo, Max: hi}
		return nil
	})
	if !found {
		t.Fatalf("no node named %q", name)
	}
	return box
}

func center(b sdf.Box3) v3.Vec {
	return b.Min.Add(b.Max).MulScalar(0.5)
}

func nearVec(a, b v3.Vec, eps float64) bool {
	return near(a.X, b.X, eps) && near(a.Y, b.Y, eps) && near(a.Z, b.Z, eps)
}

func TestBuildScenarioA(t *testing.T) {
	a := mustBuild(t, Input{Wall: straightWall(v2.Vec{}, v2.Vec{X: 10})})

	if got := a.PanelCount(); got != 5 {
		t.Errorf("PanelCount = %d, want 5", got)
	}
	if got := a.Root.Count(kernel.NodeWallClosure); got != 3 {
		t.Errorf("wall closures = %d, want 3", got)
	}
	if got := a.Root.Count(kernel.NodeOpeningClosure); got != 0 {
		t.Errorf("opening closures = %d, want 0", got)
	}
	if a.Angle != 0 {
		t.Errorf("Angle = %v, want 0", a.Angle)
	}
	if len(a.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", a.Warnings)
	}

	faceA := a.Root.Find(NameFaceA)
	faceB := a.Root.Find(NameFaceB)
	if faceA == nil || faceB == nil {
		t.Fatal("missing face nodes")
	}
	if faceA.Mesh != faceB.Mesh {
		t.Error("faces do not share one mesh")
	}
	if faceA.Material == faceB.Material {
		t.Error("faces share one material")
	}
	if !near(faceA.Transform.Position.Z, -0.1, tol) || !near(faceB.Transform.Position.Z, 0.1, tol) {
		t.Errorf("faces at z=%v and z=%v, want -0.1 and 0.1",
			faceA.Transform.Position.Z, faceB.Transform.Position.Z)
	}
	if faceA.Material.Side != kernel.SideBack || faceB.Material.Side != kernel.SideFront {
		t.Errorf("face sides = %v, %v", faceA.Material.Side, faceB.Material.Side)
	}
	if faceA.Material.Shading != kernel.ShadingPhong {
		t.Errorf("face shading = %v, want phong", faceA.Material.Shading)
	}

	b := worldBounds(t, a, NameFaceB)
	if !near(b.Min.X, -0.1, 1e-5) || !near(b.Max.X, 10.1, 1e-5) || !near(b.Max.Y, 2.5, 1e-5) {
		t.Errorf("face-b world bounds = %v, want x -0.1..10.1, y 0..2.5", b)
	}
	if !near(a.Outline.Area(), 10.2*2.5, 1e-9) {
		t.Errorf("outline area = %v", a.Outline.Area())
	}
}

func TestBuildScenarioB(t *testing.T) {
	a := mustBuild(t, Input{
		Wall:     straightWall(v2.Vec{}, v2.Vec{X: 10}),
		Openings: []plan.Opening{window(0.5)},
	})

	if got := a.PanelCount(); got != 9 {
		t.Errorf("PanelCount = %d, want 9", got)
	}
	if got := len(a.Outline.Holes); got != 1 {
		t.Fatalf("outline holes = %d, want 1", got)
	}
	hole := a.Outline.Holes[0]
	if c := (hole[0].X + hole[1].X) / 2; !near(c, 5.1, 1e-9) {
		t.Errorf("hole center = %v, want 5.1", c)
	}
	for _, part := range []string{"top", "left", "right", "bottom"} {
		n := a.Root.Find("opening-1/" + part)
		if n == nil {
			t.Errorf("missing opening-1/%s", part)
			continue
		}
		if n.Material.Side != kernel.SideDouble || n.Material.Shading != kernel.ShadingLambert {
			t.Errorf("opening-1/%s material = %v %v", part, n.Material.Shading, n.Material.Side)
		}
	}

	top := center(worldBounds(t, a, "opening-1/top"))
	if !nearVec(top, v3.Vec{X: 5, Y: 2.1, Z: 0}, 1e-5) {
		t.Errorf("top closure centered at %v, want (5, 2.1, 0)", top)
	}
	left := worldBounds(t, a, "opening-1/left")
	if !near(left.Min.X, 4.5, 1e-5) || !near(left.Min.Y, 0.9, 1e-5) || !near(left.Max.Y, 2.1, 1e-5) {
		t.Errorf("left closure bounds = %v", left)
	}

	want := 10.2*2.5 - 1*(1.2-OpeningEpsilon)
	if got := a.Root.Find(NameFaceA).Mesh.Area(); !near(got, want, 1e-3) {
		t.Errorf("face area = %v, want %v", got, want)
	}
}

func TestBuildScenarioC(t *testing.T) {
	a := mustBuild(t, Input{Wall: straightWall(v2.Vec{}, v2.Vec{Y: 5})})
	if !near(a.Angle, math.Pi/2, 1e-12) {
		t.Errorf("Angle = %v, want π/2", a.Angle)
	}
	b := worldBounds(t, a, NameFaceA)
	if !near(b.Min.Z, -5.1, 1e-5) || !near(b.Max.Z, 0.1, 1e-5) {
		t.Errorf("face z extent = %v..%v, want -5.1..0.1", b.Min.Z, b.Max.Z)
	}
	if math.IsNaN(b.Min.X) || math.IsNaN(b.Max.X) {
		t.Error("NaN in vertical wall geometry")
	}
}

func TestBuildScenarioD(t *testing.T) {
	tests := []struct {
		name          string
		fwd, inverted float64 // offsets measured from each wall's From vertex
		centerX       float64
		clamped       bool
	}{
		{"mid span", 0.8, 0.2, 8, false},
		{"quarter span", 0.25, 0.75, 2.5, false},
		// The hole overhangs the far end and is pulled back inside.
		{"offset at the end", 1, 0, 10.2 - 0.1 - 0.5 - OpeningEpsilon, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fwd := mustBuild(t, Input{
				Wall:     straightWall(v2.Vec{}, v2.Vec{X: 10}),
				Openings: []plan.Opening{window(tt.fwd)},
			})
			inv := mustBuild(t, Input{
				Wall:     straightWall(v2.Vec{X: 10}, v2.Vec{}),
				Openings: []plan.Opening{window(tt.inverted)},
			})

			bf := worldBounds(t, fwd, "opening-1/top")
			bi := worldBounds(t, inv, "opening-1/top")
			if !nearVec(bf.Min, bi.Min, 1e-5) || !nearVec(bf.Max, bi.Max, 1e-5) {
				t.Errorf("inverted opening bounds %v, want %v", bi, bf)
			}
			if c := center(bi); !near(c.X, tt.centerX, 1e-5) {
				t.Errorf("opening centered at world x=%v, want %v", c.X, tt.centerX)
			}

			for name, a := range map[string]*kernel.Assembly{"forward": fwd, "inverted": inv} {
				if got := countWarnings(a, "extends past the wall end"); got != boolCount(tt.clamped) {
					t.Errorf("%s wall: %d clamp warnings, want %d (warnings %v)",
						name, got, boolCount(tt.clamped), a.Warnings)
				}
			}
		})
	}
}

func countWarnings(a *kernel.Assembly, substr string) int {
	n := 0
	for _, w := range a.Warnings {
		if strings.Contains(w.Message, substr) {
			n++
		}
	}
	return n
}

func boolCount(b bool) int {
	if b {
		return 1
	}
	return 0
}

func TestBuildOrientationInvariance(t *testing.T) {
	tests := []struct {
		name   string
		p0, p1 v2.Vec
	}{
		{"horizontal", v2.Vec{}, v2.Vec{X: 10}},
		{"vertical", v2.Vec{}, v2.Vec{Y: 10}},
		{"diagonal", v2.Vec{X: 1, Y: 1}, v2.Vec{X: 7, Y: 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fwd := mustBuild(t, Input{Wall: straightWall(tt.p0, tt.p1), Openings: []plan.Opening{window(0.3)}})
			rev := mustBuild(t, Input{Wall: straightWall(tt.p1, tt.p0), Openings: []plan.Opening{window(0.7)}})

			if fwd.PanelCount() != rev.PanelCount() {
				t.Fatalf("panel counts differ: %d vs %d", fwd.PanelCount(), rev.PanelCount())
			}
			af := fwd.Root.Find(NameFaceA).Mesh.Area()
			ar := rev.Root.Find(NameFaceA).Mesh.Area()
			if !near(af, ar, 1e-3) {
				t.Errorf("face areas differ: %v vs %v", af, ar)
			}
			cf := center(worldBounds(t, fwd, "opening-1/top"))
			cr := center(worldBounds(t, rev, "opening-1/top"))
			if !nearVec(cf, cr, 1e-4) {
				t.Errorf("opening at %v vs %v", cf, cr)
			}

			// The covering named by TextureA shows on the same side of the
			// wall either way round.
			sf := coveredFaceCenter(t, fwd, "Bricks")
			sr := coveredFaceCenter(t, rev, "Bricks")
			if !nearVec(sf, sr, 1e-4) {
				t.Errorf("bricks face at %v vs %v", sf, sr)
			}
		})
	}
}

func coveredFaceCenter(t *testing.T, a *kernel.Assembly, covering string) v3.Vec {
	t.Helper()
	for _, f := range a.Faces() {
		if f.Material.Texture != nil && f.Material.Texture.Name == covering {
			return center(worldBounds(t, a, f.Name))
		}
	}
	t.Fatalf("no face covered with %s", covering)
	return v3.Vec{}
}

func TestBuildPanelCounts(t *testing.T) {
	door := plan.Opening{ID: "d", Kind: plan.OpeningDoor, Width: 0.9, Height: 2.1, Offset: 0.2}
	win := plan.Opening{ID: "v", Kind: plan.OpeningWindow, Width: 1.2, Height: 1, Altitude: 1, Offset: 0.7}
	tests := []struct {
		name     string
		openings []plan.Opening
		panels   int
		holes    int
	}{
		{"no openings", nil, 5, 0},
		{"door", []plan.Opening{door}, 8, 1},
		{"window", []plan.Opening{win}, 9, 1},
		{"door and window", []plan.Opening{door, win}, 12, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustBuild(t, Input{Wall: straightWall(v2.Vec{}, v2.Vec{X: 10}), Openings: tt.openings})
			if got := a.PanelCount(); got != tt.panels {
				t.Errorf("PanelCount = %d, want %d", got, tt.panels)
			}
			if got := len(a.Outline.Holes); got != tt.holes {
				t.Errorf("holes = %d, want %d", got, tt.holes)
			}
		})
	}
}

func TestBuildUVs(t *testing.T) {
	a := mustBuild(t, Input{
		Wall:     straightWall(v2.Vec{X: 2, Y: 1}, v2.Vec{X: 8, Y: 5}),
		Openings: []plan.Opening{window(0.5)},
	})
	_ = a.Root.Walk(func(n *kernel.Node, _ sdf.M44) error {
		if n.Mesh == nil || n.Kind == kernel.NodeBoxHelper {
			return nil
		}
		m := n.Mesh
		if len(m.UVs) != 2*m.VertexCount() {
			t.Errorf("%s: %d UVs for %d vertices", n.Name, len(m.UVs), m.VertexCount())
			return nil
		}
		b := m.Bounds()
		for i := 0; i < m.VertexCount(); i++ {
			v := m.Vertex(i)
			u, w := float64(m.UVs[2*i]), float64(m.UVs[2*i+1])
			if u < 0 || u > 1 || w < 0 || w > 1 {
				t.Errorf("%s: uv %v,%v outside [0,1]", n.Name, u, w)
			}
			if v.X == b.Min.X && v.Y == b.Min.Y && (u != 0 || w != 0) {
				t.Errorf("%s: min corner maps to %v,%v", n.Name, u, w)
			}
			if v.X == b.Max.X && v.Y == b.Max.Y && (u != 1 || w != 1) {
				t.Errorf("%s: max corner maps to %v,%v", n.Name, u, w)
			}
		}
		return nil
	})
}

func TestBuildTextures(t *testing.T) {
	a := mustBuild(t, Input{Wall: straightWall(v2.Vec{}, v2.Vec{X: 10})})

	// Zero angle: face-a shows TextureB, face-b shows TextureA.
	fa := a.Root.Find(NameFaceA).Material
	fb := a.Root.Find(NameFaceB).Material
	if fa.Texture == nil || fa.Texture.Name != "Painted" {
		t.Fatalf("face-a texture = %+v, want Painted", fa.Texture)
	}
	if fb.Texture == nil || fb.Texture.Name != "Bricks" {
		t.Fatalf("face-b texture = %+v, want Bricks", fb.Texture)
	}
	if !near(fb.Repeat[0], 0.102, 1e-12) || !near(fb.Repeat[1], 0.025, 1e-12) {
		t.Errorf("repeat = %v, want [0.102 0.025]", fb.Repeat)
	}
	if fb.NormalScale != [2]float64{0.8, 0.8} || fa.NormalScale != [2]float64{0.4, 0.4} {
		t.Errorf("normal scales = %v, %v", fb.NormalScale, fa.NormalScale)
	}
	if fb.Map != nil {
		t.Error("texture handle set without a loader")
	}
}

func TestBuildMissingTexture(t *testing.T) {
	w := straightWall(v2.Vec{}, v2.Vec{X: 10})
	w.TextureA = "marble"
	w.TextureB = texture.None
	a := mustBuild(t, Input{Wall: w})

	if len(a.Warnings) != 1 {
		t.Fatalf("got %d warnings %v, want 1", len(a.Warnings), a.Warnings)
	}
	if !strings.Contains(a.Warnings[0].String(), "marble") {
		t.Errorf("warning %q does not name the slot", a.Warnings[0])
	}
	for _, f := range a.Faces() {
		if f.Material.Textured() {
			t.Errorf("%s is textured", f.Name)
		}
		if f.Material.Color != kernel.ColorUntextured {
			t.Errorf("%s color = %#x, want %#x", f.Name, f.Material.Color, kernel.ColorUntextured)
		}
	}
}

func TestBuildRejectedOpeningStillBuilds(t *testing.T) {
	huge := plan.Opening{ID: "huge", Width: 20, Height: 1, Offset: 0.5}
	a := mustBuild(t, Input{
		Wall:     straightWall(v2.Vec{}, v2.Vec{X: 10}),
		Openings: []plan.Opening{huge, window(0.5)},
	})
	if got := a.PanelCount(); got != 9 {
		t.Errorf("PanelCount = %d, want 9", got)
	}
	if a.Root.Find("opening-1/top") == nil || a.Root.Find("opening-2/top") != nil {
		t.Error("accepted openings are not numbered from 1")
	}
	if len(a.Warnings) != 1 || a.Warnings[0].Subject != "opening huge" {
		t.Errorf("warnings = %v", a.Warnings)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*plan.Wall)
		openings []plan.Opening
		want     error
		stage    Stage
	}{
		{"zero thickness", func(w *plan.Wall) { w.Thickness = 0 }, nil, ErrInvalidThickness, StageValidate},
		{"NaN height", func(w *plan.Wall) { w.Height = math.NaN() }, nil, ErrInvalidHeight, StageValidate},
		{"negative height", func(w *plan.Wall) { w.Height = -1 }, nil, ErrInvalidHeight, StageValidate},
		{"coincident endpoints", func(w *plan.Wall) { w.To = w.From }, nil, ErrDegenerateWall, StageNormalize},
		{
			"overlapping openings", func(*plan.Wall) {},
			[]plan.Opening{window(0.5), {ID: "w2", Width: 1, Height: 1.2, Altitude: 0.9, Offset: 0.53}},
			ErrTriangulation, StageTriangulate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := straightWall(v2.Vec{}, v2.Vec{X: 10})
			tt.mutate(&w)
			a, err := Build(Input{Wall: w, Openings: tt.openings, Textures: texture.DefaultLibrary()})
			if a != nil {
				t.Error("got an assembly alongside the error")
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var be *BuildError
			if !errors.As(err, &be) {
				t.Fatalf("err %T is not a *BuildError", err)
			}
			if be.WallID != "w" || be.Stage != tt.stage {
				t.Errorf("BuildError = %q/%q, want w/%q", be.WallID, be.Stage, tt.stage)
			}
		})
	}
}

func TestBuildSelected(t *testing.T) {
	w := straightWall(v2.Vec{}, v2.Vec{X: 10})
	w.Selected = true
	a := mustBuild(t, Input{Wall: w, Openings: []plan.Opening{window(0.5)}})

	if got := a.Root.Count(kernel.NodeBoxHelper); got != 5 {
		t.Fatalf("box helpers = %d, want 5", got)
	}
	if got := a.PanelCount(); got != 9 {
		t.Errorf("PanelCount = %d, want 9 (helpers excluded)", got)
	}
	for _, name := range []string{NameFaceA, NameFaceB, NameClosureTop, NameClosureLeft, NameClosureRgt} {
		n := a.Root.Find(name)
		if len(n.Children) != 1 || n.Children[0].Kind != kernel.NodeBoxHelper {
			t.Errorf("%s has no box helper", name)
			continue
		}
		h := n.Children[0]
		if h.Mesh.Mode != kernel.ModeLines || h.Mesh.LineCount() != 12 {
			t.Errorf("%s helper: mode %v, %d lines", name, h.Mesh.Mode, h.Mesh.LineCount())
		}
		if h.Material.DepthTest || h.Material.RenderOrder != 1000 || h.Material.Color != kernel.ColorHelper {
			t.Errorf("%s helper material = %+v", name, h.Material)
		}
	}
	for _, n := range a.Root.Collect(kernel.NodeOpeningClosure) {
		if len(n.Children) != 0 {
			t.Errorf("%s has a box helper", n.Name)
		}
	}
}

func TestBuildCustomBevel(t *testing.T) {
	a, err := Build(Input{Wall: straightWall(v2.Vec{}, v2.Vec{X: 10})},
		WithBevelProfile(BevelProfile{RadiusScale: 1, RightCapOutset: 0.1}))
	if err != nil {
		t.Fatal(err)
	}
	r := a.Root.Find(NameClosureRgt)
	if !near(r.Transform.Position.X, 10.2, 1e-9) {
		t.Errorf("right cap at x=%v, want 10.2", r.Transform.Position.X)
	}
}

func TestBuildTriangulatorOption(t *testing.T) {
	calls := 0
	fail := kernel.TriangulatorFunc(func(*kernel.Shape) (*kernel.Mesh, error) {
		calls++
		return nil, kernel.ErrTriangulation
	})
	_, err := Build(Input{Wall: straightWall(v2.Vec{}, v2.Vec{X: 10})}, WithTriangulator(fail))
	if !errors.Is(err, ErrTriangulation) {
		t.Fatalf("err = %v, want ErrTriangulation", err)
	}
	if calls != 1 {
		t.Errorf("triangulator called %d times, want 1", calls)
	}
}

func testPlan() *plan.Plan {
	p := plan.New()
	p.AddOpening(&plan.Opening{ID: "door", Kind: plan.OpeningDoor, Width: 0.9, Height: 2.1, Offset: 0.5})
	p.AddWall(&plan.Wall{ID: "south", From: v2.Vec{}, To: v2.Vec{X: 4}, Thickness: 0.2, Height: 2.5,
		Openings: []plan.OpeningID{"door", "ghost"}, TextureA: "bricks", TextureB: "bricks"})
	p.AddWall(&plan.Wall{ID: "broken", From: v2.Vec{X: 4}, To: v2.Vec{X: 4}, Thickness: 0.2, Height: 2.5})
	p.AddWall(&plan.Wall{ID: "east", From: v2.Vec{X: 4}, To: v2.Vec{X: 4, Y: 3}, Thickness: 0.2, Height: 2.5})
	return p
}

func TestBuildPlan(t *testing.T) {
	for _, workers := range []int{1, 2, 8} {
		rs := BuildPlan(context.Background(), testPlan(), WithWorkers(workers))
		if len(rs) != 3 {
			t.Fatalf("workers=%d: %d results, want 3", workers, len(rs))
		}
		for i, id := range []plan.WallID{"south", "broken", "east"} {
			if rs[i].WallID != id {
				t.Errorf("workers=%d: result %d is %s, want %s", workers, i, rs[i].WallID, id)
			}
		}
		if rs[0].Err != nil || rs[0].Assembly.PanelCount() != 8 {
			t.Errorf("workers=%d: south = %v", workers, rs[0].Err)
		}
		if !errors.Is(rs[1].Err, ErrDegenerateWall) || rs[1].Assembly != nil {
			t.Errorf("workers=%d: broken err = %v", workers, rs[1].Err)
		}
		if rs[2].Err != nil || !near(rs[2].Assembly.Angle, math.Pi/2, 1e-12) {
			t.Errorf("workers=%d: east = %v", workers, rs[2].Err)
		}
		if got := len(Assemblies(rs)); got != 2 {
			t.Errorf("workers=%d: %d assemblies, want 2", workers, got)
		}
		if f := Failed(rs); len(f) != 1 || f[0].WallID != "broken" {
			t.Errorf("workers=%d: failed = %v", workers, f)
		}
	}
}

func TestBuildPlanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rs := BuildPlan(ctx, testPlan())
	for _, r := range rs {
		if !errors.Is(r.Err, context.Canceled) || r.Assembly != nil {
			t.Errorf("%s: err = %v", r.WallID, r.Err)
		}
	}
}

func TestBuildPlanEmpty(t *testing.T) {
	if rs := BuildPlan(context.Background(), plan.New()); len(rs) != 0 {
		t.Errorf("got %d results for an empty plan", len(rs))
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { SetLogger(nil) })

	BuildPlan(context.Background(), testPlan(), WithWorkers(1))
	out := buf.String()
	if !strings.Contains(out, "unknown opening reference") || !strings.Contains(out, "ghost") {
		t.Errorf("log output missing dangling reference warning:\n%s", out)
	}
	if strings.Contains(out, "level=DEBUG") {
		t.Error("debug records logged at warn level")
	}

	SetLogger(nil)
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("default logger is enabled")
	}
}
