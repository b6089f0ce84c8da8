package wall

import (
	"fmt"
	"math"

	"github.com/chazu/wallforge/pkg/kernel"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Panel names within an assembly.
const (
	NameFaceA       = "face-a" // back face, z = -t/2
	NameFaceB       = "face-b" // front face, z = +t/2
	NameClosureTop  = "closure/top"
	NameClosureLeft = "closure/left"
	NameClosureRgt  = "closure/right"
	NameBox         = "box"
)

// openingName returns the node name prefix for the n-th placed opening.
func openingName(n int, part string) string {
	return fmt.Sprintf("opening-%d/%s", n, part)
}

// assembler turns a punched outline into the panel tree under a pivot.
type assembler struct {
	cfg   config
	o     *Outline
	pivot *kernel.Node
}

func (a *assembler) panel(loop kernel.Loop) (*kernel.Mesh, error) {
	m, err := a.cfg.triangulator.Triangulate(kernel.NewShape(loop))
	if err != nil {
		return nil, err
	}
	m.AssignUVs()
	return m, nil
}

// flat returns the rotation laying a panel onto the xz plane.
func flat() kernel.Transform {
	return kernel.Identity().Rotated(math.Pi/2, 0, 0)
}

// upright returns the rotation standing a panel in the yz plane.
func upright() kernel.Transform {
	return kernel.Identity().Rotated(0, -math.Pi/2, 0)
}

func place(rot kernel.Transform, x, y, z float64) kernel.Transform {
	rot.Position.X, rot.Position.Y, rot.Position.Z = x, y, z
	return rot
}

// faces adds the two wall faces sharing the triangulated outline.
func (a *assembler) faces(face *kernel.Mesh) []*kernel.Node {
	shift := a.cfg.bevel.FaceShift(a.o.Thickness)
	ht := a.o.Thickness / 2

	back := a.pivot.Add(&kernel.Node{
		Name:      NameFaceA,
		Kind:      kernel.NodeFace,
		Transform: kernel.At(shift, 0, -ht),
		Mesh:      face,
		Material:  kernel.NewMaterial(kernel.ShadingPhong, kernel.SideBack),
	})
	front := a.pivot.Add(&kernel.Node{
		Name:      NameFaceB,
		Kind:      kernel.NodeFace,
		Transform: kernel.At(shift, 0, ht),
		Mesh:      face,
		Material:  kernel.NewMaterial(kernel.ShadingPhong, kernel.SideFront),
	})
	return []*kernel.Node{back, front}
}

// openingClosures adds the reveal panels lining one cut.
func (a *assembler) openingClosures(n int, c Cut) error {
	shift := a.cfg.bevel.FaceShift(a.o.Thickness)
	ht := a.o.Thickness / 2
	x := c.StartX + shift
	alt := c.Opening.Altitude

	type spec struct {
		part string
		loop kernel.Loop
		at   kernel.Transform
	}
	specs := []spec{
		{"top", c.Closures.Top, place(flat(), x, alt+c.Opening.Height, -ht)},
		{"left", c.Closures.Left, place(upright(), x, alt, -ht)},
		{"right", c.Closures.Left, place(upright(), x+c.Opening.Width, alt, -ht)},
	}
	if c.HasBottom() {
		specs = append(specs, spec{"bottom", c.Closures.Top, place(flat(), x, alt, -ht)})
	}

	for _, s := range specs {
		m, err := a.panel(s.loop)
		if err != nil {
			return fmt.Errorf("opening %s %s closure: %w", c.Opening.ID, s.part, err)
		}
		a.pivot.Add(&kernel.Node{
			Name:      openingName(n, s.part),
			Kind:      kernel.NodeOpeningClosure,
			Transform: s.at,
			Mesh:      m,
			Material:  kernel.NewMaterial(kernel.ShadingLambert, kernel.SideDouble),
		})
	}
	return nil
}

// wallClosures adds the top cap and the two end caps of the whole wall.
func (a *assembler) wallClosures() ([]*kernel.Node, error) {
	t, h := a.o.Thickness, a.o.Height
	ht := t / 2
	cl := ShapeClosures(v2.Vec{}, v2.Vec{X: a.o.Extended}, h, t)

	type spec struct {
		name string
		loop kernel.Loop
		at   kernel.Transform
		side kernel.Side
	}
	specs := []spec{
		{NameClosureTop, cl.Top, place(flat(), a.cfg.bevel.FaceShift(t), h, -ht), kernel.SideBack},
		{NameClosureLeft, cl.Left, place(upright(), a.cfg.bevel.LeftCapX(t), 0, -ht), kernel.SideFront},
		{NameClosureRgt, cl.Left, place(upright(), a.cfg.bevel.RightCapX(a.o.Extended, t), 0, -ht), kernel.SideBack},
	}

	nodes := make([]*kernel.Node, 0, len(specs))
	for _, s := range specs {
		m, err := a.panel(s.loop)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		nodes = append(nodes, a.pivot.Add(&kernel.Node{
			Name:      s.name,
			Kind:      kernel.NodeWallClosure,
			Transform: s.at,
			Mesh:      m,
			Material:  kernel.NewMaterial(kernel.ShadingLambert, s.side),
		}))
	}
	return nodes, nil
}

// boxHelper attaches a selection outline to n, tracing its mesh bounds in
// n's own frame.
func boxHelper(n *kernel.Node) {
	n.Add(&kernel.Node{
		Name:     NameBox,
		Kind:     kernel.NodeBoxHelper,
		Mesh:     kernel.BoxOutline(n.Mesh.Bounds()),
		Material: kernel.HelperMaterial(),
	})
}
