package kernel

import (
	"fmt"

	"github.com/deadsy/sdfx/sdf"
)

// NodeKind classifies the nodes of an assembly tree.
type NodeKind int

const (
	NodePivot          NodeKind = iota // root transform, carries the wall's orientation
	NodeFace                           // one of the two wall faces
	NodeOpeningClosure                 // reveal panel lining an opening
	NodeWallClosure                    // end cap of the whole wall
	NodeBoxHelper                      // selection outline
)

func (k NodeKind) String() string {
	switch k {
	case NodePivot:
		return "pivot"
	case NodeFace:
		return "face"
	case NodeOpeningClosure:
		return "opening-closure"
	case NodeWallClosure:
		return "wall-closure"
	case NodeBoxHelper:
		return "box-helper"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k NodeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Node is an element of an assembly tree. A node exclusively owns its
// children, its mesh and its material; the two wall faces are the one
// exception and share a single read-only mesh.
type Node struct {
	Name      string    `json:"name"`
	Kind      NodeKind  `json:"kind"`
	Transform Transform `json:"transform"`
	Mesh      *Mesh     `json:"mesh,omitempty"`
	Material  *Material `json:"material,omitempty"`
	Children  []*Node   `json:"children,omitempty"`
}

// Add appends child to n's children and returns child.
func (n *Node) Add(child *Node) *Node {
	n.Children = append(n.Children, child)
	return child
}

// WalkFunc is called for every node with the matrix mapping its local
// coordinates into the frame of the walk's root.
type WalkFunc func(n *Node, world sdf.M44) error

// Walk visits n and its descendants depth first, parents before children.
// A non-nil error from fn stops the walk and is returned.
func (n *Node) Walk(fn WalkFunc) error {
	return n.walk(sdf.Identity3d(), fn)
}

func (n *Node) walk(parent sdf.M44, fn WalkFunc) error {
	world := parent.Mul(n.Transform.Matrix())
	if err := fn(n, world); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := c.walk(world, fn); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the first descendant (or n itself) with the given name.
func (n *Node) Find(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, c := range n.Children {
		if f := c.Find(name); f != nil {
			return f
		}
	}
	return nil
}

// Count returns the number of nodes of the given kind in the subtree.
func (n *Node) Count(kind NodeKind) int {
	count := 0
	if n.Kind == kind {
		count++
	}
	for _, c := range n.Children {
		count += c.Count(kind)
	}
	return count
}

// Collect returns the nodes of the given kind in depth-first order.
func (n *Node) Collect(kind NodeKind) []*Node {
	var out []*Node
	_ = n.Walk(func(c *Node, _ sdf.M44) error {
		if c.Kind == kind {
			out = append(out, c)
		}
		return nil
	})
	return out
}

// Warning is a recoverable problem met while building an assembly.
type Warning struct {
	Subject string `json:"subject"` // the opening or texture slot concerned
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Subject == "" {
		return w.Message
	}
	return w.Subject + ": " + w.Message
}

// Assembly is the generated geometry for one wall. Root is the pivot node
// placed at the wall's start vertex and rotated by Angle about +Y.
//
// Outline is the punched wall outline in the pivot frame before the face
// shift; the faces sit at x - Bevel/2, z = ±Thickness/2.
type Assembly struct {
	WallID    string    `json:"wallId"`
	Angle     float64   `json:"angle"`
	Root      *Node     `json:"root"`
	Warnings  []Warning `json:"warnings"`
	Outline   *Shape    `json:"-"`
	Thickness float64   `json:"thickness"`
	Bevel     float64   `json:"bevel"`
}

// PanelCount returns the number of mesh panels, excluding box helpers.
func (a *Assembly) PanelCount() int {
	return a.Root.Count(NodeFace) + a.Root.Count(NodeOpeningClosure) + a.Root.Count(NodeWallClosure)
}

// Faces returns the two wall face nodes.
func (a *Assembly) Faces() []*Node {
	return a.Root.Collect(NodeFace)
}
