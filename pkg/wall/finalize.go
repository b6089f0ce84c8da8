package wall

import (
	"math"

	"github.com/chazu/wallforge/pkg/kernel"
	"github.com/chazu/wallforge/pkg/texture"
)

// Angle returns the wall's rotation about +Y. The endpoints are normalized,
// so the result lies in [-π/2, π/2]; a vertical wall gives ±π/2.
func Angle(ep Endpoints) float64 {
	l := ep.Length()
	if l == 0 {
		return 0
	}
	s := (ep.End.Y - ep.Start.Y) / l
	return math.Asin(math.Max(-1, math.Min(1, s)))
}

// Orient rotates the pivot into world orientation. It runs after every panel
// has been placed so that panel offsets stay in the wall's local frame.
func Orient(pivot *kernel.Node, ep Endpoints) float64 {
	alpha := Angle(ep)
	pivot.Transform = kernel.At(ep.Start.X, 0, -ep.Start.Y).Rotated(0, alpha, 0)
	return alpha
}

// FaceSlots returns the texture slot keys for face-a and face-b. Which plan
// side a face shows depends on the direction the wall was rotated.
func FaceSlots(alpha float64, slotA, slotB string) (faceA, faceB string) {
	if alpha > 0 {
		return slotA, slotB
	}
	return slotB, slotA
}

// texturer applies coverings to face materials.
type texturer struct {
	lib    texture.Library
	loader *texture.Loader
	length float64 // L', the extended face length
	height float64
}

// apply sets up m for the covering in slot. It returns a warning when the
// slot names a covering the library does not have.
func (tx texturer) apply(m *kernel.Material, slot, face string) *kernel.Warning {
	d, ok := tx.lib.Lookup(slot)
	if !ok {
		m.Color = kernel.ColorUntextured
		if slot == "" || slot == texture.None {
			return nil
		}
		return &kernel.Warning{
			Subject: "texture " + slot,
			Message: "no covering named " + slot + " for " + face + "; left untextured",
		}
	}

	m.Texture = &d
	m.Color = kernel.ColorWhite
	u, v := d.Repeat(tx.length, tx.height)
	m.Repeat = [2]float64{u, v}
	if tx.loader != nil && d.URI != "" {
		m.Map = tx.loader.Request(d.URI)
	}
	if n := d.Normal; n != nil {
		u, v := n.Repeat(tx.length, tx.height)
		m.NormalRep = [2]float64{u, v}
		m.NormalScale = [2]float64{n.ScaleX, n.ScaleY}
		if tx.loader != nil && n.URI != "" {
			m.NormalMap = tx.loader.Request(n.URI)
		}
	}
	return nil
}
