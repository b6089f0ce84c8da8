package kernel

import "github.com/chazu/wallforge/pkg/texture"

// Side selects which faces of a panel are rendered.
type Side int

const (
	SideFront Side = iota
	SideBack
	SideDouble
)

func (s Side) String() string {
	switch s {
	case SideFront:
		return "front"
	case SideBack:
		return "back"
	case SideDouble:
		return "double"
	default:
		return "unknown"
	}
}

// MarshalText encodes the side by name.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Shading selects the lighting model a renderer should use.
type Shading int

const (
	ShadingPhong Shading = iota
	ShadingLambert
	ShadingBasic // unlit, used for helpers
)

func (s Shading) String() string {
	switch s {
	case ShadingPhong:
		return "phong"
	case ShadingLambert:
		return "lambert"
	case ShadingBasic:
		return "basic"
	default:
		return "unknown"
	}
}

// MarshalText encodes the shading model by name.
func (s Shading) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Color is a packed 0xRRGGBB value.
type Color uint32

// RGB returns the components scaled to [0,1].
func (c Color) RGB() (r, g, b float64) {
	return float64(c>>16&0xff) / 255, float64(c>>8&0xff) / 255, float64(c&0xff) / 255
}

// Stock colors.
const (
	ColorWhite      Color = 0xffffff
	ColorUntextured Color = 0xd0d0d0
	ColorHelper     Color = 0x99c3fb
)

// Material describes how a panel is shaded. Each panel owns its material;
// only the texture descriptor and handles are shared between panels.
type Material struct {
	Shading     Shading
	Side        Side
	Color       Color
	Texture     *texture.Descriptor `json:",omitempty"`
	Map         *texture.Handle     `json:"-"`
	NormalMap   *texture.Handle     `json:"-"`
	Repeat      [2]float64          // texture repeat along length and height
	NormalRep   [2]float64          // normal map repeat
	NormalScale [2]float64
	DepthTest   bool
	LineWidth   float64 `json:",omitempty"`
	RenderOrder int     `json:",omitempty"`
}

// NewMaterial returns an untextured material with depth testing on.
func NewMaterial(shading Shading, side Side) *Material {
	return &Material{
		Shading:   shading,
		Side:      side,
		Color:     ColorWhite,
		DepthTest: true,
	}
}

// HelperMaterial returns the material for selection box outlines.
func HelperMaterial() *Material {
	return &Material{
		Shading:     ShadingBasic,
		Side:        SideFront,
		Color:       ColorHelper,
		DepthTest:   false,
		LineWidth:   2,
		RenderOrder: 1000,
	}
}

// Textured reports whether the material samples a texture.
func (m *Material) Textured() bool {
	return m.Texture != nil
}

// Clone returns a copy of m. Texture handles are shared.
func (m *Material) Clone() *Material {
	c := *m
	if m.Texture != nil {
		d := *m.Texture
		c.Texture = &d
	}
	return &c
}
