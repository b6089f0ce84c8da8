// Package plan defines the floor-plan document consumed by the wall
// generator: wall segments, the openings cut into them, the covering
// library, and plan-wide defaults.
package plan

import (
	"fmt"

	"github.com/chazu/wallforge/pkg/texture"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// WallID names a wall segment within a plan.
type WallID string

// OpeningID names an opening within a plan.
type OpeningID string

// OpeningKind distinguishes doors, windows and plain holes. It only affects
// labelling; geometry is the same rectangle for every kind.
type OpeningKind int

const (
	OpeningHole OpeningKind = iota
	OpeningDoor
	OpeningWindow
)

func (k OpeningKind) String() string {
	switch k {
	case OpeningHole:
		return "hole"
	case OpeningDoor:
		return "door"
	case OpeningWindow:
		return "window"
	default:
		return "unknown"
	}
}

// ParseOpeningKind converts a kind name back to an OpeningKind.
func ParseOpeningKind(s string) (OpeningKind, error) {
	switch s {
	case "hole", "":
		return OpeningHole, nil
	case "door":
		return OpeningDoor, nil
	case "window":
		return OpeningWindow, nil
	}
	return 0, fmt.Errorf("plan: unknown opening kind %q, expected hole, door or window", s)
}

// Opening is a rectangular cut-out. Offset is the position of its center
// along the owning wall, 0 at the wall's From vertex and 1 at its To vertex.
type Opening struct {
	ID       OpeningID   `json:"id"`
	Kind     OpeningKind `json:"kind"`
	Width    float64     `json:"width"`
	Height   float64     `json:"height"`
	Altitude float64     `json:"altitude"` // sill height above the wall base
	Offset   float64     `json:"offset"`
}

// Wall is a straight wall segment between two plan vertices.
type Wall struct {
	ID        WallID      `json:"id"`
	From      v2.Vec      `json:"from"`
	To        v2.Vec      `json:"to"`
	Thickness float64     `json:"thickness"`
	Height    float64     `json:"height"`
	Openings  []OpeningID `json:"openings,omitempty"`
	TextureA  string      `json:"textureA"`
	TextureB  string      `json:"textureB"`
	Selected  bool        `json:"selected,omitempty"`
}

// Length returns the distance between the wall's endpoints.
func (w Wall) Length() float64 {
	return w.To.Sub(w.From).Length()
}

// Defaults holds plan-wide settings applied to walls that omit them.
type Defaults struct {
	Units     string  `json:"units"`
	Thickness float64 `json:"thickness"`
	Height    float64 `json:"height"`
	TextureA  string  `json:"textureA"`
	TextureB  string  `json:"textureB"`
}

// DefaultDefaults returns the settings used by New.
func DefaultDefaults() Defaults {
	return Defaults{
		Units:     "m",
		Thickness: 0.2,
		Height:    2.5,
		TextureA:  "bricks",
		TextureB:  "bricks",
	}
}

// Plan is a floor plan. Walls keep insertion order so that builds and
// reports are deterministic.
type Plan struct {
	Walls    map[WallID]*Wall       `json:"walls"`
	Order    []WallID               `json:"order"`
	Openings map[OpeningID]*Opening `json:"openings"`
	Textures texture.Library        `json:"-"`
	Defaults Defaults               `json:"defaults"`
	Version  uint64                 `json:"version"`
}

// New creates an empty plan with the stock covering library.
func New() *Plan {
	return &Plan{
		Walls:    make(map[WallID]*Wall),
		Openings: make(map[OpeningID]*Opening),
		Textures: texture.DefaultLibrary(),
		Defaults: DefaultDefaults(),
	}
}

// AddWall adds w to the plan. A wall with the same ID replaces the earlier
// one but keeps its position in Order.
func (p *Plan) AddWall(w *Wall) {
	if _, exists := p.Walls[w.ID]; !exists {
		p.Order = append(p.Order, w.ID)
	}
	p.Walls[w.ID] = w
}

// AddOpening adds o to the plan, replacing any opening with the same ID.
func (p *Plan) AddOpening(o *Opening) {
	p.Openings[o.ID] = o
}

// Wall returns the wall with the given ID, or nil.
func (p *Plan) Wall(id WallID) *Wall {
	return p.Walls[id]
}

// Opening returns the opening with the given ID, or nil.
func (p *Plan) Opening(id OpeningID) *Opening {
	return p.Openings[id]
}

// OrderedWalls returns the walls in insertion order.
func (p *Plan) OrderedWalls() []*Wall {
	walls := make([]*Wall, 0, len(p.Order))
	for _, id := range p.Order {
		if w := p.Walls[id]; w != nil {
			walls = append(walls, w)
		}
	}
	return walls
}

// ResolveOpenings returns copies of the openings referenced by w, in the
// wall's order. References that do not resolve are returned separately.
func (p *Plan) ResolveOpenings(w *Wall) (openings []Opening, missing []OpeningID) {
	for _, id := range w.Openings {
		o := p.Openings[id]
		if o == nil {
			missing = append(missing, id)
			continue
		}
		openings = append(openings, *o)
	}
	return openings, missing
}

// WallCount returns the number of walls.
func (p *Plan) WallCount() int {
	return len(p.Walls)
}
