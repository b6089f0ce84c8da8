package plan

import (
	"fmt"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/peterstace/simplefeatures/rtree"
)

// JointTolerance is the distance under which two wall endpoints are treated
// as the same plan vertex.
const JointTolerance = 1e-6

// End identifies one end of a wall.
type End int

const (
	EndFrom End = iota
	EndTo
)

func (e End) String() string {
	if e == EndFrom {
		return "from"
	}
	return "to"
}

// Endpoint is a wall end stored in a JointIndex.
type Endpoint struct {
	Wall WallID
	End  End
	At   v2.Vec
}

// JointIndex is a spatial index over wall endpoints. It answers which walls
// meet at, or come close to, a point.
type JointIndex struct {
	tree      *rtree.RTree
	endpoints []Endpoint
	items     []rtree.BulkItem
}

// NewJointIndex indexes both endpoints of every wall in p.
func NewJointIndex(p *Plan) *JointIndex {
	idx := &JointIndex{}
	for _, w := range p.OrderedWalls() {
		idx.add(Endpoint{Wall: w.ID, End: EndFrom, At: w.From})
		idx.add(Endpoint{Wall: w.ID, End: EndTo, At: w.To})
	}
	// The plan is fixed once indexed, so the tree is bulk loaded.
	idx.tree = rtree.BulkLoad(idx.items)
	idx.items = nil
	return idx
}

func (idx *JointIndex) add(e Endpoint) {
	idx.endpoints = append(idx.endpoints, e)
	idx.items = append(idx.items, rtree.BulkItem{
		Box:      pointBox(e.At, 0),
		RecordID: len(idx.endpoints) - 1,
	})
}

// Near returns the endpoints within radius of at, excluding those of the
// wall named by skip.
func (idx *JointIndex) Near(at v2.Vec, radius float64, skip WallID) []Endpoint {
	var found []Endpoint
	_ = idx.tree.RangeSearch(pointBox(at, radius), func(recordID int) error {
		e := idx.endpoints[recordID]
		if e.Wall == skip {
			return nil
		}
		if e.At.Sub(at).Length() <= radius {
			found = append(found, e)
		}
		return nil
	})
	return found
}

// Len returns the number of indexed endpoints.
func (idx *JointIndex) Len() int {
	return len(idx.endpoints)
}

func pointBox(at v2.Vec, r float64) rtree.Box {
	return rtree.Box{
		MinX: at.X - r,
		MinY: at.Y - r,
		MaxX: at.X + r,
		MaxY: at.Y + r,
	}
}

// ---------------------------------------------------------------------------
// Tier 3: joint warnings
// ---------------------------------------------------------------------------

// validateJoints warns about corners where the bevel overlap will not close
// the gap: walls meeting with different thicknesses, and endpoints that
// almost but do not quite touch another wall.
func validateJoints(p *Plan) []ValidationWarning {
	var warnings []ValidationWarning
	idx := NewJointIndex(p)
	reported := make(map[[2]WallID]bool)

	for _, w := range p.OrderedWalls() {
		if w.Thickness <= 0 {
			continue // reported by Tier 2
		}
		for _, at := range []v2.Vec{w.From, w.To} {
			for _, other := range idx.Near(at, w.Thickness, w.ID) {
				key := pairKey(w.ID, other.Wall)
				if reported[key] {
					continue
				}
				ow := p.Walls[other.Wall]
				if ow == nil {
					continue
				}
				gap := other.At.Sub(at).Length()
				switch {
				case gap > JointTolerance:
					reported[key] = true
					warnings = append(warnings, ValidationWarning{
						WallID: w.ID,
						Message: fmt.Sprintf("endpoint misses wall %s by %.4f; walls will not join cleanly",
							other.Wall, gap),
					})
				case math.Abs(ow.Thickness-w.Thickness) > JointTolerance:
					reported[key] = true
					warnings = append(warnings, ValidationWarning{
						WallID: w.ID,
						Message: fmt.Sprintf("joins wall %s with thickness %.4f vs %.4f; bevel overlap will leave a gap",
							other.Wall, w.Thickness, ow.Thickness),
					})
				}
			}
		}
	}

	return warnings
}

func pairKey(a, b WallID) [2]WallID {
	if a < b {
		return [2]WallID{a, b}
	}
	return [2]WallID{b, a}
}
