package wall

import (
	"log/slog"

	"github.com/chazu/wallforge/pkg/kernel"
	"github.com/chazu/wallforge/pkg/plan"
	"github.com/chazu/wallforge/pkg/texture"
)

// Input is everything one wall build reads. Openings are the wall's
// resolved openings in placement order.
type Input struct {
	Wall     plan.Wall
	Openings []plan.Opening
	Textures texture.Library
}

// Build generates the assembly for one wall. Recoverable problems such as
// rejected openings or unknown coverings are returned in the assembly's
// Warnings; fatal problems are returned as a *BuildError and no assembly.
func Build(in Input, opts ...Option) (*kernel.Assembly, error) {
	cfg := newConfig(opts)
	w := in.Wall
	log := Logger().With(slog.String("wall", string(w.ID)))

	switch {
	case !(w.Thickness > 0):
		return nil, buildErr(w.ID, StageValidate, ErrInvalidThickness)
	case !(w.Height > 0):
		return nil, buildErr(w.ID, StageValidate, ErrInvalidHeight)
	}

	ep := Normalize(w.From, w.To)
	if ep.Length() == 0 {
		return nil, buildErr(w.ID, StageNormalize, ErrDegenerateWall)
	}
	log.Debug("normalized", slog.Bool("inverted", ep.Inverted), slog.Float64("length", ep.Length()))

	o := NewOutlineWithBevel(ep, w.Thickness, w.Height, cfg.bevel)
	log.Debug("outline", slog.Float64("extended", o.Extended), slog.Float64("bevel", o.Bevel))

	var warnings []kernel.Warning
	var cuts []Cut
	for _, op := range in.Openings {
		c, ws := o.Cut(op, ep.Inverted)
		for _, wn := range ws {
			log.Warn(wn.Message, slog.String("subject", wn.Subject))
		}
		warnings = append(warnings, ws...)
		if !c.Rejected {
			cuts = append(cuts, c)
		}
	}
	log.Debug("cut", slog.Int("openings", len(cuts)), slog.Int("rejected", len(in.Openings)-len(cuts)))

	if err := o.Shape.Validate(); err != nil {
		return nil, buildErr(w.ID, StageTriangulate, err)
	}
	face, err := cfg.triangulator.Triangulate(o.Shape)
	if err != nil {
		return nil, buildErr(w.ID, StageTriangulate, err)
	}
	face.AssignUVs()
	log.Debug("triangulated", slog.Int("triangles", face.TriangleCount()))

	pivot := &kernel.Node{Name: string(w.ID), Kind: kernel.NodePivot}
	a := &assembler{cfg: cfg, o: o, pivot: pivot}
	faces := a.faces(face)
	for i, c := range cuts {
		if err := a.openingClosures(i+1, c); err != nil {
			return nil, buildErr(w.ID, StageAssemble, err)
		}
	}
	caps, err := a.wallClosures()
	if err != nil {
		return nil, buildErr(w.ID, StageAssemble, err)
	}
	if w.Selected {
		for _, n := range append(faces, caps...) {
			boxHelper(n)
		}
	}

	alpha := Orient(pivot, ep)
	slotA, slotB := FaceSlots(alpha, w.TextureA, w.TextureB)
	tx := texturer{lib: in.Textures, loader: cfg.loader, length: o.Extended, height: o.Height}
	for i, slot := range []string{slotA, slotB} {
		if wn := tx.apply(faces[i].Material, slot, faces[i].Name); wn != nil {
			log.Warn(wn.Message, slog.String("subject", wn.Subject))
			warnings = append(warnings, *wn)
		}
	}
	asm := &kernel.Assembly{
		WallID:    string(w.ID),
		Angle:     alpha,
		Root:      pivot,
		Warnings:  warnings,
		Outline:   o.Shape,
		Thickness: o.Thickness,
		Bevel:     o.Bevel,
	}
	log.Debug("finalized", slog.Float64("angle", alpha), slog.Int("panels", asm.PanelCount()))
	return asm, nil
}
