// Package preview renders flat elevation drawings of wall assemblies with gg.
// The drawing shows the punched outline in the wall's own frame: x along
// the wall, y up, openings left clear.
package preview

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"math"
	"os"

	"github.com/chazu/wallforge/pkg/kernel"
	"github.com/gogpu/gg"
)

// Options controls the elevation raster.
type Options struct {
	Scale      float64 // pixels per plan unit
	Margin     int     // blank border in pixels
	Background gg.RGBA
	Fill       gg.RGBA
	Stroke     gg.RGBA
	LineWidth  float64
	MaxSize    int // largest allowed width or height in pixels
}

// DefaultOptions returns the stock drawing style.
func DefaultOptions() Options {
	return Options{
		Scale:      100,
		Margin:     16,
		Background: gg.White,
		Fill:       gg.Hex("#d0d0d0"),
		Stroke:     gg.Hex("#303030"),
		LineWidth:  1.5,
		MaxSize:    8192,
	}
}

// ErrNoOutline is returned for assemblies without a punched outline.
var ErrNoOutline = errors.New("preview: assembly has no outline")

// canvas maps outline coordinates to pixels, flipping y.
type canvas struct {
	scale  float64
	margin float64
	minX   float64
	minY   float64
	height float64
}

func (c canvas) pt(x, y float64) (float64, float64) {
	return c.margin + (x-c.minX)*c.scale, c.height - c.margin - (y-c.minY)*c.scale
}

// Elevation draws the assembly's outline and returns the raster.
func Elevation(a *kernel.Assembly, opts Options) (*image.RGBA, error) {
	dc, err := render(a, opts)
	if err != nil {
		return nil, err
	}
	defer dc.Close()

	// Copy out so the raster outlives the context.
	src := dc.Image()
	out := image.NewRGBA(src.Bounds())
	draw.Draw(out, out.Bounds(), src, src.Bounds().Min, draw.Src)
	return out, nil
}

// render draws the elevation into a new context owned by the caller.
func render(a *kernel.Assembly, opts Options) (*gg.Context, error) {
	if a == nil || a.Outline == nil || len(a.Outline.Outer) < 3 {
		return nil, ErrNoOutline
	}
	if !(opts.Scale > 0) {
		return nil, fmt.Errorf("preview: scale must be positive, got %v", opts.Scale)
	}

	b := a.Outline.Bounds()
	size := b.Size()
	w := int(math.Ceil(size.X*opts.Scale)) + 2*opts.Margin
	h := int(math.Ceil(size.Y*opts.Scale)) + 2*opts.Margin
	if opts.MaxSize > 0 && (w > opts.MaxSize || h > opts.MaxSize) {
		return nil, fmt.Errorf("preview: %dx%d exceeds %d pixels", w, h, opts.MaxSize)
	}

	cv := canvas{
		scale:  opts.Scale,
		margin: float64(opts.Margin),
		minX:   b.Min.X,
		minY:   b.Min.Y,
		height: float64(h),
	}

	dc := gg.NewContext(w, h)
	dc.ClearWithColor(opts.Background)
	dc.SetFillRule(gg.FillRuleEvenOdd)

	trace(dc, cv, a.Outline)
	dc.SetColor(opts.Fill.Color())
	if err := dc.Fill(); err != nil {
		dc.Close()
		return nil, fmt.Errorf("preview: fill: %w", err)
	}

	trace(dc, cv, a.Outline)
	dc.SetColor(opts.Stroke.Color())
	dc.SetLineWidth(opts.LineWidth)
	if err := dc.Stroke(); err != nil {
		dc.Close()
		return nil, fmt.Errorf("preview: stroke: %w", err)
	}
	return dc, nil
}

// trace adds every loop of the shape to the current path.
func trace(dc *gg.Context, cv canvas, s *kernel.Shape) {
	loop := func(l kernel.Loop) {
		dc.NewSubPath()
		for i, p := range l {
			x, y := cv.pt(p.X, p.Y)
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.ClosePath()
	}
	loop(s.Outer)
	for _, hole := range s.Holes {
		loop(hole)
	}
}

// WritePNG renders the elevation and encodes it as PNG.
func WritePNG(w io.Writer, a *kernel.Assembly, opts Options) error {
	dc, err := render(a, opts)
	if err != nil {
		return err
	}
	defer dc.Close()
	return dc.EncodePNG(w)
}

// SavePNG renders the elevation into the named file.
func SavePNG(path string, a *kernel.Assembly, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePNG(f, a, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
