// Package raster scan-converts resolved primitives into a pixel image.
//
// Rendering uses a painter's algorithm on an opaque canvas: dark
// primitives paint the foreground color, clear primitives paint the
// background color. Because later primitives simply overdraw earlier
// ones, compositing is exactly last-in-emission-order, which is the
// documented precedence for overlapping dark and clear geometry.
//
// Canvas resolution derives from a fixed sample density (pixels per
// millimeter) so the physical bounding box maps deterministically to
// an integer canvas with a fixed margin, independent of the source
// file's declared unit.
package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/fogleman/gg"

	"github.com/pcbpeek/pcbpeek/pkg/errors"
	"github.com/pcbpeek/pcbpeek/pkg/geometry"
	"github.com/pcbpeek/pcbpeek/pkg/gerber"
)

// Options configures rendering.
type Options struct {
	// DPMM is the sample density in pixels per millimeter.
	DPMM float64
	// MarginMM is the blank border around the geometry, in millimeters.
	MarginMM float64

	// MaxCanvasPixels caps the canvas area (width x height).
	MaxCanvasPixels int64
	// MaxPrimitives caps the primitive count per layer.
	MaxPrimitives int

	Foreground color.Color
	Background color.Color
}

// DefaultOptions returns the standard render settings: 40 px/mm (the
// density the original preview service rendered at) with a 2 mm margin.
func DefaultOptions() Options {
	return Options{
		DPMM:            40,
		MarginMM:        2,
		MaxCanvasPixels: 64 << 20,
		MaxPrimitives:   200_000,
		Foreground:      color.RGBA{R: 0xb8, G: 0x73, B: 0x33, A: 0xff}, // copper
		Background:      color.RGBA{R: 0x0a, G: 0x0a, B: 0x0a, A: 0xff},
	}
}

// Render scan-converts prims onto a canvas sized for bbox.
func Render(prims []geometry.Primitive, bbox geometry.Rect, opts Options) (image.Image, error) {
	if opts.DPMM <= 0 {
		opts = DefaultOptions()
	}
	if opts.MaxPrimitives > 0 && len(prims) > opts.MaxPrimitives {
		return nil, errors.New(errors.ErrCodeRasterLimit,
			"primitive count %d exceeds limit of %d", len(prims), opts.MaxPrimitives)
	}

	if bbox.Empty() {
		bbox = geometry.Rect{}
	}
	marginPx := int(math.Ceil(opts.MarginMM * opts.DPMM))
	w := int(math.Ceil(bbox.Width()*opts.DPMM)) + 2*marginPx
	h := int(math.Ceil(bbox.Height()*opts.DPMM)) + 2*marginPx
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if opts.MaxCanvasPixels > 0 && int64(w)*int64(h) > opts.MaxCanvasPixels {
		return nil, errors.New(errors.ErrCodeRasterLimit,
			"canvas %dx%d exceeds pixel limit of %d", w, h, opts.MaxCanvasPixels)
	}

	c := &canvas{
		dc:   gg.NewContext(w, h),
		bbox: bbox,
		opts: opts,
	}
	c.dc.SetColor(opts.Background)
	c.dc.Clear()

	for _, p := range prims {
		c.draw(p)
	}
	return c.dc.Image(), nil
}

// EncodePNG serializes a rendered canvas.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode png")
	}
	return buf.Bytes(), nil
}

type canvas struct {
	dc   *gg.Context
	bbox geometry.Rect
	opts Options
}

// pix maps a millimeter point onto the canvas. Y flips: millimeter
// space grows upward, the canvas grows downward.
func (c *canvas) pix(p geometry.Point) (float64, float64) {
	x := (p.X-c.bbox.Min.X+c.opts.MarginMM) * c.opts.DPMM
	y := (c.bbox.Max.Y-p.Y+c.opts.MarginMM) * c.opts.DPMM
	return x, y
}

// paint returns the color a primitive region paints: foreground for
// dark polarity, background for clear.
func (c *canvas) paint(dark bool) color.Color {
	if dark {
		return c.opts.Foreground
	}
	return c.opts.Background
}

func (c *canvas) draw(p geometry.Primitive) {
	switch prim := p.(type) {
	case geometry.Line:
		c.stroke([]geometry.Point{prim.P0, prim.P1}, prim.Width, prim.Dark())
	case geometry.Arc:
		c.stroke(prim.Flatten(0), prim.Width, prim.Dark())
	case geometry.Region:
		c.dc.SetFillRuleWinding()
		for _, contour := range prim.Contours {
			c.path(contour)
		}
		c.dc.SetColor(c.paint(prim.Dark()))
		c.dc.Fill()
	case geometry.Flash:
		c.flash(prim)
	}
}

func (c *canvas) stroke(pts []geometry.Point, widthMM float64, dark bool) {
	if len(pts) < 2 {
		return
	}
	width := widthMM * c.opts.DPMM
	if width < 1 {
		width = 1 // zero-width apertures still leave a hairline trace
	}
	x, y := c.pix(pts[0])
	c.dc.MoveTo(x, y)
	for _, p := range pts[1:] {
		x, y = c.pix(p)
		c.dc.LineTo(x, y)
	}
	c.dc.SetColor(c.paint(dark))
	c.dc.SetLineWidth(width)
	c.dc.SetLineCap(gg.LineCapRound)
	c.dc.SetLineJoin(gg.LineJoinRound)
	c.dc.Stroke()
}

// path adds a closed contour subpath in canvas coordinates.
func (c *canvas) path(contour []geometry.Point) {
	if len(contour) < 3 {
		return
	}
	x, y := c.pix(contour[0])
	c.dc.NewSubPath()
	c.dc.MoveTo(x, y)
	for _, p := range contour[1:] {
		x, y = c.pix(p)
		c.dc.LineTo(x, y)
	}
	c.dc.ClosePath()
}

func (c *canvas) flash(f geometry.Flash) {
	col := c.paint(f.Dark())
	switch sh := f.Shape.(type) {
	case gerber.Circle:
		c.fillWithHole(col, sh.Hole, f.Center, func() {
			x, y := c.pix(f.Center)
			c.dc.DrawCircle(x, y, sh.Diameter/2*c.opts.DPMM)
		})
	case gerber.Rectangle:
		c.fillWithHole(col, sh.Hole, f.Center, func() {
			x, y := c.pix(geometry.Point{X: f.Center.X - sh.W/2, Y: f.Center.Y + sh.H/2})
			c.dc.DrawRectangle(x, y, sh.W*c.opts.DPMM, sh.H*c.opts.DPMM)
		})
	case gerber.Obround:
		c.fillWithHole(col, sh.Hole, f.Center, func() {
			x, y := c.pix(geometry.Point{X: f.Center.X - sh.W/2, Y: f.Center.Y + sh.H/2})
			r := math.Min(sh.W, sh.H) / 2 * c.opts.DPMM
			c.dc.DrawRoundedRectangle(x, y, sh.W*c.opts.DPMM, sh.H*c.opts.DPMM, r)
		})
	case gerber.Polygon:
		c.fillWithHole(col, sh.Hole, f.Center, func() {
			c.path(regularPolygon(f.Center, sh))
		})
	case gerber.Macro:
		for _, fig := range sh.Figures {
			// Exposure-off figures erase within the flash: they paint
			// whatever color the flash's polarity would not.
			figCol := c.paint(f.Dark() == fig.Exposure)
			if fig.Diameter > 0 {
				x, y := c.pix(geometry.Point{X: f.Center.X + fig.Center.X, Y: f.Center.Y + fig.Center.Y})
				c.dc.DrawCircle(x, y, fig.Diameter/2*c.opts.DPMM)
				c.dc.SetColor(figCol)
				c.dc.Fill()
				continue
			}
			contour := make([]geometry.Point, len(fig.Contour))
			for i, p := range fig.Contour {
				contour[i] = geometry.Point{X: f.Center.X + p.X, Y: f.Center.Y + p.Y}
			}
			c.dc.SetFillRuleWinding()
			c.path(contour)
			c.dc.SetColor(figCol)
			c.dc.Fill()
		}
	}
}

// fillWithHole fills the shape added by addShape, subtracting the
// aperture's center hole via the even-odd rule so pixels under the
// hole keep whatever was painted before.
func (c *canvas) fillWithHole(col color.Color, holeMM float64, center geometry.Point, addShape func()) {
	if holeMM > 0 {
		c.dc.SetFillRuleEvenOdd()
	} else {
		c.dc.SetFillRuleWinding()
	}
	addShape()
	if holeMM > 0 {
		x, y := c.pix(center)
		c.dc.DrawCircle(x, y, holeMM/2*c.opts.DPMM)
	}
	c.dc.SetColor(col)
	c.dc.Fill()
}

// regularPolygon builds a P-aperture outline in millimeter space, with
// vertex 1 on the positive X axis before rotation.
func regularPolygon(center geometry.Point, sh gerber.Polygon) []geometry.Point {
	r := sh.Diameter / 2
	rot := sh.Rotation * math.Pi / 180
	pts := make([]geometry.Point, 0, sh.Vertices)
	for i := 0; i < sh.Vertices; i++ {
		a := rot + 2*math.Pi*float64(i)/float64(sh.Vertices)
		pts = append(pts, geometry.Point{
			X: center.X + r*math.Cos(a),
			Y: center.Y + r*math.Sin(a),
		})
	}
	return pts
}
