// Package geometry interprets a parsed Gerber command stream into
// resolved drawable primitives in millimeter space.
//
// The builder resolves coordinate format and units, aperture stroke
// widths, arc center ambiguity and region contours, producing a flat
// primitive list the rasterizer and the dimension extractor both
// consume. Each primitive carries the polarity that was active when it
// was emitted; compositing is strictly last-in-emission-order.
package geometry

import (
	"math"

	"github.com/pcbpeek/pcbpeek/pkg/gerber"
)

// Point is a location in millimeter space.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned bounding box in millimeter space.
type Rect struct {
	Min, Max Point
}

// EmptyRect returns a rect that unions as the identity.
func EmptyRect() Rect {
	return Rect{
		Min: Point{math.Inf(1), math.Inf(1)},
		Max: Point{math.Inf(-1), math.Inf(-1)},
	}
}

// Empty reports whether the rect contains no points.
func (r Rect) Empty() bool {
	return r.Min.X > r.Max.X || r.Min.Y > r.Max.Y
}

// Width returns the X extent, 0 for an empty rect.
func (r Rect) Width() float64 {
	if r.Empty() {
		return 0
	}
	return r.Max.X - r.Min.X
}

// Height returns the Y extent, 0 for an empty rect.
func (r Rect) Height() float64 {
	if r.Empty() {
		return 0
	}
	return r.Max.Y - r.Min.Y
}

// Union returns the smallest rect covering both r and o.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return Rect{
		Min: Point{math.Min(r.Min.X, o.Min.X), math.Min(r.Min.Y, o.Min.Y)},
		Max: Point{math.Max(r.Max.X, o.Max.X), math.Max(r.Max.Y, o.Max.Y)},
	}
}

// Expand grows the rect by d on every side.
func (r Rect) Expand(d float64) Rect {
	if r.Empty() {
		return r
	}
	return Rect{
		Min: Point{r.Min.X - d, r.Min.Y - d},
		Max: Point{r.Max.X + d, r.Max.Y + d},
	}
}

func rectAround(p Point) Rect {
	return Rect{Min: p, Max: p}
}

// Primitive is a resolved drawable. All coordinates are millimeters.
type Primitive interface {
	// Dark reports whether the primitive adds to (true) or subtracts
	// from (false) the rendered layer.
	Dark() bool
	// Bounds returns the primitive's bounding box including stroke
	// width.
	Bounds() Rect
}

// Line is a straight stroke between two points.
type Line struct {
	P0, P1   Point
	Width    float64
	Polarity bool
}

// Arc is a circular stroke. Sweep is signed: positive sweeps
// counterclockwise from Start (angles in radians).
type Arc struct {
	Center   Point
	Radius   float64
	Start    float64
	Sweep    float64
	Width    float64
	Polarity bool
}

// Region is a filled polygon built from one or more closed contours,
// filled with the non-zero winding rule.
type Region struct {
	Contours [][]Point
	Polarity bool
}

// Flash is an aperture shape stamped at a point. The shape's
// dimensions are already converted to millimeters.
type Flash struct {
	Shape    gerber.Shape
	Center   Point
	Polarity bool
}

func (l Line) Dark() bool   { return l.Polarity }
func (a Arc) Dark() bool    { return a.Polarity }
func (r Region) Dark() bool { return r.Polarity }
func (f Flash) Dark() bool  { return f.Polarity }

func (l Line) Bounds() Rect {
	return rectAround(l.P0).Union(rectAround(l.P1)).Expand(l.Width / 2)
}

func (a Arc) Bounds() Rect {
	b := EmptyRect()
	for _, p := range a.Flatten(defaultChordAngle) {
		b = b.Union(rectAround(p))
	}
	return b.Expand(a.Width / 2)
}

func (r Region) Bounds() Rect {
	b := EmptyRect()
	for _, contour := range r.Contours {
		for _, p := range contour {
			b = b.Union(rectAround(p))
		}
	}
	return b
}

func (f Flash) Bounds() Rect {
	return shapeBounds(f.Shape, f.Center)
}

// defaultChordAngle is the angular step used when flattening arcs to
// polylines: 5 degrees keeps the chord error well under a pixel at the
// render density in use.
const defaultChordAngle = math.Pi / 36

// Flatten approximates the arc as a polyline. step is the maximum
// angular advance per segment in radians.
func (a Arc) Flatten(step float64) []Point {
	if step <= 0 {
		step = defaultChordAngle
	}
	n := int(math.Ceil(math.Abs(a.Sweep) / step))
	if n < 1 {
		n = 1
	}
	pts := make([]Point, 0, n+1)
	for i := 0; i <= n; i++ {
		ang := a.Start + a.Sweep*float64(i)/float64(n)
		pts = append(pts, Point{
			X: a.Center.X + a.Radius*math.Cos(ang),
			Y: a.Center.Y + a.Radius*math.Sin(ang),
		})
	}
	return pts
}

// shapeBounds computes the bounding box of an aperture shape placed at
// center.
func shapeBounds(s gerber.Shape, center Point) Rect {
	switch sh := s.(type) {
	case gerber.Circle:
		return rectAround(center).Expand(sh.Diameter / 2)
	case gerber.Rectangle:
		return Rect{
			Min: Point{center.X - sh.W/2, center.Y - sh.H/2},
			Max: Point{center.X + sh.W/2, center.Y + sh.H/2},
		}
	case gerber.Obround:
		return Rect{
			Min: Point{center.X - sh.W/2, center.Y - sh.H/2},
			Max: Point{center.X + sh.W/2, center.Y + sh.H/2},
		}
	case gerber.Polygon:
		return rectAround(center).Expand(sh.Diameter / 2)
	case gerber.Macro:
		b := EmptyRect()
		for _, fig := range sh.Figures {
			if fig.Diameter > 0 {
				c := Point{center.X + fig.Center.X, center.Y + fig.Center.Y}
				b = b.Union(rectAround(c).Expand(fig.Diameter / 2))
				continue
			}
			for _, p := range fig.Contour {
				b = b.Union(rectAround(Point{center.X + p.X, center.Y + p.Y}))
			}
		}
		return b
	}
	return rectAround(center)
}

// strokeWidth returns the stroke width an aperture produces on draws.
func strokeWidth(s gerber.Shape) float64 {
	switch sh := s.(type) {
	case gerber.Circle:
		return sh.Diameter
	case gerber.Rectangle:
		return math.Min(sh.W, sh.H)
	case gerber.Obround:
		return math.Min(sh.W, sh.H)
	case gerber.Polygon:
		return sh.Diameter
	}
	return 0
}
