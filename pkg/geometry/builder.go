package geometry

import (
	"github.com/pcbpeek/pcbpeek/pkg/errors"
	"github.com/pcbpeek/pcbpeek/pkg/gerber"
)

// Options configures command interpretation.
type Options struct {
	// MaxRegionVertices caps the total vertex count accumulated across
	// a file's region contours.
	MaxRegionVertices int
	// ChordAngle is the angular step (radians) used when flattening
	// region arcs into contour segments.
	ChordAngle float64
}

// DefaultOptions returns the standard builder limits.
func DefaultOptions() Options {
	return Options{
		MaxRegionVertices: 100_000,
		ChordAngle:        defaultChordAngle,
	}
}

// Build interprets a command stream into millimeter-space primitives.
//
// All interpreter state (position, aperture, interpolation, polarity,
// region accumulation) is local to the call, so files can be built in
// parallel.
func Build(cmds []gerber.Command, opts Options) ([]Primitive, error) {
	if opts.MaxRegionVertices <= 0 {
		opts = DefaultOptions()
	}
	b := &builder{
		opts: opts,
		// Files that draw arcs without an explicit G74/G75 are treated
		// as multi-quadrant, matching current-spec consumers.
		multi: true,
		dark:  true,
	}
	for _, cmd := range cmds {
		if err := b.apply(cmd); err != nil {
			return nil, err
		}
	}
	if b.inRegion {
		return nil, errors.New(errors.ErrCodeUnterminatedRegion, "end of file inside G36 region")
	}
	return b.prims, nil
}

type builder struct {
	opts Options

	pos         Point
	format      gerber.Format
	unit        gerber.Unit
	aperture    gerber.Shape
	apertureNum int
	apertures   map[int]gerber.Shape
	interp      gerber.Interpolation
	multi       bool
	dark        bool

	inRegion    bool
	contour     []Point
	contours    [][]Point
	regionVerts int

	prims []Primitive
}

func (b *builder) apply(cmd gerber.Command) error {
	switch c := cmd.(type) {
	case gerber.SetFormat:
		b.format = c.Format
	case gerber.SetUnit:
		b.unit = c.Unit
	case gerber.DefineAperture:
		if b.apertures == nil {
			b.apertures = make(map[int]gerber.Shape)
		}
		b.apertures[c.Number] = c.Shape
	case gerber.SelectAperture:
		shape, ok := b.apertures[c.Number]
		if !ok {
			return errors.New(errors.ErrCodeUndefinedAperture, "D%d selected before definition", c.Number)
		}
		b.aperture, b.apertureNum = shape, c.Number
	case gerber.SetInterpolation:
		b.interp = c.Mode
	case gerber.SetQuadrantMode:
		b.multi = c.Multi
	case gerber.SetPolarity:
		b.dark = c.Dark
	case gerber.RegionStart:
		b.inRegion = true
		b.contour, b.contours = nil, nil
	case gerber.RegionEnd:
		b.closeContour()
		if len(b.contours) > 0 {
			b.prims = append(b.prims, Region{Contours: b.contours, Polarity: b.dark})
		}
		b.inRegion = false
		b.contour, b.contours, b.regionVerts = nil, nil, 0
	case gerber.Operation:
		return b.operation(c)
	case gerber.EndOfFile:
		// Region termination is checked after the loop.
	}
	return nil
}

func (b *builder) operation(op gerber.Operation) error {
	target := b.target(op.Coord)
	switch op.Kind {
	case gerber.OpMove:
		if b.inRegion {
			b.closeContour()
		}
		b.pos = target
	case gerber.OpDraw:
		if err := b.draw(op.Coord, target); err != nil {
			return err
		}
		b.pos = target
	case gerber.OpFlash:
		if b.inRegion {
			return errors.New(errors.ErrCodeGeometry, "flash inside G36 region")
		}
		if b.aperture == nil {
			return errors.New(errors.ErrCodeUndefinedAperture, "flash before aperture selection")
		}
		b.prims = append(b.prims, Flash{
			Shape:    b.aperture.Scale(b.scale()),
			Center:   target,
			Polarity: b.dark,
		})
		b.pos = target
	}
	return nil
}

func (b *builder) draw(coord gerber.Coord, target Point) error {
	if b.interp == gerber.InterpLinear {
		if b.inRegion {
			return b.regionSegment([]Point{target})
		}
		width, err := b.width()
		if err != nil {
			return err
		}
		b.prims = append(b.prims, Line{P0: b.pos, P1: target, Width: width, Polarity: b.dark})
		return nil
	}

	offset := Point{coord.I * b.scale(), coord.J * b.scale()}
	clockwise := b.interp == gerber.InterpClockwise
	var width float64
	if !b.inRegion {
		w, err := b.width()
		if err != nil {
			return err
		}
		width = w
	}
	arc, err := solveArc(b.pos, target, offset, clockwise, b.multi, width, b.dark)
	if err != nil {
		return err
	}
	if b.inRegion {
		pts := arc.Flatten(b.opts.ChordAngle)
		// The first flattened point duplicates the current position.
		if len(pts) > 0 {
			pts = pts[1:]
		}
		return b.regionSegment(pts)
	}
	b.prims = append(b.prims, arc)
	return nil
}

// target resolves an operation's coordinate against the current point,
// honoring absolute vs. incremental mode. Omitted axes keep their
// current value.
func (b *builder) target(c gerber.Coord) Point {
	k := b.scale()
	t := b.pos
	if b.format.Incremental {
		if c.HasX {
			t.X += c.X * k
		}
		if c.HasY {
			t.Y += c.Y * k
		}
		return t
	}
	if c.HasX {
		t.X = c.X * k
	}
	if c.HasY {
		t.Y = c.Y * k
	}
	return t
}

// scale converts file units to millimeters.
func (b *builder) scale() float64 {
	return b.unit.Scale()
}

func (b *builder) width() (float64, error) {
	if b.aperture == nil {
		return 0, errors.New(errors.ErrCodeUndefinedAperture, "draw before aperture selection")
	}
	return strokeWidth(b.aperture) * b.scale(), nil
}

func (b *builder) regionSegment(pts []Point) error {
	if len(b.contour) == 0 {
		b.contour = append(b.contour, b.pos)
		b.regionVerts++
	}
	b.regionVerts += len(pts)
	if b.regionVerts > b.opts.MaxRegionVertices {
		return errors.New(errors.ErrCodeRasterLimit, "region vertex count exceeds limit of %d", b.opts.MaxRegionVertices)
	}
	b.contour = append(b.contour, pts...)
	return nil
}

// closeContour finishes the contour under construction. Contours with
// fewer than three vertices cannot enclose area and are dropped.
func (b *builder) closeContour() {
	if len(b.contour) >= 3 {
		b.contours = append(b.contours, b.contour)
	}
	b.contour = nil
}
