package gerber

import (
	"strconv"
	"strings"

	"github.com/pcbpeek/pcbpeek/pkg/errors"
)

// XY is a point in file units. The geometry package converts these to
// millimeter space when instantiating primitives.
type XY struct {
	X, Y float64
}

// Shape is a concrete aperture shape. Dimensions are in file units.
//
// The concrete types are Circle, Rectangle, Obround, Polygon and Macro.
type Shape interface {
	// Scale returns a copy of the shape with all dimensions multiplied
	// by k. Used to convert file units to millimeters.
	Scale(k float64) Shape
}

// Circle is the standard C aperture.
type Circle struct {
	Diameter float64
	Hole     float64 // center hole diameter, 0 for none
}

// Rectangle is the standard R aperture.
type Rectangle struct {
	W, H float64
	Hole float64
}

// Obround is the standard O aperture: a rectangle with fully rounded
// short sides.
type Obround struct {
	W, H float64
	Hole float64
}

// Polygon is the standard P aperture: a regular polygon.
type Polygon struct {
	Diameter float64 // outer (circumscribed circle) diameter
	Vertices int
	Rotation float64 // degrees, counterclockwise
	Hole     float64
}

// Macro is an aperture macro instantiated with its actual parameters.
// The template was evaluated at definition time into concrete figures,
// so no expression evaluation happens at render time.
type Macro struct {
	Name    string
	Figures []MacroFigure
}

// MacroFigure is one evaluated macro primitive. Exposure-off figures
// erase what earlier figures of the same flash exposed.
type MacroFigure struct {
	Exposure bool

	// Exactly one of the two representations is populated.
	Contour  []XY    // closed polygon outline
	Center   XY      // circle center (when Diameter > 0)
	Diameter float64 // circle diameter, 0 for polygon figures
}

func (s Circle) Scale(k float64) Shape {
	return Circle{Diameter: s.Diameter * k, Hole: s.Hole * k}
}

func (s Rectangle) Scale(k float64) Shape {
	return Rectangle{W: s.W * k, H: s.H * k, Hole: s.Hole * k}
}

func (s Obround) Scale(k float64) Shape {
	return Obround{W: s.W * k, H: s.H * k, Hole: s.Hole * k}
}

func (s Polygon) Scale(k float64) Shape {
	return Polygon{Diameter: s.Diameter * k, Vertices: s.Vertices, Rotation: s.Rotation, Hole: s.Hole * k}
}

func (s Macro) Scale(k float64) Shape {
	out := Macro{Name: s.Name, Figures: make([]MacroFigure, len(s.Figures))}
	for i, fig := range s.Figures {
		sf := MacroFigure{
			Exposure: fig.Exposure,
			Center:   XY{fig.Center.X * k, fig.Center.Y * k},
			Diameter: fig.Diameter * k,
		}
		if len(fig.Contour) > 0 {
			sf.Contour = make([]XY, len(fig.Contour))
			for j, p := range fig.Contour {
				sf.Contour[j] = XY{p.X * k, p.Y * k}
			}
		}
		out.Figures[i] = sf
	}
	return out
}

// parseStandardAperture builds a standard shape from an AD template
// letter and its X-separated parameter list.
func parseStandardAperture(template string, params []float64) (Shape, error) {
	n := len(params)
	switch template {
	case "C":
		if n < 1 {
			return nil, errors.New(errors.ErrCodeMalformedCommand, "circle aperture needs a diameter")
		}
		c := Circle{Diameter: params[0]}
		if n > 1 {
			c.Hole = params[1]
		}
		return c, nil
	case "R", "O":
		if n < 2 {
			return nil, errors.New(errors.ErrCodeMalformedCommand, "%s aperture needs width and height", template)
		}
		var hole float64
		if n > 2 {
			hole = params[2]
		}
		if template == "R" {
			return Rectangle{W: params[0], H: params[1], Hole: hole}, nil
		}
		return Obround{W: params[0], H: params[1], Hole: hole}, nil
	case "P":
		if n < 2 {
			return nil, errors.New(errors.ErrCodeMalformedCommand, "polygon aperture needs diameter and vertex count")
		}
		p := Polygon{Diameter: params[0], Vertices: int(params[1])}
		if p.Vertices < 3 || p.Vertices > 12 {
			return nil, errors.New(errors.ErrCodeMalformedCommand, "polygon aperture vertex count %d out of range", p.Vertices)
		}
		if n > 2 {
			p.Rotation = params[2]
		}
		if n > 3 {
			p.Hole = params[3]
		}
		return p, nil
	}
	return nil, errors.New(errors.ErrCodeMalformedCommand, "unknown aperture template %q", template)
}

// parseApertureParams splits an X-separated AD parameter list.
func parseApertureParams(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "X")
	params := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, errors.New(errors.ErrCodeMalformedCommand, "bad aperture parameter %q", p)
		}
		params = append(params, v)
	}
	return params, nil
}
