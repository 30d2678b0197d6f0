package gerber

import (
	"math"
	"strconv"
	"strings"

	"github.com/pcbpeek/pcbpeek/pkg/errors"
)

// MacroTemplate is a parsed but unevaluated aperture macro (AM block).
// Evaluation happens once per AD directive that instantiates the
// template, with the AD parameters bound to $1..$n.
type MacroTemplate struct {
	Name       string
	Statements []string
}

// Eval evaluates the template with the given actual parameters into
// concrete figures. maxSteps caps the total number of expression
// evaluation steps; exceeding it fails the file rather than looping.
//
// Supported primitive codes: 1 (circle), 2/20 (vector line), 21
// (center line), 4 (outline), 5 (polygon). Moiré (6) and thermal (7)
// primitives are reported as an UNSUPPORTED_MACRO per-file error.
func (m *MacroTemplate) Eval(params []float64, maxSteps int) ([]MacroFigure, error) {
	ev := &macroEval{
		vars:   make(map[int]float64, len(params)),
		budget: maxSteps,
	}
	for i, p := range params {
		ev.vars[i+1] = p
	}

	var figures []MacroFigure
	for _, stmt := range m.Statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if strings.HasPrefix(stmt, "$") {
			if err := ev.assign(stmt); err != nil {
				return nil, err
			}
			continue
		}
		if strings.HasPrefix(stmt, "0 ") || stmt == "0" {
			continue // macro comment
		}

		fields := strings.Split(stmt, ",")
		code, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, errors.New(errors.ErrCodeUnsupportedMacro, "macro %s: bad primitive code %q", m.Name, fields[0])
		}
		args := make([]float64, 0, len(fields)-1)
		for _, f := range fields[1:] {
			v, err := ev.eval(f)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}

		fig, err := m.figure(code, args)
		if err != nil {
			return nil, err
		}
		if fig != nil {
			figures = append(figures, *fig)
		}
	}
	return figures, nil
}

// figure converts an evaluated primitive statement into a figure.
func (m *MacroTemplate) figure(code int, args []float64) (*MacroFigure, error) {
	switch code {
	case 0:
		return nil, nil
	case 1:
		if len(args) < 4 {
			return nil, errors.New(errors.ErrCodeUnsupportedMacro, "macro %s: circle needs 4 parameters", m.Name)
		}
		rot := 0.0
		if len(args) > 4 {
			rot = args[4]
		}
		c := rotateXY(XY{args[2], args[3]}, rot)
		return &MacroFigure{Exposure: args[0] != 0, Center: c, Diameter: args[1]}, nil
	case 2, 20:
		if len(args) < 6 {
			return nil, errors.New(errors.ErrCodeUnsupportedMacro, "macro %s: vector line needs 6 parameters", m.Name)
		}
		rot := 0.0
		if len(args) > 6 {
			rot = args[6]
		}
		return &MacroFigure{
			Exposure: args[0] != 0,
			Contour:  rotateContour(vectorLine(XY{args[2], args[3]}, XY{args[4], args[5]}, args[1]), rot),
		}, nil
	case 21:
		if len(args) < 5 {
			return nil, errors.New(errors.ErrCodeUnsupportedMacro, "macro %s: center line needs 5 parameters", m.Name)
		}
		rot := 0.0
		if len(args) > 5 {
			rot = args[5]
		}
		w, h := args[1]/2, args[2]/2
		cx, cy := args[3], args[4]
		contour := []XY{
			{cx - w, cy - h}, {cx + w, cy - h}, {cx + w, cy + h}, {cx - w, cy + h},
		}
		return &MacroFigure{Exposure: args[0] != 0, Contour: rotateContour(contour, rot)}, nil
	case 4:
		if len(args) < 2 {
			return nil, errors.New(errors.ErrCodeUnsupportedMacro, "macro %s: outline needs a vertex count", m.Name)
		}
		n := int(args[1])
		// exposure, n, then n+1 coordinate pairs, then rotation.
		if n < 1 || len(args) < 2+2*(n+1) {
			return nil, errors.New(errors.ErrCodeUnsupportedMacro, "macro %s: outline declares %d vertices but carries %d parameters", m.Name, n, len(args))
		}
		rot := 0.0
		if len(args) > 2+2*(n+1) {
			rot = args[2+2*(n+1)]
		}
		contour := make([]XY, 0, n+1)
		for i := 0; i <= n; i++ {
			contour = append(contour, XY{args[2+2*i], args[3+2*i]})
		}
		return &MacroFigure{Exposure: args[0] != 0, Contour: rotateContour(contour, rot)}, nil
	case 5:
		if len(args) < 5 {
			return nil, errors.New(errors.ErrCodeUnsupportedMacro, "macro %s: polygon needs 5 parameters", m.Name)
		}
		n := int(args[1])
		if n < 3 || n > 12 {
			return nil, errors.New(errors.ErrCodeUnsupportedMacro, "macro %s: polygon vertex count %d out of range", m.Name, n)
		}
		rot := 0.0
		if len(args) > 5 {
			rot = args[5]
		}
		cx, cy, r := args[2], args[3], args[4]/2
		contour := make([]XY, 0, n)
		for i := 0; i < n; i++ {
			a := 2 * math.Pi * float64(i) / float64(n)
			contour = append(contour, XY{cx + r*math.Cos(a), cy + r*math.Sin(a)})
		}
		return &MacroFigure{Exposure: args[0] != 0, Contour: rotateContour(contour, rot)}, nil
	case 6, 7:
		return nil, errors.New(errors.ErrCodeUnsupportedMacro, "macro %s: primitive code %d not supported", m.Name, code)
	}
	return nil, errors.New(errors.ErrCodeUnsupportedMacro, "macro %s: unknown primitive code %d", m.Name, code)
}

// vectorLine expands a stroked segment into its rectangle outline.
func vectorLine(p0, p1 XY, width float64) []XY {
	dx, dy := p1.X-p0.X, p1.Y-p0.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		// Degenerate segment: a tiny square keeps the figure visible.
		h := width / 2
		return []XY{{p0.X - h, p0.Y - h}, {p0.X + h, p0.Y - h}, {p0.X + h, p0.Y + h}, {p0.X - h, p0.Y + h}}
	}
	// Unit normal scaled to half width.
	nx, ny := -dy/length*width/2, dx/length*width/2
	return []XY{
		{p0.X + nx, p0.Y + ny}, {p1.X + nx, p1.Y + ny},
		{p1.X - nx, p1.Y - ny}, {p0.X - nx, p0.Y - ny},
	}
}

// rotateXY rotates a point about the macro origin by deg degrees CCW.
func rotateXY(p XY, deg float64) XY {
	if deg == 0 {
		return p
	}
	a := deg * math.Pi / 180
	sin, cos := math.Sincos(a)
	return XY{p.X*cos - p.Y*sin, p.X*sin + p.Y*cos}
}

func rotateContour(contour []XY, deg float64) []XY {
	if deg == 0 {
		return contour
	}
	out := make([]XY, len(contour))
	for i, p := range contour {
		out[i] = rotateXY(p, deg)
	}
	return out
}

// =============================================================================
// Expression evaluation
// =============================================================================

// macroEval evaluates macro arithmetic over $-variables. The grammar is
//
//	expr   := term (('+'|'-') term)*
//	term   := factor (('x'|'X'|'/') factor)*
//	factor := number | $n | '(' expr ')' | '-' factor
//
// Every consumed token costs one step against the budget.
type macroEval struct {
	vars   map[int]float64
	budget int

	src string
	pos int
}

func (e *macroEval) assign(stmt string) error {
	eq := strings.IndexByte(stmt, '=')
	if eq < 2 {
		return errors.New(errors.ErrCodeUnsupportedMacro, "bad macro assignment %q", stmt)
	}
	n, err := strconv.Atoi(strings.TrimSpace(stmt[1:eq]))
	if err != nil || n < 1 {
		return errors.New(errors.ErrCodeUnsupportedMacro, "bad macro variable in %q", stmt)
	}
	v, err := e.eval(stmt[eq+1:])
	if err != nil {
		return err
	}
	e.vars[n] = v
	return nil
}

func (e *macroEval) eval(src string) (float64, error) {
	e.src = strings.TrimSpace(src)
	e.pos = 0
	v, err := e.expr()
	if err != nil {
		return 0, err
	}
	if e.pos != len(e.src) {
		return 0, errors.New(errors.ErrCodeUnsupportedMacro, "trailing input in macro expression %q", src)
	}
	return v, nil
}

func (e *macroEval) step() error {
	e.budget--
	if e.budget < 0 {
		return errors.New(errors.ErrCodeRasterLimit, "macro evaluation budget exceeded")
	}
	return nil
}

func (e *macroEval) expr() (float64, error) {
	v, err := e.term()
	if err != nil {
		return 0, err
	}
	for e.pos < len(e.src) {
		op := e.src[e.pos]
		if op != '+' && op != '-' {
			break
		}
		e.pos++
		if err := e.step(); err != nil {
			return 0, err
		}
		rhs, err := e.term()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			v += rhs
		} else {
			v -= rhs
		}
	}
	return v, nil
}

func (e *macroEval) term() (float64, error) {
	v, err := e.factor()
	if err != nil {
		return 0, err
	}
	for e.pos < len(e.src) {
		op := e.src[e.pos]
		if op != 'x' && op != 'X' && op != '/' {
			break
		}
		e.pos++
		if err := e.step(); err != nil {
			return 0, err
		}
		rhs, err := e.factor()
		if err != nil {
			return 0, err
		}
		if op == '/' {
			if rhs == 0 {
				return 0, errors.New(errors.ErrCodeUnsupportedMacro, "division by zero in macro expression")
			}
			v /= rhs
		} else {
			v *= rhs
		}
	}
	return v, nil
}

func (e *macroEval) factor() (float64, error) {
	if err := e.step(); err != nil {
		return 0, err
	}
	if e.pos >= len(e.src) {
		return 0, errors.New(errors.ErrCodeUnsupportedMacro, "unexpected end of macro expression %q", e.src)
	}
	switch c := e.src[e.pos]; {
	case c == '-':
		e.pos++
		v, err := e.factor()
		return -v, err
	case c == '(':
		e.pos++
		v, err := e.expr()
		if err != nil {
			return 0, err
		}
		if e.pos >= len(e.src) || e.src[e.pos] != ')' {
			return 0, errors.New(errors.ErrCodeUnsupportedMacro, "unbalanced parenthesis in macro expression %q", e.src)
		}
		e.pos++
		return v, nil
	case c == '$':
		e.pos++
		start := e.pos
		for e.pos < len(e.src) && e.src[e.pos] >= '0' && e.src[e.pos] <= '9' {
			e.pos++
		}
		n, err := strconv.Atoi(e.src[start:e.pos])
		if err != nil {
			return 0, errors.New(errors.ErrCodeUnsupportedMacro, "bad macro variable reference in %q", e.src)
		}
		return e.vars[n], nil // unset variables read as 0
	default:
		start := e.pos
		for e.pos < len(e.src) {
			c := e.src[e.pos]
			if (c >= '0' && c <= '9') || c == '.' {
				e.pos++
				continue
			}
			break
		}
		v, err := strconv.ParseFloat(e.src[start:e.pos], 64)
		if err != nil {
			return 0, errors.New(errors.ErrCodeUnsupportedMacro, "bad number in macro expression %q", e.src)
		}
		return v, nil
	}
}
