package gerber

import (
	"strconv"
	"strings"

	"github.com/pcbpeek/pcbpeek/pkg/errors"
)

// Limits caps parser resource use. Gerber content is attacker
// influenceable, so both the command count and the macro evaluation
// budget are bounded; exceeding either fails the file, not the batch.
type Limits struct {
	MaxCommands   int
	MaxMacroSteps int
}

// DefaultLimits returns the standard parser limits.
func DefaultLimits() Limits {
	return Limits{
		MaxCommands:   500_000,
		MaxMacroSteps: 10_000,
	}
}

// Parse scans a Gerber file into its command sequence.
//
// The scan is a single pass: words terminate at '*', extended blocks
// are bracketed by '%'. Parser state (format, unit, aperture table,
// modal operation code) lives entirely in the call frame.
func Parse(data []byte, limits Limits) ([]Command, error) {
	if limits.MaxCommands <= 0 {
		limits = DefaultLimits()
	}
	p := &parser{
		src:       string(data),
		limits:    limits,
		apertures: make(map[int]Shape),
		macros:    make(map[string]*MacroTemplate),
	}
	return p.run()
}

type parser struct {
	src    string
	pos    int
	limits Limits

	format    Format
	fsSeen    bool
	unit      Unit
	apertures map[int]Shape
	macros    map[string]*MacroTemplate

	lastOp    OpKind
	lastOpSet bool

	cmds []Command
}

func (p *parser) run() ([]Command, error) {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			p.pos++
		case c == '%':
			if err := p.extendedBlock(); err != nil {
				return nil, err
			}
		default:
			word, ok := p.readWord()
			if !ok {
				// Trailing junk after the last '*' is ignored.
				return p.cmds, nil
			}
			done, err := p.word(word)
			if err != nil {
				return nil, err
			}
			if done {
				return p.cmds, nil
			}
		}
	}
	return p.cmds, nil
}

// readWord consumes up to and including the next '*'.
func (p *parser) readWord() (string, bool) {
	end := strings.IndexByte(p.src[p.pos:], '*')
	if end < 0 {
		p.pos = len(p.src)
		return "", false
	}
	word := strings.TrimSpace(p.src[p.pos : p.pos+end])
	p.pos += end + 1
	return word, true
}

func (p *parser) emit(cmd Command) error {
	if len(p.cmds) >= p.limits.MaxCommands {
		return errors.New(errors.ErrCodeRasterLimit, "command count exceeds limit of %d", p.limits.MaxCommands)
	}
	p.cmds = append(p.cmds, cmd)
	return nil
}

// =============================================================================
// Function code words
// =============================================================================

// word handles one '*'-terminated word. Returns done=true on M02.
func (p *parser) word(w string) (bool, error) {
	if w == "" {
		return false, nil
	}
	if strings.HasPrefix(w, "G04") || strings.HasPrefix(w, "G4,") {
		return false, nil // comment
	}
	switch w {
	case "M02", "M00":
		return true, p.emit(EndOfFile{})
	case "M01":
		return false, nil
	}
	// Deprecated G54 aperture-select prefix.
	w = strings.TrimPrefix(w, "G54")

	var (
		coord  Coord
		opCode = -1
	)
	for i := 0; i < len(w); {
		letter := w[i]
		i++
		start := i
		for i < len(w) && (w[i] == '+' || w[i] == '-' || w[i] == '.' || (w[i] >= '0' && w[i] <= '9')) {
			i++
		}
		operand := w[start:i]
		if operand == "" {
			return false, errors.New(errors.ErrCodeMalformedCommand, "letter %q without operand in word %q", string(letter), w)
		}

		switch letter {
		case 'G':
			if err := p.gcode(operand); err != nil {
				return false, err
			}
		case 'X', 'Y', 'I', 'J':
			v, err := p.decodeCoord(operand)
			if err != nil {
				return false, err
			}
			switch letter {
			case 'X':
				coord.X, coord.HasX = v, true
			case 'Y':
				coord.Y, coord.HasY = v, true
			case 'I':
				coord.I, coord.HasI = v, true
			case 'J':
				coord.J, coord.HasJ = v, true
			}
		case 'D':
			n, err := strconv.Atoi(operand)
			if err != nil {
				return false, errors.New(errors.ErrCodeMalformedCommand, "bad D code %q", operand)
			}
			if n >= 10 {
				if _, ok := p.apertures[n]; !ok {
					return false, errors.New(errors.ErrCodeUndefinedAperture, "D%d selected before definition", n)
				}
				if err := p.emit(SelectAperture{Number: n}); err != nil {
					return false, err
				}
			} else {
				opCode = n
			}
		default:
			return false, errors.New(errors.ErrCodeMalformedCommand, "unexpected letter %q in word %q", string(letter), w)
		}
	}

	if !coord.HasX && !coord.HasY && !coord.HasI && !coord.HasJ && opCode < 0 {
		return false, nil
	}

	kind, err := p.opKind(opCode)
	if err != nil {
		return false, err
	}
	return false, p.emit(Operation{Kind: kind, Coord: coord})
}

// opKind resolves an explicit D01/D02/D03 code, falling back to the
// modal operation when the word carried coordinates only.
func (p *parser) opKind(opCode int) (OpKind, error) {
	switch opCode {
	case 1:
		p.lastOp, p.lastOpSet = OpDraw, true
	case 2:
		p.lastOp, p.lastOpSet = OpMove, true
	case 3:
		p.lastOp, p.lastOpSet = OpFlash, true
	case -1:
		if !p.lastOpSet {
			return 0, errors.New(errors.ErrCodeMalformedCommand, "coordinate word without an operation code")
		}
	default:
		return 0, errors.New(errors.ErrCodeMalformedCommand, "unknown operation code D%02d", opCode)
	}
	return p.lastOp, nil
}

func (p *parser) decodeCoord(operand string) (float64, error) {
	if !p.fsSeen {
		return 0, errors.New(errors.ErrCodeFormatNotSet, "coordinate before FS directive")
	}
	if p.unit == UnitUnknown {
		return 0, errors.New(errors.ErrCodeUnitNotSet, "coordinate before MO directive")
	}
	return p.format.Decode(operand)
}

func (p *parser) gcode(operand string) error {
	n, err := strconv.Atoi(operand)
	if err != nil {
		return errors.New(errors.ErrCodeMalformedCommand, "bad G code %q", operand)
	}
	switch n {
	case 1:
		return p.emit(SetInterpolation{Mode: InterpLinear})
	case 2:
		return p.emit(SetInterpolation{Mode: InterpClockwise})
	case 3:
		return p.emit(SetInterpolation{Mode: InterpCounterClockwise})
	case 36:
		return p.emit(RegionStart{})
	case 37:
		return p.emit(RegionEnd{})
	case 74:
		return p.emit(SetQuadrantMode{Multi: false})
	case 75:
		return p.emit(SetQuadrantMode{Multi: true})
	case 70: // deprecated unit-in-inches
		p.unit = UnitInch
		return p.emit(SetUnit{Unit: UnitInch})
	case 71: // deprecated unit-in-millimeters
		p.unit = UnitMM
		return p.emit(SetUnit{Unit: UnitMM})
	case 90: // deprecated absolute mode
		p.format.Incremental = false
		if p.fsSeen {
			return p.emit(SetFormat{Format: p.format})
		}
		return nil
	case 91: // deprecated incremental mode
		p.format.Incremental = true
		if p.fsSeen {
			return p.emit(SetFormat{Format: p.format})
		}
		return nil
	case 55: // deprecated flash prepare, no-op
		return nil
	}
	return errors.New(errors.ErrCodeMalformedCommand, "unknown function code G%02d", n)
}

// =============================================================================
// Extended (%...%) blocks
// =============================================================================

func (p *parser) extendedBlock() error {
	p.pos++ // opening '%'
	end := strings.IndexByte(p.src[p.pos:], '%')
	if end < 0 {
		return errors.New(errors.ErrCodeMalformedCommand, "unterminated extended command block")
	}
	content := p.src[p.pos : p.pos+end]
	p.pos += end + 1

	stmts := make([]string, 0, 4)
	for _, s := range strings.Split(content, "*") {
		if s = strings.TrimSpace(s); s != "" {
			stmts = append(stmts, s)
		}
	}
	if len(stmts) == 0 {
		return nil
	}

	// An AM block owns every statement up to the closing '%'.
	if strings.HasPrefix(stmts[0], "AM") {
		name := strings.TrimPrefix(stmts[0], "AM")
		if name == "" {
			return errors.New(errors.ErrCodeMalformedCommand, "aperture macro without a name")
		}
		p.macros[name] = &MacroTemplate{Name: name, Statements: stmts[1:]}
		return nil
	}

	for _, stmt := range stmts {
		if err := p.extended(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) extended(stmt string) error {
	switch {
	case strings.HasPrefix(stmt, "FS"):
		return p.formatSpec(stmt[2:])
	case strings.HasPrefix(stmt, "MO"):
		switch stmt[2:] {
		case "MM":
			p.unit = UnitMM
		case "IN":
			p.unit = UnitInch
		default:
			return errors.New(errors.ErrCodeMalformedCommand, "unknown unit %q", stmt[2:])
		}
		return p.emit(SetUnit{Unit: p.unit})
	case strings.HasPrefix(stmt, "AD"):
		return p.apertureDef(stmt[2:])
	case strings.HasPrefix(stmt, "LP"):
		switch stmt[2:] {
		case "D":
			return p.emit(SetPolarity{Dark: true})
		case "C":
			return p.emit(SetPolarity{Dark: false})
		}
		return errors.New(errors.ErrCodeMalformedCommand, "unknown polarity %q", stmt[2:])
	}
	// Image-level directives (IP, IN, LN, OF, SR, attributes, ...) do
	// not affect single-layer rendering and are tolerated silently.
	return nil
}

// formatSpec parses the FS directive body, e.g. "LAX25Y25".
func (p *parser) formatSpec(s string) error {
	// A bare "FSAX..." with no zero-suppression character gets leading
	// suppression, the de-facto default legacy exporters assume.
	f := Format{Zeros: SuppressLeading}
	switch {
	case strings.HasPrefix(s, "L"):
		s = s[1:]
	case strings.HasPrefix(s, "T"):
		f.Zeros = SuppressTrailing
		s = s[1:]
	case strings.HasPrefix(s, "D"):
		f.Zeros = SuppressNone
		s = s[1:]
	}
	switch {
	case strings.HasPrefix(s, "A"):
		s = s[1:]
	case strings.HasPrefix(s, "I"):
		f.Incremental = true
		s = s[1:]
	default:
		return errors.New(errors.ErrCodeMalformedCommand, "FS directive missing coordinate mode")
	}
	if len(s) != 6 || s[0] != 'X' || s[3] != 'Y' {
		return errors.New(errors.ErrCodeMalformedCommand, "malformed FS directive %q", s)
	}
	xi, xf := int(s[1]-'0'), int(s[2]-'0')
	yi, yf := int(s[4]-'0'), int(s[5]-'0')
	if xi != yi || xf != yf {
		return errors.New(errors.ErrCodeMalformedCommand, "asymmetric X/Y coordinate formats are not supported")
	}
	f.IntDigits, f.FracDigits = xi, xf
	if !f.Valid() {
		return errors.New(errors.ErrCodeMalformedCommand, "coordinate format %d.%d out of range", xi, xf)
	}
	p.format, p.fsSeen = f, true
	return p.emit(SetFormat{Format: f})
}

// apertureDef parses the AD directive body, e.g. "D10C,0.5X0.2".
func (p *parser) apertureDef(s string) error {
	if !strings.HasPrefix(s, "D") {
		return errors.New(errors.ErrCodeMalformedCommand, "malformed AD directive %q", s)
	}
	s = s[1:]
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	num, err := strconv.Atoi(s[:i])
	if err != nil || num < 10 {
		return errors.New(errors.ErrCodeMalformedCommand, "bad aperture number in AD directive %q", s)
	}

	template := s[i:]
	var rawParams string
	if comma := strings.IndexByte(template, ','); comma >= 0 {
		template, rawParams = template[:comma], template[comma+1:]
	}
	if template == "" {
		return errors.New(errors.ErrCodeMalformedCommand, "aperture D%d has no template", num)
	}

	params, err := parseApertureParams(rawParams)
	if err != nil {
		return err
	}

	var shape Shape
	switch template {
	case "C", "R", "O", "P":
		shape, err = parseStandardAperture(template, params)
		if err != nil {
			return err
		}
	default:
		tpl, ok := p.macros[template]
		if !ok {
			return errors.New(errors.ErrCodeMalformedCommand, "aperture D%d references unknown macro %q", num, template)
		}
		figures, err := tpl.Eval(params, p.limits.MaxMacroSteps)
		if err != nil {
			return err
		}
		shape = Macro{Name: template, Figures: figures}
	}

	p.apertures[num] = shape
	return p.emit(DefineAperture{Number: num, Shape: shape})
}
