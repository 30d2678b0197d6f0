// Package gerber implements a single-pass parser for RS-274X (Gerber)
// PCB fabrication files.
//
// The parser tokenizes a file's ASCII command stream into a sequence of
// typed commands. Coordinates are decoded into file units using the
// declared format specification; interpretation into millimeter geometry
// is the job of the geometry package.
//
// The parser validates the stream as it goes: coordinates before the
// format or unit directive, selection of undefined apertures, and
// operands violating the declared digit format are reported as coded
// errors (see pkg/errors). All parser state (format, unit, defined
// apertures) is local to one Parse call, which makes parallel per-file
// parsing safe.
package gerber

// Command is a single parsed Gerber command.
//
// The concrete types are SetUnit, SetFormat, DefineAperture,
// SelectAperture, SetInterpolation, SetQuadrantMode, SetPolarity,
// RegionStart, RegionEnd, Operation and EndOfFile.
type Command interface {
	isCommand()
}

// Interpolation selects how draw operations move between points.
type Interpolation int

const (
	// InterpLinear draws straight segments (G01).
	InterpLinear Interpolation = iota
	// InterpClockwise draws clockwise circular arcs (G02).
	InterpClockwise
	// InterpCounterClockwise draws counterclockwise circular arcs (G03).
	InterpCounterClockwise
)

// OpKind is the kind of a coordinate operation.
type OpKind int

const (
	// OpDraw exposes a stroke from the current point to the target (D01).
	OpDraw OpKind = iota
	// OpMove relocates the current point without exposure (D02).
	OpMove
	// OpFlash stamps the selected aperture at the target (D03).
	OpFlash
)

// Coord carries the decoded operands of an operation, in file units.
// Omitted axes keep the current point's value; the Has flags record
// which operands were present in the source word.
type Coord struct {
	X, Y float64 // target point
	I, J float64 // arc center offset from the start point

	HasX, HasY bool
	HasI, HasJ bool
}

// SetUnit sets the file unit (MO directive, or deprecated G70/G71).
type SetUnit struct {
	Unit Unit
}

// SetFormat establishes the coordinate format (FS directive).
type SetFormat struct {
	Format Format
}

// DefineAperture registers an aperture under a D-code number (AD
// directive). Macro-template apertures arrive here already evaluated
// into concrete figures.
type DefineAperture struct {
	Number int
	Shape  Shape
}

// SelectAperture makes a previously defined aperture current.
type SelectAperture struct {
	Number int
}

// SetInterpolation switches the draw interpolation mode (G01/G02/G03).
type SetInterpolation struct {
	Mode Interpolation
}

// SetQuadrantMode switches between single-quadrant (G74) and
// multi-quadrant (G75) arc interpretation.
type SetQuadrantMode struct {
	Multi bool
}

// SetPolarity switches the layer polarity (LP directive). Dark
// primitives add to the image, clear primitives subtract.
type SetPolarity struct {
	Dark bool
}

// RegionStart begins region (contour fill) mode (G36).
type RegionStart struct{}

// RegionEnd ends region mode (G37).
type RegionEnd struct{}

// Operation is a coordinate operation: draw, move or flash.
type Operation struct {
	Kind  OpKind
	Coord Coord
}

// EndOfFile marks the end of the command stream (M02).
type EndOfFile struct{}

func (SetUnit) isCommand()          {}
func (SetFormat) isCommand()        {}
func (DefineAperture) isCommand()   {}
func (SelectAperture) isCommand()   {}
func (SetInterpolation) isCommand() {}
func (SetQuadrantMode) isCommand()  {}
func (SetPolarity) isCommand()      {}
func (RegionStart) isCommand()      {}
func (RegionEnd) isCommand()        {}
func (Operation) isCommand()        {}
func (EndOfFile) isCommand()        {}
