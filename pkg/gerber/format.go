package gerber

import (
	"fmt"
	"math"
	"strings"

	"github.com/pcbpeek/pcbpeek/pkg/errors"
)

// Unit is the physical unit coordinates are expressed in.
type Unit int

const (
	// UnitUnknown means no MO directive (or G70/G71) was seen yet.
	UnitUnknown Unit = iota
	// UnitMM is millimeters.
	UnitMM
	// UnitInch is inches.
	UnitInch
)

// Scale returns the factor converting a value in this unit to millimeters.
func (u Unit) Scale() float64 {
	if u == UnitInch {
		return 25.4
	}
	return 1
}

func (u Unit) String() string {
	switch u {
	case UnitMM:
		return "mm"
	case UnitInch:
		return "in"
	}
	return "unknown"
}

// ZeroMode is the zero-suppression rule of a coordinate format.
type ZeroMode int

const (
	// SuppressLeading omits leading zeros (FSL, the common case).
	SuppressLeading ZeroMode = iota
	// SuppressTrailing omits trailing zeros (FST).
	SuppressTrailing
	// SuppressNone requires every digit to be present (FSD).
	SuppressNone
)

// Format is the coordinate format established by the FS directive.
// Both axes share the digit counts; files declaring asymmetric X/Y
// formats are rejected by the parser as malformed.
type Format struct {
	IntDigits   int      // digits before the implied decimal point (1..6)
	FracDigits  int      // digits after the implied decimal point (1..6)
	Zeros       ZeroMode // which zeros the encoder omitted
	Incremental bool     // incremental (I) rather than absolute (A) coordinates
}

// Decode converts an encoded coordinate operand to a real value in file
// units. Truncated zeros are restored per the zero-suppression rule
// before dividing by 10^FracDigits. An operand with more digits than
// the declared format allows is a MALFORMED_COMMAND error.
func (f Format) Decode(s string) (float64, error) {
	sign := 1.0
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1.0
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	width := f.IntDigits + f.FracDigits
	if s == "" || len(s) > width {
		return 0, errors.New(errors.ErrCodeMalformedCommand,
			"coordinate %q does not fit format %d.%d", s, f.IntDigits, f.FracDigits)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errors.New(errors.ErrCodeMalformedCommand, "coordinate %q contains non-digit", s)
		}
	}

	switch f.Zeros {
	case SuppressLeading:
		s = strings.Repeat("0", width-len(s)) + s
	case SuppressTrailing:
		s = s + strings.Repeat("0", width-len(s))
	case SuppressNone:
		if len(s) != width {
			return 0, errors.New(errors.ErrCodeMalformedCommand,
				"coordinate %q must have exactly %d digits", s, width)
		}
	}

	var mantissa int64
	for _, r := range s {
		mantissa = mantissa*10 + int64(r-'0')
	}
	return sign * float64(mantissa) / math.Pow10(f.FracDigits), nil
}

// Encode converts a real value in file units back to an encoded operand
// under this format. It is the inverse of Decode up to the declared
// precision and exists mainly so the round-trip property is testable.
func (f Format) Encode(v float64) string {
	width := f.IntDigits + f.FracDigits
	mantissa := int64(math.Round(math.Abs(v) * math.Pow10(f.FracDigits)))

	s := fmt.Sprintf("%0*d", width, mantissa)
	switch f.Zeros {
	case SuppressLeading:
		s = strings.TrimLeft(s, "0")
	case SuppressTrailing:
		s = strings.TrimRight(s, "0")
	}
	if s == "" {
		s = "0"
	}
	if v < 0 {
		s = "-" + s
	}
	return s
}

// Valid reports whether the digit counts are inside the RS-274X range.
func (f Format) Valid() bool {
	return f.IntDigits >= 1 && f.IntDigits <= 6 && f.FracDigits >= 1 && f.FracDigits <= 6
}
