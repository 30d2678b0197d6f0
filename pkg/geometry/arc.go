package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/pcbpeek/pcbpeek/pkg/errors"
)

// arcRadiusTol is the tolerance (mm) for agreeing start/end radii when
// validating candidate arc centers.
const arcRadiusTol = 1e-4

// solveArc resolves an arc from start to end with the given center
// offset, honoring direction and quadrant mode. The returned Arc has a
// signed sweep (positive = counterclockwise).
//
// In multi-quadrant mode the offset is taken literally and a
// zero-length arc is a full circle. In single-quadrant mode the offset
// signs are unspecified by the format; of the four candidate centers
// the one producing a sweep of at most 90 degrees with both endpoints
// on the circle is chosen. No valid candidate is an INVALID_ARC error.
func solveArc(start, end Point, offset Point, clockwise, multi bool, width float64, dark bool) (Arc, error) {
	if multi {
		center := Point{start.X + offset.X, start.Y + offset.Y}
		radius := math.Hypot(start.X-center.X, start.Y-center.Y)
		if radius == 0 {
			return Arc{}, errors.New(errors.ErrCodeInvalidArc, "arc with zero radius")
		}
		a0 := math.Atan2(start.Y-center.Y, start.X-center.X)
		a1 := math.Atan2(end.Y-center.Y, end.X-center.X)
		sweep := normalizeSweep(a1-a0, clockwise)
		if sweep == 0 {
			// Same start and end point: a full circle.
			sweep = 2 * math.Pi
			if clockwise {
				sweep = -sweep
			}
		}
		return Arc{Center: center, Radius: radius, Start: a0, Sweep: sweep, Width: width, Polarity: dark}, nil
	}

	best := Arc{}
	found := false
	for _, sx := range []float64{1, -1} {
		for _, sy := range []float64{1, -1} {
			center := Point{start.X + sx*offset.X, start.Y + sy*offset.Y}
			r0 := math.Hypot(start.X-center.X, start.Y-center.Y)
			r1 := math.Hypot(end.X-center.X, end.Y-center.Y)
			if r0 == 0 || !scalar.EqualWithinAbsOrRel(r0, r1, arcRadiusTol, 1e-6) {
				continue
			}
			a0 := math.Atan2(start.Y-center.Y, start.X-center.X)
			a1 := math.Atan2(end.Y-center.Y, end.X-center.X)
			sweep := normalizeSweep(a1-a0, clockwise)
			if math.Abs(sweep) > math.Pi/2+1e-9 {
				continue
			}
			if !found || math.Abs(sweep) < math.Abs(best.Sweep) {
				best = Arc{Center: center, Radius: r0, Start: a0, Sweep: sweep, Width: width, Polarity: dark}
				found = true
			}
		}
	}
	if !found {
		return Arc{}, errors.New(errors.ErrCodeInvalidArc, "no valid arc center for offset (%g,%g)", offset.X, offset.Y)
	}
	return best, nil
}

// normalizeSweep maps an angle difference onto the direction's sweep
// range: [0, 2pi) counterclockwise, (-2pi, 0] clockwise.
func normalizeSweep(d float64, clockwise bool) float64 {
	for d < 0 {
		d += 2 * math.Pi
	}
	for d >= 2*math.Pi {
		d -= 2 * math.Pi
	}
	if clockwise && d > 0 {
		d -= 2 * math.Pi
	}
	return d
}
