// Package orbit holds the pure two-body calculators: ellipse geometry,
// Kepler period, vis-viva speed and the display policy for derived values.
//
// Lengths handed to the geometry functions are in pixel-space units (see
// package units); the mechanics functions take meters and kilograms.
package orbit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// ErrInvalidEccentricity is returned when an eccentricity falls outside [0, 1).
var ErrInvalidEccentricity = errors.New("eccentricity must be in [0, 1)")

// roundingPlaces is the number of decimals kept on derived pixel-space lengths.
const roundingPlaces = 4

// Shape describes an ellipse by its semi-major axis A, semi-minor axis B and
// focal offset C.
type Shape struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
}

// Eccentricity returns C/A.
func (s Shape) Eccentricity() float64 {
	return EccentricityOf(s.A, s.C)
}

// Periapsis returns the closest distance to the focus, A - C.
func (s Shape) Periapsis() float64 {
	return s.A - s.C
}

// Apoapsis returns the farthest distance from the focus, A + C.
func (s Shape) Apoapsis() float64 {
	return s.A + s.C
}

// FromEccentricity keeps a fixed and derives c = a*e and b = sqrt(a² - c²),
// both rounded to four decimals.
func FromEccentricity(a, e float64) (Shape, error) {
	if math.IsNaN(e) || e < 0 || e >= 1 {
		return Shape{}, fmt.Errorf("eccentricity %v: %w", e, ErrInvalidEccentricity)
	}

	c := math.Min(Round4(a*e), a)
	b := Round4(math.Sqrt(a*a - c*c))

	return Shape{A: a, B: b, C: c}, nil
}

// FromSemiMajorAxis resets the orbit to a circle of radius a.
func FromSemiMajorAxis(a float64) Shape {
	return Shape{A: a, B: a, C: 0}
}

// EccentricityOf returns c/a.
func EccentricityOf(a, c float64) float64 {
	return c / a
}

// Round4 rounds x to four decimal places, half away from zero.
func Round4(x float64) float64 {
	return scalar.Round(x, roundingPlaces)
}
