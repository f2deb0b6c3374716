package orbit

import (
	"math"

	"github.com/illum/orbitsim/pkg/units"
)

const (
	// G is the gravitational constant used throughout the simulator (m³ kg⁻¹ s⁻²).
	G = 6.67e-11
	// SecondsPerYear is a 365-day year.
	SecondsPerYear = 31536000
)

// Quantities are the values derived from an orbit state. They are recomputed
// on every state change.
type Quantities struct {
	PeriodSeconds   float64 `json:"periodSeconds"`
	PeriodYears     float64 `json:"periodYears"`
	MaxSpeedKms     float64 `json:"maxSpeedKms"`
	MinSpeedKms     float64 `json:"minSpeedKms"`
	Eccentricity    float64 `json:"eccentricity"`
	SemiMajorAxisAU float64 `json:"semiMajorAxisAu"`
	SemiMinorAxisAU float64 `json:"semiMinorAxisAu"`
}

// MassKg combines a mantissa and a base-10 exponent into kilograms.
func MassKg(mantissa float64, exponent int) float64 {
	return mantissa * math.Pow(10, float64(exponent))
}

// Period returns the orbital period in seconds from Kepler's third law,
// neglecting the orbiting body's mass.
func Period(aMeters, massKg float64) float64 {
	return math.Sqrt(4 * math.Pi * math.Pi * math.Pow(aMeters, 3) / (G * massKg))
}

// SpeedAtDistance returns the orbital speed in m/s at distance r from the
// central mass, by the vis-viva equation. r must be positive.
func SpeedAtDistance(rMeters, aMeters, massKg float64) float64 {
	return math.Sqrt(G * massKg * (2/rMeters - 1/aMeters))
}

// Compute derives the orbital quantities for a pixel-space shape around a
// central mass in kilograms.
func Compute(s Shape, massKg float64) Quantities {
	aMeters := units.PixelsToMeters(s.A)
	period := Period(aMeters, massKg)

	return Quantities{
		PeriodSeconds:   period,
		PeriodYears:     period / SecondsPerYear,
		MaxSpeedKms:     SpeedAtDistance(units.PixelsToMeters(s.Periapsis()), aMeters, massKg) / 1000,
		MinSpeedKms:     SpeedAtDistance(units.PixelsToMeters(s.Apoapsis()), aMeters, massKg) / 1000,
		Eccentricity:    s.Eccentricity(),
		SemiMajorAxisAU: units.PixelsToAU(s.A),
		SemiMinorAxisAU: units.PixelsToAU(s.B),
	}
}
