package session

import (
	"github.com/illum/orbitsim/pkg/orbit"
	"github.com/illum/orbitsim/pkg/units"
)

// Default central mass, the Sun.
const (
	DefaultMassMantissa = 1.989
	DefaultMassExponent = 30
)

// State is the editable orbit configuration. Lengths are pixel-space units.
type State struct {
	SemiMajorAxis float64 `json:"semiMajorAxis"`
	SemiMinorAxis float64 `json:"semiMinorAxis"`
	FocalOffset   float64 `json:"focalOffset"`
	MassMantissa  float64 `json:"massMantissa"`
	MassExponent  int     `json:"massExponent"`
}

// DefaultState is a circular one-AU orbit around one solar mass.
func DefaultState() State {
	return State{
		SemiMajorAxis: units.MaxPixels,
		SemiMinorAxis: units.MaxPixels,
		FocalOffset:   0,
		MassMantissa:  DefaultMassMantissa,
		MassExponent:  DefaultMassExponent,
	}
}

// Shape returns the ellipse part of the state.
func (s State) Shape() orbit.Shape {
	return orbit.Shape{A: s.SemiMajorAxis, B: s.SemiMinorAxis, C: s.FocalOffset}
}

// withShape returns a copy of s carrying the given ellipse.
func (s State) withShape(shape orbit.Shape) State {
	s.SemiMajorAxis = shape.A
	s.SemiMinorAxis = shape.B
	s.FocalOffset = shape.C
	return s
}

// Eccentricity returns c/a.
func (s State) Eccentricity() float64 {
	return orbit.EccentricityOf(s.SemiMajorAxis, s.FocalOffset)
}

// MassKg returns mantissa × 10^exponent.
func (s State) MassKg() float64 {
	return orbit.MassKg(s.MassMantissa, s.MassExponent)
}

// Snapshot is a consistent copy of the session taken under its lock.
type Snapshot struct {
	Epoch      uint64           `json:"epoch"`
	State      State            `json:"state"`
	Quantities orbit.Quantities `json:"quantities"`
	Labels     orbit.Labels     `json:"labels"`
	Sampling   bool             `json:"sampling"`
}
