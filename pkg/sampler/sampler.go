// Package sampler maps the animated body's position to a playback-rate
// multiplier. Each tick derives the distance from the focus, evaluates the
// vis-viva speed there and normalizes it against the periapsis speed, so the
// animation slows near apoapsis and speeds up near periapsis.
package sampler

import (
	"errors"
	"fmt"
	"math"

	"github.com/illum/orbitsim/pkg/orbit"
	"github.com/illum/orbitsim/pkg/physics"
	"github.com/illum/orbitsim/pkg/units"
)

var (
	// ErrDegenerateOrbit is returned when sampling is started on an orbit
	// whose periapsis speed is not positive.
	ErrDegenerateOrbit = errors.New("degenerate orbit: max speed must be positive")
	// ErrNotSampling is returned by Tick while the mapper is idle.
	ErrNotSampling = errors.New("sampler is idle")
)

// State is the mapper's lifecycle state
type State int

const (
	// Idle means no sampling cycle is active.
	Idle State = iota
	// Sampling means ticks are accepted.
	Sampling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sampling:
		return "sampling"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Position is a sampled position expressed as a fraction of the path's
// bounding radius, relative to the ellipse center. Epoch identifies the
// orbit geometry the position was produced for; zero means unchecked.
type Position struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Epoch uint64  `json:"epoch,omitempty"`
}

// Vector returns the position as a plain vector.
func (p Position) Vector() physics.Vector2D {
	return physics.Vector2D{X: p.X, Y: p.Y}
}

// RateSample is the output of one tick.
type RateSample struct {
	SpeedKms       float64 `json:"speedKms"`
	RateRatio      float64 `json:"rateRatio"`
	DistanceMeters float64 `json:"distanceMeters"`
}

// RateMapper is the speed-to-playback-rate state machine. It is not safe for
// concurrent use; the owning session serializes access.
type RateMapper struct {
	state    State
	shape    orbit.Shape
	massKg   float64
	minSpeed float64
	maxSpeed float64
}

// NewRateMapper creates an idle mapper with no geometry installed.
func NewRateMapper() *RateMapper {
	return &RateMapper{state: Idle}
}

// State returns the current lifecycle state.
func (m *RateMapper) State() State {
	return m.state
}

// Configure installs new geometry and extremal speeds. It does not change
// the lifecycle state.
func (m *RateMapper) Configure(shape orbit.Shape, massKg float64, q orbit.Quantities) {
	m.shape = shape
	m.massKg = massKg
	m.minSpeed = q.MinSpeedKms
	m.maxSpeed = q.MaxSpeedKms
}

// Start moves the mapper from Idle to Sampling.
func (m *RateMapper) Start() error {
	if !(m.maxSpeed > 0) || !(m.shape.A > 0) {
		return ErrDegenerateOrbit
	}
	m.state = Sampling
	return nil
}

// Stop returns the mapper to Idle. Ticks are refused until Start is called
// again.
func (m *RateMapper) Stop() {
	m.state = Idle
}

// Tick converts a normalized position into a speed and a rate ratio in (0, 1].
func (m *RateMapper) Tick(pos Position) (RateSample, error) {
	if m.state != Sampling {
		return RateSample{}, ErrNotSampling
	}

	a := m.shape.A
	path := physics.Ellipse{SemiMajor: a, SemiMinor: m.shape.B, FocalOffset: m.shape.C}
	r := units.PixelsToMeters(path.FocusDistance(pos.Vector().Scale(a)))

	speed := orbit.SpeedAtDistance(r, units.PixelsToMeters(a), m.massKg) / 1000
	clamped := clamp(speed, m.minSpeed, m.maxSpeed)

	return RateSample{
		SpeedKms:       clamped,
		RateRatio:      clamped / m.maxSpeed,
		DistanceMeters: r,
	}, nil
}

// clamp bounds v to [lo, hi]. NaN, which vis-viva yields for r beyond 2a,
// maps to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
