package animation

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/illum/orbitsim/pkg/orbit"
	"github.com/illum/orbitsim/pkg/physics"
	"github.com/illum/orbitsim/pkg/sampler"
	"gonum.org/v1/gonum/floats"
)

// DefaultCycle is the time one lap takes at rate 1.
const DefaultCycle = time.Second

// arcSamples is the resolution of the arc-length table.
const arcSamples = 720

// PathTransition moves a point around an ellipse at constant speed along the
// path, scaled by a playback rate. Progress 0 is the periapsis point.
type PathTransition struct {
	mu       sync.Mutex
	cycle    time.Duration
	rate     float64
	progress float64
	epoch    uint64
	path     physics.Ellipse
	// arc[i] is the fraction of the perimeter covered at angle i·2π/arcSamples.
	arc []float64
}

// NewPathTransition creates a transition with the given cycle duration and
// no path installed.
func NewPathTransition(cycle time.Duration) *PathTransition {
	if cycle <= 0 {
		cycle = DefaultCycle
	}
	return &PathTransition{cycle: cycle, rate: 1}
}

// SetPath installs a new ellipse for epoch and restarts the lap from
// periapsis at rate 1.
func (p *PathTransition) SetPath(shape orbit.Shape, epoch uint64) {
	path := physics.Ellipse{SemiMajor: shape.A, SemiMinor: shape.B, FocalOffset: shape.C}
	arc := arcTable(path)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.path = path
	p.arc = arc
	p.epoch = epoch
	p.progress = 0
	p.rate = 1
}

// Retag moves the transition to a new epoch without disturbing its progress,
// for edits that leave the path unchanged.
func (p *PathTransition) Retag(epoch uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.epoch = epoch
}

// Matches reports whether shape is the installed path.
func (p *PathTransition) Matches(shape orbit.Shape) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path.SemiMajor == shape.A && p.path.SemiMinor == shape.B && p.path.FocalOffset == shape.C
}

// SetRate sets the playback rate computed for the path of the given epoch.
// It reports false, leaving the rate alone, when rate is non-positive or NaN
// or when a newer path has been installed since.
func (p *PathTransition) SetRate(rate float64, epoch uint64) bool {
	if !(rate > 0) {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.epoch {
		return false
	}
	p.rate = rate
	return true
}

// Rate returns the playback rate.
func (p *PathTransition) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// Progress returns the fraction of the current lap completed, in [0, 1).
func (p *PathTransition) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Advance moves the point by dt of wall time at the current rate.
func (p *PathTransition) Advance(dt time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.progress += dt.Seconds() / p.cycle.Seconds() * p.rate
	p.progress -= math.Floor(p.progress)
}

// Position returns the current point normalized by the semi-major axis and
// relative to the ellipse center, tagged with the path's epoch.
func (p *PathTransition) Position() sampler.Position {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !(p.path.SemiMajor > 0) {
		return sampler.Position{Epoch: p.epoch}
	}

	pt := p.path.PointAt(p.angleAt(p.progress)).Scale(1 / p.path.SemiMajor)
	return sampler.Position{X: pt.X, Y: pt.Y, Epoch: p.epoch}
}

// angleAt inverts the arc-length table. The caller holds the lock.
func (p *PathTransition) angleAt(fraction float64) float64 {
	step := 2 * math.Pi / arcSamples

	i := sort.SearchFloat64s(p.arc, fraction)
	if i == 0 {
		return 0
	}
	if i >= len(p.arc) {
		return 2 * math.Pi
	}

	lo, hi := p.arc[i-1], p.arc[i]
	t := 0.0
	if hi > lo {
		t = (fraction - lo) / (hi - lo)
	}
	return (float64(i-1) + t) * step
}

// arcTable returns cumulative perimeter fractions at evenly spaced angles.
func arcTable(e physics.Ellipse) []float64 {
	step := 2 * math.Pi / arcSamples
	segments := make([]float64, arcSamples+1)

	prev := e.PointAt(0)
	for i := 1; i <= arcSamples; i++ {
		next := e.PointAt(float64(i) * step)
		segments[i] = prev.Distance(next)
		prev = next
	}

	arc := floats.CumSum(make([]float64, len(segments)), segments)
	total := arc[len(arc)-1]
	if total > 0 {
		floats.Scale(1/total, arc)
	}
	return arc
}
