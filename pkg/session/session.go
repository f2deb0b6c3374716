// Package session owns the editable orbit state. Every edit, sample tick and
// snapshot is serialized by one lock, and each accepted edit recomputes the
// derived quantities and notifies subscribers before the lock is released.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/illum/orbitsim/pkg/event"
	"github.com/illum/orbitsim/pkg/logging"
	"github.com/illum/orbitsim/pkg/orbit"
	"github.com/illum/orbitsim/pkg/sampler"
	"github.com/illum/orbitsim/pkg/units"
	"github.com/illum/orbitsim/pkg/validation"
)

var (
	// ErrInvalidInput wraps every edit rejected at the session boundary.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownPreset is returned by LoadPreset for names with no preset.
	ErrUnknownPreset = errors.New("unknown preset")
	// ErrStaleSample is returned for a tick produced for an older geometry.
	ErrStaleSample = errors.New("stale sample")
)

// Edit kinds, used as the event cause and in rejection reports.
const (
	EditEccentricity  = "eccentricity"
	EditSemiMajorAxis = "semi_major_axis"
	EditCentralMass   = "central_mass"
	EditPreset        = "preset"
)

// Session is the single owner of the orbit state.
//
// Event handlers run synchronously while the session lock is held; they must
// not call back into the session.
type Session struct {
	EventBus *event.Bus

	logger     *logging.Logger
	mu         sync.Mutex
	state      State
	quantities orbit.Quantities
	epoch      uint64
	mapper     *sampler.RateMapper
}

// New creates a session in the default state. A nil bus or logger is
// replaced by a private bus or a discarding logger.
func New(bus *event.Bus, logger *logging.Logger) *Session {
	if bus == nil {
		bus = event.NewEventBus()
	}
	if logger == nil {
		logger = logging.Discard()
	}

	s := &Session{
		EventBus: bus,
		logger:   logger.With("component", "session"),
		state:    DefaultState(),
		epoch:    1,
		mapper:   sampler.NewRateMapper(),
	}
	s.recompute()
	return s
}

// Snapshot returns a consistent copy of the state and its quantities.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Epoch:      s.epoch,
		State:      s.state,
		Quantities: s.quantities,
		Labels:     s.quantities.Labels(),
		Sampling:   s.mapper.State() == sampler.Sampling,
	}
}

// Epoch returns the current geometry epoch.
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Sampling reports whether the rate mapper accepts ticks.
func (s *Session) Sampling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapper.State() == sampler.Sampling
}

// StartSampling begins a sampling cycle for the current geometry.
func (s *Session) StartSampling() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mapper.State() == sampler.Sampling {
		return nil
	}
	if err := s.mapper.Start(); err != nil {
		return err
	}
	s.logger.Info(context.Background(), "sampling started", "epoch", s.epoch)
	s.EventBus.Publish(event.NewSamplingEvent(event.SamplingStarted, s, s.epoch))
	return nil
}

// StopSampling ends the sampling cycle. Ticks are refused until the next
// StartSampling.
func (s *Session) StopSampling() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mapper.State() != sampler.Sampling {
		return
	}
	s.mapper.Stop()
	s.logger.Info(context.Background(), "sampling stopped", "epoch", s.epoch)
	s.EventBus.Publish(event.NewSamplingEvent(event.SamplingStopped, s, s.epoch))
}

// SetEccentricity keeps the semi-major axis and derives the focal offset and
// semi-minor axis from e.
func (s *Session) SetEccentricity(e float64) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validation.ValidateEccentricity(e); err != nil {
		return s.snapshotLocked(), s.reject(EditEccentricity, err)
	}
	shape, err := orbit.FromEccentricity(s.state.SemiMajorAxis, e)
	if err != nil {
		return s.snapshotLocked(), s.reject(EditEccentricity, err)
	}

	s.apply(EditEccentricity, s.state.withShape(shape))
	return s.snapshotLocked(), nil
}

// SetSemiMajorAxisAU resets the orbit to a circle of the given radius in AU.
// Non-positive or non-finite values are rejected and leave the state as is.
func (s *Session) SetSemiMajorAxisAU(au float64) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validation.ValidateSemiMajorAxisAU(au); err != nil {
		return s.snapshotLocked(), s.reject(EditSemiMajorAxis, err)
	}

	s.apply(EditSemiMajorAxis, s.state.withShape(orbit.FromSemiMajorAxis(units.AUToPixels(au))))
	return s.snapshotLocked(), nil
}

// SetSemiMajorAxisText applies the semi-major axis field as typed. Text that
// is not a positive number is rejected like any other invalid axis.
func (s *Session) SetSemiMajorAxisText(text string) (Snapshot, error) {
	au, err := validation.ParseSemiMajorAxisAU(text)
	if err == nil {
		return s.SetSemiMajorAxisAU(au)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), s.reject(EditSemiMajorAxis, err)
}

// SetCentralMass sets the central mass to mantissa × 10^exponent kilograms.
func (s *Session) SetCentralMass(mantissa float64, exponent int) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validation.ValidateCentralMass(mantissa, exponent); err != nil {
		return s.snapshotLocked(), s.reject(EditCentralMass, err)
	}

	next := s.state
	next.MassMantissa = mantissa
	next.MassExponent = exponent
	s.apply(EditCentralMass, next)
	return s.snapshotLocked(), nil
}

// SetCentralMassText applies the mass fields as typed. Characters other than
// digits and '.' are dropped from the mantissa and characters other than
// digits from the exponent before parsing.
func (s *Session) SetCentralMassText(mantissaText, exponentText string) (Snapshot, error) {
	mantissa, err := validation.ParseMantissa(mantissaText)
	if err == nil {
		var exponent int
		if exponent, err = validation.ParseExponent(exponentText); err == nil {
			return s.SetCentralMass(mantissa, exponent)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), s.reject(EditCentralMass, err)
}

// LoadPreset replaces the whole state with a named preset.
func (s *Session) LoadPreset(name string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	preset, err := LookupPreset(name)
	if err != nil {
		s.publishRejection(EditPreset, err)
		return s.snapshotLocked(), err
	}
	next, err := preset.State()
	if err != nil {
		return s.snapshotLocked(), s.reject(EditPreset, err)
	}

	s.apply(EditPreset+":"+preset.Name, next)
	return s.snapshotLocked(), nil
}

// OnSampleTick maps a sampled animation position to a rate sample and
// publishes it. Positions tagged with an epoch other than the current one
// are refused with ErrStaleSample; an untagged position is always accepted.
func (s *Session) OnSampleTick(pos sampler.Position) (sampler.RateSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos.Epoch != 0 && pos.Epoch != s.epoch {
		return sampler.RateSample{}, fmt.Errorf("%w: epoch %d, current %d", ErrStaleSample, pos.Epoch, s.epoch)
	}

	sample, err := s.mapper.Tick(pos)
	if err != nil {
		return sampler.RateSample{}, err
	}

	s.EventBus.Publish(event.NewRateEvent(s, s.epoch, sample.SpeedKms, sample.RateRatio, sample.DistanceMeters))
	return sample, nil
}

// apply installs next, recomputes and notifies. The caller holds the lock.
func (s *Session) apply(cause string, next State) {
	wasSampling := s.mapper.State() == sampler.Sampling
	s.mapper.Stop()

	s.state = next
	s.epoch++
	s.recompute()

	if wasSampling {
		if err := s.mapper.Start(); err != nil {
			s.logger.Error(context.Background(), "sampling not resumed", err, "epoch", s.epoch)
		}
	}

	s.logger.Debug(context.Background(), "state changed",
		"cause", cause,
		"epoch", s.epoch,
		"eccentricity", s.quantities.Eccentricity,
		"period_years", s.quantities.PeriodYears,
	)
	s.EventBus.Publish(event.NewStateEvent(s, s.epoch, cause, s.state.Shape(), s.state.MassKg(), s.quantities))
}

func (s *Session) recompute() {
	massKg := s.state.MassKg()
	s.quantities = orbit.Compute(s.state.Shape(), massKg)
	s.mapper.Configure(s.state.Shape(), massKg, s.quantities)
}

// reject reports a refused edit and returns it wrapped in ErrInvalidInput.
// The caller holds the lock.
func (s *Session) reject(edit string, cause error) error {
	err := fmt.Errorf("%s: %w: %w", edit, ErrInvalidInput, cause)
	s.publishRejection(edit, err)
	return err
}

func (s *Session) publishRejection(edit string, err error) {
	s.logger.Warn(context.Background(), "edit rejected", "edit", edit, "error", err.Error())
	s.EventBus.Publish(event.NewRejectedEvent(s, edit, err))
}
