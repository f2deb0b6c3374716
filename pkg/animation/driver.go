package animation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/illum/orbitsim/pkg/event"
	"github.com/illum/orbitsim/pkg/logging"
	"github.com/illum/orbitsim/pkg/sampler"
	"github.com/illum/orbitsim/pkg/session"
)

// Driver couples a session to a path transition. Each step advances the
// transition, samples the session at the new position and applies the
// returned rate ratio as the next playback rate.
type Driver struct {
	Session    *session.Session
	Transition *PathTransition

	logger *logging.Logger
	sub    *event.Subscription

	mu     sync.Mutex
	clocks map[*Clock]struct{}
}

// NewDriver installs the session's current path on t and keeps it in sync
// with accepted edits.
func NewDriver(s *session.Session, t *PathTransition, logger *logging.Logger) *Driver {
	if logger == nil {
		logger = logging.Discard()
	}
	d := &Driver{
		Session:    s,
		Transition: t,
		logger:     logger.With("component", "animation"),
		clocks:     make(map[*Clock]struct{}),
	}

	snap := s.Snapshot()
	t.SetPath(snap.State.Shape(), snap.Epoch)

	// Runs under the session lock; only the transition is touched.
	d.sub = s.EventBus.Subscribe(event.StateChanged, func(e event.Event) {
		se, ok := e.(*event.StateEvent)
		if !ok {
			return
		}
		if t.Matches(se.Shape) {
			t.Retag(se.Epoch)
			return
		}
		t.SetPath(se.Shape, se.Epoch)
	})
	return d
}

// Step advances the animation by dt and applies one rate sample.
func (d *Driver) Step(dt time.Duration) (sampler.RateSample, error) {
	d.Transition.Advance(dt)
	pos := d.Transition.Position()

	sample, err := d.Session.OnSampleTick(pos)
	switch {
	case errors.Is(err, session.ErrStaleSample):
		// An edit landed between Position and the tick; the next step
		// samples the new path.
		d.logger.Debug(context.Background(), "stale sample dropped", "error", err.Error())
		return sampler.RateSample{}, err
	case err != nil:
		return sampler.RateSample{}, err
	}

	if !d.Transition.SetRate(sample.RateRatio, pos.Epoch) {
		d.logger.Debug(context.Background(), "rate for replaced path dropped", "epoch", pos.Epoch)
	}
	return sample, nil
}

// Run starts sampling and steps on every tick of clock until ctx is done.
// Sampling is stopped before the returned channel closes.
func (d *Driver) Run(ctx context.Context, clock *Clock) (<-chan struct{}, error) {
	if err := d.Session.StartSampling(); err != nil {
		return nil, err
	}

	d.listen(clock)

	ticking := clock.Run(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ticking
		d.Session.StopSampling()
		d.logger.Info(context.Background(), "animation stopped", "elapsed", clock.Elapsed().String())
	}()
	return done, nil
}

// listen registers the step callback on clock once, however often Run is
// called with it.
func (d *Driver) listen(clock *Clock) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.clocks[clock]; ok {
		return
	}
	d.clocks[clock] = struct{}{}

	clock.AddListener(func(dt time.Duration) {
		if _, err := d.Step(dt); err != nil && !errors.Is(err, session.ErrStaleSample) {
			d.logger.Debug(context.Background(), "step skipped", "error", err.Error())
		}
	})
}

// Close detaches the driver from the session's events.
func (d *Driver) Close() {
	if d.sub != nil {
		d.sub.Cancel()
		d.sub = nil
	}
}
