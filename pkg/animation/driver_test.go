package animation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/illum/orbitsim/pkg/sampler"
	"github.com/illum/orbitsim/pkg/session"
)

func newEarthDriver(t *testing.T) *Driver {
	t.Helper()

	s := session.New(nil, nil)
	if _, err := s.LoadPreset("earth"); err != nil {
		t.Fatal(err)
	}
	d := NewDriver(s, NewPathTransition(time.Second), nil)
	t.Cleanup(d.Close)
	return d
}

func TestDriver_StepRequiresSampling(t *testing.T) {
	d := newEarthDriver(t)

	if _, err := d.Step(10 * time.Millisecond); !errors.Is(err, sampler.ErrNotSampling) {
		t.Errorf("Step() while idle error = %v, want ErrNotSampling", err)
	}
}

func TestDriver_StepFeedsRateBack(t *testing.T) {
	d := newEarthDriver(t)
	if err := d.Session.StartSampling(); err != nil {
		t.Fatal(err)
	}

	q := d.Session.Snapshot().Quantities
	for i := 0; i < 120; i++ {
		sample, err := d.Step(10 * time.Millisecond)
		if err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		if sample.SpeedKms < q.MinSpeedKms || sample.SpeedKms > q.MaxSpeedKms {
			t.Fatalf("speed %v outside [%v, %v]", sample.SpeedKms, q.MinSpeedKms, q.MaxSpeedKms)
		}
		if d.Transition.Rate() != sample.RateRatio {
			t.Fatalf("transition rate %v, want %v", d.Transition.Rate(), sample.RateRatio)
		}
	}
}

func TestDriver_EditResetsPath(t *testing.T) {
	d := newEarthDriver(t)
	if err := d.Session.StartSampling(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if _, err := d.Step(20 * time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}

	snap, err := d.Session.SetEccentricity(0.6)
	if err != nil {
		t.Fatal(err)
	}
	if d.Transition.Progress() != 0 {
		t.Errorf("Progress() = %v after geometry edit, want 0", d.Transition.Progress())
	}
	if !d.Transition.Matches(snap.State.Shape()) {
		t.Error("transition path not updated")
	}
	if got := d.Transition.Position().Epoch; got != snap.Epoch {
		t.Errorf("transition epoch = %d, want %d", got, snap.Epoch)
	}
	if _, err := d.Step(10 * time.Millisecond); err != nil {
		t.Errorf("Step() after edit error = %v", err)
	}
}

func TestDriver_MassEditKeepsProgress(t *testing.T) {
	d := newEarthDriver(t)
	if err := d.Session.StartSampling(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Step(100 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	before := d.Transition.Progress()

	snap, err := d.Session.SetCentralMass(2, 30)
	if err != nil {
		t.Fatal(err)
	}
	if d.Transition.Progress() != before {
		t.Errorf("Progress() = %v, want %v kept across a mass edit", d.Transition.Progress(), before)
	}
	if got := d.Transition.Position().Epoch; got != snap.Epoch {
		t.Errorf("transition epoch = %d, want %d", got, snap.Epoch)
	}
}

func TestDriver_RunStopsSampling(t *testing.T) {
	d := newEarthDriver(t)
	clock := NewClock(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done, err := d.Run(ctx, clock)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !d.Session.Sampling() {
		t.Error("Run() should start sampling")
	}

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not finish")
	}
	if d.Session.Sampling() {
		t.Error("sampling should stop when Run finishes")
	}
	if clock.Elapsed() == 0 {
		t.Error("clock never ticked")
	}
}

func TestDriver_RunTwiceStepsOnce(t *testing.T) {
	d := newEarthDriver(t)
	clock := NewClock(time.Millisecond)

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		done, err := d.Run(ctx, clock)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		<-done
	}

	if err := d.Session.StartSampling(); err != nil {
		t.Fatal(err)
	}
	start, rate := d.Transition.Progress(), d.Transition.Rate()
	clock.Step(1)

	if got, want := d.Transition.Progress()-start, 0.001*rate; math.Abs(got-want) > 1e-9 {
		t.Errorf("one tick advanced progress by %v, want %v", got, want)
	}
}
