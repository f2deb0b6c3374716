// pkg/event/event_test.go
package event

import (
	"errors"
	"sync"
	"testing"

	"github.com/illum/orbitsim/pkg/orbit"
)

func TestNewEventBus_Creation_ReturnsInitializedBus(t *testing.T) {
	bus := NewEventBus()

	if bus == nil {
		t.Fatal("NewEventBus() returned nil")
	}
	if bus.handlers == nil {
		t.Error("handlers map not initialized")
	}
	if bus.nextID != 1 {
		t.Errorf("expected nextID to be 1, got %d", bus.nextID)
	}
}

func TestBaseEvent_GetType_ReturnsCorrectType(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		source    interface{}
	}{
		{"StateChanged event", StateChanged, "session"},
		{"RateSampled event", RateSampled, 42},
		{"Empty source", SamplingStarted, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &BaseEvent{EventType: tt.eventType, Source: tt.source}

			if event.GetType() != tt.eventType {
				t.Errorf("GetType() = %v, want %v", event.GetType(), tt.eventType)
			}
			if event.GetSource() != tt.source {
				t.Errorf("GetSource() = %v, want %v", event.GetSource(), tt.source)
			}
		})
	}
}

func TestBusSubscribe_MultipleHandlers_UniqueIDs(t *testing.T) {
	bus := NewEventBus()

	sub1 := bus.Subscribe(StateChanged, func(Event) {})
	sub2 := bus.Subscribe(StateChanged, func(Event) {})
	sub3 := bus.Subscribe(RateSampled, func(Event) {})

	if sub1.ID == sub2.ID || sub2.ID == sub3.ID {
		t.Error("subscriptions should have unique IDs")
	}
	if sub1.Type != StateChanged || sub3.Type != RateSampled {
		t.Error("subscription should record its event type")
	}

	bus.mu.RLock()
	defer bus.mu.RUnlock()
	if len(bus.handlers[StateChanged]) != 2 {
		t.Errorf("expected 2 StateChanged handlers, got %d", len(bus.handlers[StateChanged]))
	}
	if len(bus.handlers[RateSampled]) != 1 {
		t.Errorf("expected 1 RateSampled handler, got %d", len(bus.handlers[RateSampled]))
	}
}

func TestBusPublish_WithSubscribers_CallsHandlersInOrder(t *testing.T) {
	bus := NewEventBus()
	var order []int

	bus.Subscribe(StateChanged, func(Event) { order = append(order, 1) })
	bus.Subscribe(StateChanged, func(Event) { order = append(order, 2) })
	bus.Subscribe(RateSampled, func(Event) { order = append(order, 99) })

	bus.Publish(&BaseEvent{EventType: StateChanged, Source: "test"})

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("expected handlers [1 2], got %v", order)
	}
}

func TestBusPublish_NoSubscribers_NoError(t *testing.T) {
	bus := NewEventBus()

	// Should not panic
	bus.Publish(&BaseEvent{EventType: EditRejected})
}

func TestSubscriptionCancel_ValidSubscription_RemovesHandler(t *testing.T) {
	bus := NewEventBus()
	calls := 0

	sub := bus.Subscribe(RateSampled, func(Event) { calls++ })
	keep := bus.Subscribe(RateSampled, func(Event) { calls += 10 })

	sub.Cancel()
	bus.Publish(&BaseEvent{EventType: RateSampled})

	if calls != 10 {
		t.Errorf("expected only the remaining handler to run, calls = %d", calls)
	}

	keep.Cancel()
	bus.mu.RLock()
	_, exists := bus.handlers[RateSampled]
	bus.mu.RUnlock()
	if exists {
		t.Error("handler list should be removed once empty")
	}

	// Cancelling twice is harmless.
	keep.Cancel()
}

func TestSubscriptionCancel_DuringPublish_DoesNotSkipHandlers(t *testing.T) {
	bus := NewEventBus()
	var sub *Subscription
	calls := 0

	sub = bus.Subscribe(StateChanged, func(Event) {
		calls++
		sub.Cancel()
	})
	bus.Subscribe(StateChanged, func(Event) { calls++ })

	bus.Publish(&BaseEvent{EventType: StateChanged})
	if calls != 2 {
		t.Errorf("expected both handlers to run, calls = %d", calls)
	}

	bus.Publish(&BaseEvent{EventType: StateChanged})
	if calls != 3 {
		t.Errorf("expected cancelled handler to be skipped, calls = %d", calls)
	}
}

func TestBusSubscribe_ConcurrentAccess_ThreadSafe(t *testing.T) {
	bus := NewEventBus()
	var wg sync.WaitGroup
	var mu sync.Mutex
	handlerCount := 0

	handler := func(e Event) {
		mu.Lock()
		handlerCount++
		mu.Unlock()
	}

	numGoroutines := 10
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			bus.Subscribe(RateSampled, handler)
		}()
	}
	wg.Wait()

	wg.Add(3)
	for i := 0; i < 3; i++ {
		go func() {
			defer wg.Done()
			bus.Publish(&BaseEvent{EventType: RateSampled})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if handlerCount != numGoroutines*3 {
		t.Errorf("expected %d handler calls, got %d", numGoroutines*3, handlerCount)
	}
}

func TestNewStateEvent_ValidParameters_ReturnsCorrectEvent(t *testing.T) {
	shape := orbit.Shape{A: 149.6, B: 149.5791, C: 2.4983}
	q := orbit.Quantities{PeriodYears: 1.0009, MaxSpeedKms: 30.28}

	e := NewStateEvent("session", 7, "preset", shape, 1.989e30, q)

	if e.GetType() != StateChanged {
		t.Errorf("GetType() = %v, want %v", e.GetType(), StateChanged)
	}
	if e.Epoch != 7 || e.Cause != "preset" {
		t.Errorf("unexpected epoch/cause: %d %q", e.Epoch, e.Cause)
	}
	if e.Shape != shape || e.Quantities != q || e.MassKg != 1.989e30 {
		t.Errorf("payload not preserved: %+v", e)
	}
}

func TestNewRateEvent_ValidParameters_ReturnsCorrectEvent(t *testing.T) {
	e := NewRateEvent(nil, 3, 29.5, 0.97, 1.5e11)

	if e.GetType() != RateSampled {
		t.Errorf("GetType() = %v, want %v", e.GetType(), RateSampled)
	}
	if e.Epoch != 3 || e.SpeedKms != 29.5 || e.RateRatio != 0.97 || e.DistanceMeters != 1.5e11 {
		t.Errorf("payload not preserved: %+v", e)
	}
}

func TestNewRejectedEvent_ValidParameters_ReturnsCorrectEvent(t *testing.T) {
	cause := errors.New("bad axis")
	e := NewRejectedEvent(nil, "semi_major_axis", cause)

	if e.GetType() != EditRejected {
		t.Errorf("GetType() = %v, want %v", e.GetType(), EditRejected)
	}
	if e.Edit != "semi_major_axis" || !errors.Is(e.Err, cause) {
		t.Errorf("payload not preserved: %+v", e)
	}
}

func TestNewSamplingEvent_ValidParameters_ReturnsCorrectEvent(t *testing.T) {
	for _, typ := range []Type{SamplingStarted, SamplingStopped} {
		e := NewSamplingEvent(typ, nil, 5)
		if e.GetType() != typ || e.Epoch != 5 {
			t.Errorf("NewSamplingEvent(%v) = %+v", typ, e)
		}
	}
}
