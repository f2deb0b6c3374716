// pkg/event/event.go
package event

import (
	"sync"

	"github.com/illum/orbitsim/pkg/orbit"
)

// Type represents the type of event
type Type string

// Orbit session event types
const (
	StateChanged    Type = "state_changed"
	RateSampled     Type = "rate_sampled"
	EditRejected    Type = "edit_rejected"
	SamplingStarted Type = "sampling_started"
	SamplingStopped Type = "sampling_stopped"
)

// Event is the base interface for all events
type Event interface {
	GetType() Type
	GetSource() interface{}
}

// BaseEvent provides common functionality for all events
type BaseEvent struct {
	EventType Type
	Source    interface{}
}

// GetType returns the event type
func (e *BaseEvent) GetType() Type {
	return e.EventType
}

// GetSource returns the event source
func (e *BaseEvent) GetSource() interface{} {
	return e.Source
}

// Handler is a function that handles events
type Handler func(Event)

// Subscription identifies a registered handler. Cancel removes it from the bus.
type Subscription struct {
	ID     uint64
	Type   Type
	Cancel func()
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus manages event subscriptions and dispatching
type Bus struct {
	handlers map[Type][]subscriber
	nextID   uint64
	mu       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]subscriber),
		nextID:   1,
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType Type, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: id, handler: handler})

	return &Subscription{
		ID:     id,
		Type:   eventType,
		Cancel: func() { b.unsubscribe(eventType, id) },
	}
}

func (b *Bus) unsubscribe(eventType Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			// Copy so a Publish iterating the old slice is unaffected.
			next := make([]subscriber, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			b.handlers[eventType] = append(next, subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[eventType]) == 0 {
		delete(b.handlers, eventType)
	}
}

// Publish sends an event to all subscribed handlers synchronously, in
// subscription order.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := b.handlers[event.GetType()]
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(event)
	}
}

// StateEvent carries the full recomputed bundle after an accepted edit.
type StateEvent struct {
	BaseEvent
	Epoch      uint64
	Cause      string
	Shape      orbit.Shape
	MassKg     float64
	Quantities orbit.Quantities
}

// NewStateEvent creates a new state event
func NewStateEvent(source interface{}, epoch uint64, cause string, shape orbit.Shape, massKg float64, q orbit.Quantities) *StateEvent {
	return &StateEvent{
		BaseEvent: BaseEvent{
			EventType: StateChanged,
			Source:    source,
		},
		Epoch:      epoch,
		Cause:      cause,
		Shape:      shape,
		MassKg:     massKg,
		Quantities: q,
	}
}

// RateEvent carries one speed sample and the playback rate derived from it.
type RateEvent struct {
	BaseEvent
	Epoch          uint64
	SpeedKms       float64
	RateRatio      float64
	DistanceMeters float64
}

// NewRateEvent creates a new rate sample event
func NewRateEvent(source interface{}, epoch uint64, speedKms, rateRatio, distanceMeters float64) *RateEvent {
	return &RateEvent{
		BaseEvent: BaseEvent{
			EventType: RateSampled,
			Source:    source,
		},
		Epoch:          epoch,
		SpeedKms:       speedKms,
		RateRatio:      rateRatio,
		DistanceMeters: distanceMeters,
	}
}

// RejectedEvent reports an edit that was refused at the edit boundary.
type RejectedEvent struct {
	BaseEvent
	Edit string
	Err  error
}

// NewRejectedEvent creates a new rejected edit event
func NewRejectedEvent(source interface{}, edit string, err error) *RejectedEvent {
	return &RejectedEvent{
		BaseEvent: BaseEvent{
			EventType: EditRejected,
			Source:    source,
		},
		Edit: edit,
		Err:  err,
	}
}

// SamplingEvent reports a sampling start or stop for a given epoch.
type SamplingEvent struct {
	BaseEvent
	Epoch uint64
}

// NewSamplingEvent creates a new sampling lifecycle event
func NewSamplingEvent(eventType Type, source interface{}, epoch uint64) *SamplingEvent {
	return &SamplingEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		Epoch: epoch,
	}
}
