// Package animation drives the orbiting body along its path. A Clock fans
// fixed steps out to listeners, a PathTransition tracks the body's progress
// around the ellipse, and a Driver feeds each sampled position through the
// session and applies the resulting rate to the transition.
package animation

import (
	"context"
	"sync"
	"time"
)

// DefaultTick is the step used when a clock is created with a non-positive tick.
const DefaultTick = 6 * time.Millisecond

// Clock advances animation time in fixed steps and notifies listeners.
type Clock struct {
	mu        sync.RWMutex
	Tick      time.Duration
	elapsed   time.Duration
	listeners []func(dt time.Duration)
}

// NewClock constructs a clock stepping by tick.
func NewClock(tick time.Duration) *Clock {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Clock{Tick: tick}
}

// Elapsed returns the total animation time advanced so far.
func (c *Clock) Elapsed() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.elapsed
}

// AddListener registers a callback invoked with the step on every tick.
func (c *Clock) AddListener(fn func(dt time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Step advances the clock by n ticks synchronously.
func (c *Clock) Step(n int) {
	for i := 0; i < n; i++ {
		c.advance()
	}
}

func (c *Clock) advance() {
	c.mu.Lock()
	c.elapsed += c.Tick
	listeners := c.listeners
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(c.Tick)
	}
}

// Run ticks on wall-clock time in a separate goroutine until ctx is done.
// The returned channel is closed when the goroutine exits.
func (c *Clock) Run(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(c.Tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.advance()
			}
		}
	}()
	return done
}
