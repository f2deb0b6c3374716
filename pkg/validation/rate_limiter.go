package validation

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps a token bucket per client ID
type RateLimiter struct {
	limit       rate.Limit
	burst       int
	idleAfter   time.Duration
	clients     map[string]*clientLimiter
	mu          sync.Mutex
	cleanupTick *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSecond events per client with the given burst.
// Clients idle for idleAfter are forgotten.
func NewRateLimiter(perSecond float64, burst int, idleAfter time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		idleAfter: idleAfter,
		clients:   make(map[string]*clientLimiter),
		done:      make(chan struct{}),
	}

	rl.cleanupTick = time.NewTicker(idleAfter)
	go rl.cleanup()

	return rl
}

// Allow reports whether clientID may send another command now
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	cl, exists := rl.clients[clientID]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientID] = cl
	}
	cl.lastSeen = time.Now()
	rl.mu.Unlock()

	return cl.limiter.Allow()
}

// Forget drops the bucket for clientID
func (rl *RateLimiter) Forget(clientID string) {
	rl.mu.Lock()
	delete(rl.clients, clientID)
	rl.mu.Unlock()
}

// Len returns the number of tracked clients
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.removeIdleClients(time.Now())
		case <-rl.done:
			return
		}
	}
}

func (rl *RateLimiter) removeIdleClients(now time.Time) {
	cutoff := now.Add(-rl.idleAfter)

	rl.mu.Lock()
	for id, cl := range rl.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.clients, id)
		}
	}
	rl.mu.Unlock()
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
		rl.cleanupTick.Stop()
	})
}
