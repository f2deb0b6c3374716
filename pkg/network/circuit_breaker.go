package network

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/illum/orbitsim/pkg/config"
	"github.com/illum/orbitsim/pkg/logging"
)

// Retry defaults for ExecuteWithRetry.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// Operation is a fallible network operation.
type Operation func() error

// Breaker runs network operations through a circuit breaker. The server
// gives every WebSocket connection its own Breaker around writes; the client
// uses one around dialing.
type Breaker struct {
	breaker *gobreaker.CircuitBreaker
	logger  *logging.Logger

	MaxRetries int
	BaseDelay  time.Duration
}

// NewBreaker creates a breaker that trips after cfg.MaxConsecutiveFailures
// consecutive failures and probes again after cfg.Timeout.
func NewBreaker(name string, cfg config.CircuitBreakerConfig, logger *logging.Logger) *Breaker {
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With("breaker", name)

	maxFails := cfg.MaxConsecutiveFailures
	if maxFails == 0 {
		maxFails = 1
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval.Std(),
		Timeout:     cfg.Timeout.Std(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info(context.Background(), "circuit breaker state changed",
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Breaker{
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
	}
}

// Execute runs op unless the circuit is open.
func (b *Breaker) Execute(ctx context.Context, op Operation) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, op()
	})
	if err != nil {
		b.logger.Debug(ctx, "circuit breaker execution failed",
			"error", err.Error(),
			"state", b.breaker.State().String(),
		)
		return fmt.Errorf("circuit breaker: %w", err)
	}
	return nil
}

// ExecuteWithRetry runs op up to MaxRetries times with a linearly growing
// delay. It gives up early once the circuit opens or ctx is done.
func (b *Breaker) ExecuteWithRetry(ctx context.Context, op Operation) error {
	attempts := b.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		err := b.Execute(ctx, op)
		if err == nil {
			return nil
		}

		if b.breaker.State() == gobreaker.StateOpen {
			b.logger.Warn(ctx, "circuit breaker is open, skipping retries",
				"attempt", attempt+1,
				"max_retries", attempts,
			)
			return err
		}

		if attempt == attempts-1 {
			return fmt.Errorf("max retries (%d) exceeded: %w", attempts, err)
		}

		delay := time.Duration(attempt+1) * b.BaseDelay
		b.logger.Warn(ctx, "operation failed, retrying",
			"attempt", attempt+1,
			"delay", delay.String(),
			"error", err.Error(),
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
	}

	return fmt.Errorf("unexpected exit from retry loop")
}

// State returns the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

// Counts returns the breaker's request counts for the current interval.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.breaker.Counts()
}
