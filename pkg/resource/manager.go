// Package resource supervises the server's background goroutines: the
// animation driver and each WebSocket connection's pumps. It enforces a
// goroutine budget, samples heap usage and waits for tracked goroutines on
// shutdown.
package resource

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/illum/orbitsim/pkg/config"
	"github.com/illum/orbitsim/pkg/logging"
)

// ErrLimitExceeded is returned by Go when the goroutine budget is spent.
var ErrLimitExceeded = errors.New("goroutine limit exceeded")

// ErrShuttingDown is returned by Go after Shutdown has begun.
var ErrShuttingDown = errors.New("resource manager shutting down")

// ResourceManager tracks goroutines started through it and the process heap.
type ResourceManager struct {
	maxMemoryMB   int64
	maxGoroutines int64
	checkInterval time.Duration

	running  atomic.Int64
	memoryMB atomic.Int64
	wg       sync.WaitGroup

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
	started bool
	closing bool
	logger  *logging.Logger

	lastCheck atomic.Int64
}

// Stats is a point-in-time view of resource usage.
type Stats struct {
	Goroutines    int64     `json:"goroutines"`
	MaxGoroutines int64     `json:"maxGoroutines"`
	MemoryMB      int64     `json:"memoryMB"`
	MaxMemoryMB   int64     `json:"maxMemoryMB"`
	LastCheck     time.Time `json:"lastCheck"`
}

// NewResourceManager creates a manager with the given limits.
func NewResourceManager(cfg config.ResourceConfig, logger *logging.Logger) *ResourceManager {
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &ResourceManager{
		maxMemoryMB:   cfg.MaxMemoryMB,
		maxGoroutines: int64(cfg.MaxGoroutines),
		checkInterval: cfg.CheckInterval.Std(),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		logger:        logger.With("component", "resource"),
	}
}

// Start begins periodic memory sampling.
func (rm *ResourceManager) Start() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.started {
		return fmt.Errorf("resource manager already running")
	}
	rm.started = true
	rm.CheckMemoryUsage()

	go rm.monitor()

	rm.logger.Info(rm.ctx, "resource manager started",
		"max_memory_mb", rm.maxMemoryMB,
		"max_goroutines", rm.maxGoroutines,
		"check_interval", rm.checkInterval.String(),
	)
	return nil
}

// Go runs fn in a tracked goroutine. The context passed to fn is cancelled
// when either ctx or the manager is shut down. Panics are recovered and
// logged.
func (rm *ResourceManager) Go(ctx context.Context, name string, fn func(context.Context)) error {
	rm.mu.Lock()
	if rm.closing {
		rm.mu.Unlock()
		return ErrShuttingDown
	}
	if current := rm.running.Load(); current >= rm.maxGoroutines {
		rm.mu.Unlock()
		rm.logger.Warn(ctx, "goroutine limit reached", "name", name, "current", current, "limit", rm.maxGoroutines)
		return fmt.Errorf("%w: %d/%d", ErrLimitExceeded, current, rm.maxGoroutines)
	}
	rm.running.Add(1)
	rm.wg.Add(1)
	rm.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(rm.ctx, cancel)

	go func() {
		defer rm.wg.Done()
		defer rm.running.Add(-1)
		defer stop()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				rm.logger.Error(runCtx, "goroutine panic", fmt.Errorf("panic: %v", r), "name", name)
			}
		}()

		fn(runCtx)
	}()
	return nil
}

// CheckMemoryUsage samples the heap and reports whether it is over the limit.
func (rm *ResourceManager) CheckMemoryUsage() error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	currentMB := int64(m.Alloc / 1024 / 1024)
	rm.memoryMB.Store(currentMB)
	rm.lastCheck.Store(time.Now().UnixNano())

	if currentMB > rm.maxMemoryMB {
		return fmt.Errorf("memory usage %dMB exceeds limit %dMB", currentMB, rm.maxMemoryMB)
	}
	return nil
}

// MemoryUsageMB returns the last sampled heap size.
func (rm *ResourceManager) MemoryUsageMB() int64 {
	return rm.memoryMB.Load()
}

// Stats returns current usage.
func (rm *ResourceManager) Stats() Stats {
	var last time.Time
	if ns := rm.lastCheck.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return Stats{
		Goroutines:    rm.running.Load(),
		MaxGoroutines: rm.maxGoroutines,
		MemoryMB:      rm.memoryMB.Load(),
		MaxMemoryMB:   rm.maxMemoryMB,
		LastCheck:     last,
	}
}

// Shutdown cancels every tracked goroutine and waits for them until ctx
// expires. It is safe to call more than once.
func (rm *ResourceManager) Shutdown(ctx context.Context) error {
	rm.mu.Lock()
	if rm.closing {
		rm.mu.Unlock()
		return nil
	}
	rm.closing = true
	started := rm.started
	rm.mu.Unlock()

	rm.logger.Info(ctx, "shutting down resource manager", "goroutines", rm.running.Load())
	rm.cancel()

	if started {
		select {
		case <-rm.done:
		case <-ctx.Done():
			rm.logger.Warn(ctx, "monitor did not stop in time")
		}
	}

	finished := make(chan struct{})
	go func() {
		rm.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		remaining := rm.running.Load()
		rm.logger.Warn(ctx, "shutdown timed out with goroutines still running", "remaining", remaining)
		return fmt.Errorf("shutdown timeout: %d goroutines still running", remaining)
	}
}

func (rm *ResourceManager) monitor() {
	defer close(rm.done)

	ticker := time.NewTicker(rm.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := rm.CheckMemoryUsage(); err != nil {
				rm.logger.Error(rm.ctx, "memory limit exceeded", err)
			}
			rm.logger.Debug(rm.ctx, "resource usage",
				"goroutines", rm.running.Load(),
				"memory_mb", rm.memoryMB.Load(),
			)
		case <-rm.ctx.Done():
			return
		}
	}
}
