package resource

import (
	"context"
	"fmt"
)

// HealthCheck reports the manager unhealthy when memory is over its limit or
// tracked goroutines exceed 80% of the budget.
type HealthCheck struct {
	manager *ResourceManager
}

// NewHealthCheck creates a health check for rm.
func NewHealthCheck(rm *ResourceManager) *HealthCheck {
	return &HealthCheck{manager: rm}
}

// Name returns the name of this health check.
func (h *HealthCheck) Name() string {
	return "resources"
}

// Check verifies that resource usage is within limits.
func (h *HealthCheck) Check(ctx context.Context) error {
	stats := h.manager.Stats()

	if stats.MemoryMB > stats.MaxMemoryMB {
		return fmt.Errorf("memory usage %dMB exceeds limit %dMB", stats.MemoryMB, stats.MaxMemoryMB)
	}

	threshold := stats.MaxGoroutines * 8 / 10
	if stats.Goroutines > threshold {
		return fmt.Errorf("goroutine count %d exceeds 80%% threshold (%d/%d)",
			stats.Goroutines, threshold, stats.MaxGoroutines)
	}
	return nil
}
