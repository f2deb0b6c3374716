// Package health serves liveness and readiness probes for the orbitsim
// server. Readiness aggregates named checks such as "is the animation
// sampling" and "is the listener bound".
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status values reported by the probes.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// DefaultCheckTimeout bounds a readiness probe.
const DefaultCheckTimeout = 5 * time.Second

// HealthCheck is one named readiness condition.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthStatus is the aggregated readiness report.
type HealthStatus struct {
	Status string                     `json:"status"`
	Checks map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth is the result of one check.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthChecker runs registered checks.
type HealthChecker struct {
	checks  map[string]HealthCheck
	timeout time.Duration
	mu      sync.RWMutex
}

// NewHealthChecker creates a checker with the default probe timeout.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks:  make(map[string]HealthCheck),
		timeout: DefaultCheckTimeout,
	}
}

// AddCheck registers check, replacing any check with the same name.
func (hc *HealthChecker) AddCheck(check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[check.Name()] = check
}

// RemoveCheck removes a check by name.
func (hc *HealthChecker) RemoveCheck(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	delete(hc.checks, name)
}

// Names lists the registered checks in alphabetical order.
func (hc *HealthChecker) Names() []string {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckHealth runs every check concurrently. The result is healthy only if
// all checks pass.
func (hc *HealthChecker) CheckHealth(ctx context.Context) HealthStatus {
	hc.mu.RLock()
	checks := make([]HealthCheck, 0, len(hc.checks))
	for _, check := range hc.checks {
		checks = append(checks, check)
	}
	hc.mu.RUnlock()

	results := make([]error, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check HealthCheck) {
			defer wg.Done()
			results[i] = check.Check(ctx)
		}(i, check)
	}
	wg.Wait()

	status := HealthStatus{
		Status: StatusHealthy,
		Checks: make(map[string]ComponentHealth, len(checks)),
	}
	for i, check := range checks {
		if err := results[i]; err != nil {
			status.Status = StatusUnhealthy
			status.Checks[check.Name()] = ComponentHealth{Status: StatusUnhealthy, Message: err.Error()}
			continue
		}
		status.Checks[check.Name()] = ComponentHealth{Status: StatusHealthy}
	}
	return status
}

// LivenessHandler answers 200 while the process can serve requests.
func (hc *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessHandler answers 200 when every check passes and 503 otherwise.
func (hc *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), hc.timeout)
	defer cancel()

	health := hc.CheckHealth(ctx)

	code := http.StatusOK
	if health.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// SamplingHealthCheck fails while the animation is not sampling.
type SamplingHealthCheck struct {
	sampling func() bool
}

// NewSamplingHealthCheck creates a check backed by the session's sampling state.
func NewSamplingHealthCheck(sampling func() bool) *SamplingHealthCheck {
	return &SamplingHealthCheck{sampling: sampling}
}

// Name returns the name of this health check.
func (s *SamplingHealthCheck) Name() string {
	return "sampling"
}

// Check verifies that rate samples are being produced.
func (s *SamplingHealthCheck) Check(ctx context.Context) error {
	if !s.sampling() {
		return fmt.Errorf("animation is not sampling")
	}
	return nil
}

// ListenerHealthCheck fails until the server has bound its address.
type ListenerHealthCheck struct {
	listenerAddr func() string
}

// NewListenerHealthCheck creates a check backed by the server's bound address.
func NewListenerHealthCheck(listenerAddr func() string) *ListenerHealthCheck {
	return &ListenerHealthCheck{listenerAddr: listenerAddr}
}

// Name returns the name of this health check.
func (l *ListenerHealthCheck) Name() string {
	return "listener"
}

// Check verifies that the listener is active.
func (l *ListenerHealthCheck) Check(ctx context.Context) error {
	if l.listenerAddr() == "" {
		return fmt.Errorf("listener is not active")
	}
	return nil
}

// MemoryHealthCheck fails when heap usage exceeds a limit.
type MemoryHealthCheck struct {
	maxMemoryMB    int64
	getMemoryUsage func() int64
}

// NewMemoryHealthCheck creates a memory check. getMemoryUsage returns MB.
func NewMemoryHealthCheck(maxMemoryMB int64, getMemoryUsage func() int64) *MemoryHealthCheck {
	return &MemoryHealthCheck{
		maxMemoryMB:    maxMemoryMB,
		getMemoryUsage: getMemoryUsage,
	}
}

// Name returns the name of this health check.
func (m *MemoryHealthCheck) Name() string {
	return "memory"
}

// Check verifies that memory usage is within the limit.
func (m *MemoryHealthCheck) Check(ctx context.Context) error {
	if currentMB := m.getMemoryUsage(); currentMB > m.maxMemoryMB {
		return fmt.Errorf("memory usage %dMB exceeds limit %dMB", currentMB, m.maxMemoryMB)
	}
	return nil
}
