package config

import (
	"fmt"
	"strings"
)

// ValidationError reports the first invalid field of a configuration.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for field %s (value: %v): %s", e.Field, e.Value, e.Message)
}

// Validate checks that the configuration is usable by the server.
func (c *Config) Validate() error {
	checks := []struct {
		ok      bool
		field   string
		value   interface{}
		message string
	}{
		{strings.TrimSpace(c.Simulation.Preset) != "", "Simulation.Preset", c.Simulation.Preset, "must not be empty"},
		{c.Simulation.SampleInterval > 0, "Simulation.SampleInterval", c.Simulation.SampleInterval.Std(), "must be positive"},
		{c.Simulation.CycleDuration > 0, "Simulation.CycleDuration", c.Simulation.CycleDuration.Std(), "must be positive"},
		{strings.TrimSpace(c.Server.Address) != "", "Server.Address", c.Server.Address, "must not be empty"},
		{c.Server.ReadTimeout > 0, "Server.ReadTimeout", c.Server.ReadTimeout.Std(), "must be positive"},
		{c.Server.WriteTimeout > 0, "Server.WriteTimeout", c.Server.WriteTimeout.Std(), "must be positive"},
		{c.Server.MaxClients > 0 && c.Server.MaxClients <= 10000, "Server.MaxClients", c.Server.MaxClients, "must be between 1 and 10000"},
		{c.Stream.RateSampleHz > 0 && c.Stream.RateSampleHz <= 1000, "Stream.RateSampleHz", c.Stream.RateSampleHz, "must be in (0, 1000]"},
		{c.Stream.CommandsPerSecond > 0, "Stream.CommandsPerSecond", c.Stream.CommandsPerSecond, "must be positive"},
		{c.Stream.CommandBurst > 0, "Stream.CommandBurst", c.Stream.CommandBurst, "must be positive"},
		{c.Stream.SendBuffer > 0, "Stream.SendBuffer", c.Stream.SendBuffer, "must be positive"},
		{c.CircuitBreaker.MaxRequests > 0, "CircuitBreaker.MaxRequests", c.CircuitBreaker.MaxRequests, "must be positive"},
		{c.CircuitBreaker.Interval > 0, "CircuitBreaker.Interval", c.CircuitBreaker.Interval.Std(), "must be positive"},
		{c.CircuitBreaker.Timeout > 0, "CircuitBreaker.Timeout", c.CircuitBreaker.Timeout.Std(), "must be positive"},
		{c.CircuitBreaker.MaxConsecutiveFailures > 0, "CircuitBreaker.MaxConsecutiveFailures", c.CircuitBreaker.MaxConsecutiveFailures, "must be positive"},
		{c.Resources.MaxMemoryMB > 0, "Resources.MaxMemoryMB", c.Resources.MaxMemoryMB, "must be positive"},
		{c.Resources.MaxGoroutines > 0, "Resources.MaxGoroutines", c.Resources.MaxGoroutines, "must be positive"},
		{c.Resources.CheckInterval > 0, "Resources.CheckInterval", c.Resources.CheckInterval.Std(), "must be positive"},
	}

	for _, check := range checks {
		if !check.ok {
			return &ValidationError{Field: check.field, Value: check.value, Message: check.message}
		}
	}
	return nil
}
