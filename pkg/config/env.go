package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "ORBITSIM_"

// ApplyEnvironmentOverrides overwrites fields of config from ORBITSIM_*
// variables and validates the result.
func ApplyEnvironmentOverrides(config *Config) error {
	var err error
	set := func(apply func() error) {
		if err == nil {
			err = apply()
		}
	}

	sim := &config.Simulation
	sim.Preset = getEnvOrDefault("ORBITSIM_PRESET", sim.Preset)
	set(func() error { return durationVar("ORBITSIM_SAMPLE_INTERVAL", &sim.SampleInterval) })
	set(func() error { return durationVar("ORBITSIM_CYCLE_DURATION", &sim.CycleDuration) })
	sim.AutoStart = getEnvAsBoolOrDefault("ORBITSIM_AUTO_START", sim.AutoStart)

	srv := &config.Server
	srv.Address = getEnvOrDefault("ORBITSIM_SERVER_ADDR", srv.Address)
	set(func() error { return durationVar("ORBITSIM_READ_TIMEOUT", &srv.ReadTimeout) })
	set(func() error { return durationVar("ORBITSIM_WRITE_TIMEOUT", &srv.WriteTimeout) })
	set(func() error { return durationVar("ORBITSIM_SHUTDOWN_TIMEOUT", &srv.ShutdownTimeout) })
	srv.MaxClients = getEnvAsIntOrDefault("ORBITSIM_MAX_CLIENTS", srv.MaxClients)
	if origins := os.Getenv("ORBITSIM_ALLOWED_ORIGINS"); origins != "" {
		srv.AllowedOrigins = splitList(origins)
	}

	st := &config.Stream
	st.RateSampleHz = getEnvAsFloatOrDefault("ORBITSIM_RATE_SAMPLE_HZ", st.RateSampleHz)
	st.CommandsPerSecond = getEnvAsFloatOrDefault("ORBITSIM_COMMANDS_PER_SECOND", st.CommandsPerSecond)
	st.CommandBurst = getEnvAsIntOrDefault("ORBITSIM_COMMAND_BURST", st.CommandBurst)
	st.SendBuffer = getEnvAsIntOrDefault("ORBITSIM_SEND_BUFFER", st.SendBuffer)

	cb := &config.CircuitBreaker
	cb.MaxRequests = uint32(getEnvAsIntOrDefault("ORBITSIM_CB_MAX_REQUESTS", int(cb.MaxRequests)))
	set(func() error { return durationVar("ORBITSIM_CB_INTERVAL", &cb.Interval) })
	set(func() error { return durationVar("ORBITSIM_CB_TIMEOUT", &cb.Timeout) })
	cb.MaxConsecutiveFailures = uint32(getEnvAsIntOrDefault("ORBITSIM_CB_MAX_CONSECUTIVE_FAILS", int(cb.MaxConsecutiveFailures)))

	res := &config.Resources
	res.MaxMemoryMB = int64(getEnvAsIntOrDefault("ORBITSIM_MAX_MEMORY_MB", int(res.MaxMemoryMB)))
	res.MaxGoroutines = getEnvAsIntOrDefault("ORBITSIM_MAX_GOROUTINES", res.MaxGoroutines)
	set(func() error { return durationVar("ORBITSIM_RESOURCE_CHECK_INTERVAL", &res.CheckInterval) })

	if err != nil {
		return err
	}
	return config.Validate()
}

func durationVar(key string, target *Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*target = Duration(d)
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvOrDefault returns the environment variable value or a default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault returns the environment variable as int or a default
// if not set or invalid
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloatOrDefault returns the environment variable as float64 or a
// default if not set or invalid
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault returns the environment variable as bool or a default
// if not set or invalid
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
