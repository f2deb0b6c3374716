// Package config loads orbitsim settings from a JSON file and the
// environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration is a time.Duration that encodes as a Go duration string ("6ms").
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	*d = Duration(n)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config contains the full orbitsim configuration
type Config struct {
	Simulation     SimulationConfig     `json:"simulation"`
	Server         ServerConfig         `json:"server"`
	Stream         StreamConfig         `json:"stream"`
	CircuitBreaker CircuitBreakerConfig `json:"circuitBreaker"`
	Resources      ResourceConfig       `json:"resources"`
}

// SimulationConfig controls the animation loop
type SimulationConfig struct {
	Preset         string   `json:"preset"`
	SampleInterval Duration `json:"sampleInterval"`
	CycleDuration  Duration `json:"cycleDuration"`
	AutoStart      bool     `json:"autoStart"`
}

// ServerConfig controls the HTTP and WebSocket listener
type ServerConfig struct {
	Address         string   `json:"address"`
	ReadTimeout     Duration `json:"readTimeout"`
	WriteTimeout    Duration `json:"writeTimeout"`
	ShutdownTimeout Duration `json:"shutdownTimeout"`
	MaxClients      int      `json:"maxClients"`
	AllowedOrigins  []string `json:"allowedOrigins,omitempty"`
}

// StreamConfig controls what is pushed to WebSocket clients and how fast
// they may send commands.
type StreamConfig struct {
	RateSampleHz      float64 `json:"rateSampleHz"`
	CommandsPerSecond float64 `json:"commandsPerSecond"`
	CommandBurst      int     `json:"commandBurst"`
	SendBuffer        int     `json:"sendBuffer"`
}

// CircuitBreakerConfig configures the per-client write breaker
type CircuitBreakerConfig struct {
	MaxRequests            uint32   `json:"maxRequests"`
	Interval               Duration `json:"interval"`
	Timeout                Duration `json:"timeout"`
	MaxConsecutiveFailures uint32   `json:"maxConsecutiveFailures"`
}

// ResourceConfig bounds the server's goroutines and memory
type ResourceConfig struct {
	MaxMemoryMB   int64    `json:"maxMemoryMB"`
	MaxGoroutines int      `json:"maxGoroutines"`
	CheckInterval Duration `json:"checkInterval"`
}

// LoadConfig loads a configuration from a file. Fields missing from the file
// keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves a configuration to a file
func SaveConfig(config *Config, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Preset:         "earth",
			SampleInterval: Duration(6 * time.Millisecond),
			CycleDuration:  Duration(time.Second),
			AutoStart:      true,
		},
		Server: ServerConfig{
			Address:         "localhost:8080",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
			MaxClients:      32,
		},
		Stream: StreamConfig{
			RateSampleHz:      20,
			CommandsPerSecond: 10,
			CommandBurst:      20,
			SendBuffer:        64,
		},
		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:            1,
			Interval:               Duration(time.Minute),
			Timeout:                Duration(30 * time.Second),
			MaxConsecutiveFailures: 3,
		},
		Resources: ResourceConfig{
			MaxMemoryMB:   256,
			MaxGoroutines: 256,
			CheckInterval: Duration(10 * time.Second),
		},
	}
}
