package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if config.Simulation.Preset != "earth" {
		t.Errorf("Expected preset 'earth', got '%s'", config.Simulation.Preset)
	}
	if config.Simulation.SampleInterval.Std() != 6*time.Millisecond {
		t.Errorf("Expected SampleInterval 6ms, got %v", config.Simulation.SampleInterval.Std())
	}
	if config.Simulation.CycleDuration.Std() != time.Second {
		t.Errorf("Expected CycleDuration 1s, got %v", config.Simulation.CycleDuration.Std())
	}
	if config.Server.MaxClients != 32 {
		t.Errorf("Expected MaxClients 32, got %d", config.Server.MaxClients)
	}
	if config.Stream.RateSampleHz != 20 {
		t.Errorf("Expected RateSampleHz 20, got %f", config.Stream.RateSampleHz)
	}
	if config.CircuitBreaker.MaxConsecutiveFailures != 3 {
		t.Errorf("Expected MaxConsecutiveFailures 3, got %d", config.CircuitBreaker.MaxConsecutiveFailures)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("DefaultConfig() should validate, got %v", err)
	}
}

func TestDuration_JSON(t *testing.T) {
	data, err := json.Marshal(Duration(16 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"16ms"` {
		t.Errorf("Marshal() = %s, want \"16ms\"", data)
	}

	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{`"1.5s"`, 1500 * time.Millisecond, false},
		{`1000`, 1000, false},
		{`"soon"`, 0, true},
		{`true`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.input), &d)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal(%s) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if d.Std() != tt.want {
				t.Errorf("Unmarshal(%s) = %v, want %v", tt.input, d.Std(), tt.want)
			}
		})
	}
}

func TestLoadConfig_Success(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "orbitsim.json")
	content := `{
		"simulation": {"preset": "moon", "sampleInterval": "10ms"},
		"server": {"address": ":9000"}
	}`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Simulation.Preset != "moon" {
		t.Errorf("Expected preset 'moon', got '%s'", config.Simulation.Preset)
	}
	if config.Simulation.SampleInterval.Std() != 10*time.Millisecond {
		t.Errorf("Expected SampleInterval 10ms, got %v", config.Simulation.SampleInterval.Std())
	}
	if config.Server.Address != ":9000" {
		t.Errorf("Expected address ':9000', got '%s'", config.Server.Address)
	}
	// Unspecified fields keep their defaults.
	if config.Server.MaxClients != DefaultConfig().Server.MaxClients {
		t.Errorf("Expected default MaxClients, got %d", config.Server.MaxClients)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	invalidPath := filepath.Join(t.TempDir(), "invalid.json")
	if err := os.WriteFile(invalidPath, []byte(`{"simulation": invalid}`), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		contains string
	}{
		{"missing file", filepath.Join(t.TempDir(), "missing.json"), "failed to read config file"},
		{"invalid JSON", invalidPath, "failed to parse config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfig(tt.path)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if config != nil {
				t.Error("Expected nil config on error")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("Expected error to contain '%s', got '%s'", tt.contains, err.Error())
			}
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	original := DefaultConfig()
	original.Simulation.Preset = "moon"
	original.Server.AllowedOrigins = []string{"http://localhost:3000"}
	original.CircuitBreaker.Timeout = Duration(5 * time.Second)

	configPath := filepath.Join(t.TempDir(), "saved.json")
	if err := SaveConfig(original, configPath); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"timeout": "5s"`) {
		t.Errorf("Expected durations saved as strings, got:\n%s", data)
	}

	loaded, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Simulation.Preset != "moon" {
		t.Errorf("Expected preset 'moon', got '%s'", loaded.Simulation.Preset)
	}
	if loaded.CircuitBreaker.Timeout.Std() != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", loaded.CircuitBreaker.Timeout.Std())
	}
	if len(loaded.Server.AllowedOrigins) != 1 {
		t.Errorf("Expected 1 allowed origin, got %v", loaded.Server.AllowedOrigins)
	}
}

func TestSaveConfig_InvalidPath(t *testing.T) {
	invalidPath := filepath.Join(t.TempDir(), "missing", "dir", "config.json")

	err := SaveConfig(DefaultConfig(), invalidPath)
	if err == nil {
		t.Fatal("Expected error when saving to invalid path, got nil")
	}
	if !strings.Contains(err.Error(), "failed to write config file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty preset", func(c *Config) { c.Simulation.Preset = " " }, "Simulation.Preset"},
		{"zero sample interval", func(c *Config) { c.Simulation.SampleInterval = 0 }, "Simulation.SampleInterval"},
		{"empty address", func(c *Config) { c.Server.Address = "" }, "Server.Address"},
		{"too many clients", func(c *Config) { c.Server.MaxClients = 20000 }, "Server.MaxClients"},
		{"zero sample rate", func(c *Config) { c.Stream.RateSampleHz = 0 }, "Stream.RateSampleHz"},
		{"zero burst", func(c *Config) { c.Stream.CommandBurst = 0 }, "Stream.CommandBurst"},
		{"zero breaker requests", func(c *Config) { c.CircuitBreaker.MaxRequests = 0 }, "CircuitBreaker.MaxRequests"},
		{"zero memory limit", func(c *Config) { c.Resources.MaxMemoryMB = 0 }, "Resources.MaxMemoryMB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Expected ValidationError, got %T: %v", err, err)
			}
			if validationErr.Field != tt.field {
				t.Errorf("Expected error for field '%s', got '%s'", tt.field, validationErr.Field)
			}
		})
	}
}
