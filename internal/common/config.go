// Package common provides shared utilities across the application.
package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Backend     BackendConfig   `toml:"backend"`
	Monitor     MonitorConfig   `toml:"monitor"`
	Batch       BatchConfig     `toml:"batch"`
	Storage     StorageConfig   `toml:"storage"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Logging     LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// BackendConfig points at the device-automation backend.
type BackendConfig struct {
	URL     string `toml:"url"`
	Token   string `toml:"token"`   // bearer token, env BOTUI_BACKEND_TOKEN overrides
	Timeout string `toml:"timeout"` // per-request timeout, e.g. "30s"
}

// RequestTimeout parses the configured timeout, defaulting to 30s.
func (c *BackendConfig) RequestTimeout() time.Duration {
	if c.Timeout != "" {
		if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Second
}

// MonitorConfig controls the multi-log viewer polling loop.
type MonitorConfig struct {
	PollInterval string `toml:"poll_interval"` // e.g. "3s"
	LogLimit     int    `toml:"log_limit"`     // log tail size per fetch
}

// PollIntervalDuration parses the poll interval, defaulting to 3s.
func (c *MonitorConfig) PollIntervalDuration() time.Duration {
	if c.PollInterval != "" {
		if d, err := time.ParseDuration(c.PollInterval); err == nil && d > 0 {
			return d
		}
	}
	return 3 * time.Second
}

// BatchConfig controls batch execution pacing.
type BatchConfig struct {
	StaggerDelay string `toml:"stagger_delay"` // per-slot delay within a wave, e.g. "5s"
}

// StaggerDuration parses the intra-wave stagger, defaulting to 5s.
func (c *BatchConfig) StaggerDuration() time.Duration {
	if c.StaggerDelay != "" {
		if d, err := time.ParseDuration(c.StaggerDelay); err == nil && d >= 0 {
			return d
		}
	}
	return 5 * time.Second
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration.
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// WebSocketConfig controls event broadcast to browser clients.
type WebSocketConfig struct {
	// ThrottleIntervals maps event type to a minimum broadcast interval,
	// e.g. monitor_update = "500ms". Unlisted events are not throttled.
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
	// AllowedEvents whitelists event types to broadcast; empty = all.
	AllowedEvents []string `toml:"allowed_events"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns the configuration used when no file is provided.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server:      ServerConfig{Host: "localhost", Port: 8080},
		Backend:     BackendConfig{URL: "http://localhost:3001", Timeout: "30s"},
		Monitor:     MonitorConfig{PollInterval: "3s", LogLimit: 100},
		Batch:       BatchConfig{StaggerDelay: "5s"},
		Storage:     StorageConfig{Badger: BadgerConfig{Path: "./data/botui"}},
		Logging:     LoggingConfig{Level: "info", Output: []string{"stdout"}},
	}
}

// LoadFromFiles loads configuration with precedence:
// defaults -> file1 -> file2 -> ... -> environment variables.
// Later files override earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies environment variable overrides on top of file
// configuration.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("BOTUI_BACKEND_URL"); v != "" {
		config.Backend.URL = v
	}
	if v := os.Getenv("BOTUI_BACKEND_TOKEN"); v != "" {
		config.Backend.Token = v
	}
	if v := os.Getenv("BOTUI_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("BOTUI_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// ApplyFlagOverrides applies command-line flag values (highest priority).
// Zero values leave the config untouched.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
