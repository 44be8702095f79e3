// Package config loads mapchat configuration from YAML with environment
// overrides. A missing config file is not an error: defaults apply.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all mapchat configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Gemini configuration
	Gemini GeminiConfig `yaml:"gemini"`

	// Conversation persistence
	Storage StorageConfig `yaml:"storage"`

	// Weather integration
	Weather WeatherConfig `yaml:"weather"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// GeminiConfig configures the Gemini model service.
type GeminiConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// StorageConfig configures the local persistence layer.
type StorageConfig struct {
	// DatabasePath is the SQLite file holding conversation blobs.
	// Relative paths resolve against the state directory.
	DatabasePath string `yaml:"database_path"`
}

// WeatherConfig configures the Open-Meteo integration.
type WeatherConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level     string `yaml:"level"`      // debug, info, warn, error
	DebugMode bool   `yaml:"debug_mode"` // Master toggle - false = no logging
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "mapchat",
		Version: "1.0.0",

		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Temperature: 0.7,
		},

		Storage: StorageConfig{
			DatabasePath: "mapchat.db",
		},

		Weather: WeatherConfig{
			Enabled: true,
			BaseURL: "https://api.open-meteo.com",
			Timeout: "10s",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// StateDir returns the per-user state directory (~/.mapchat),
// overridable with MAPCHAT_HOME.
func StateDir() string {
	if dir := os.Getenv("MAPCHAT_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mapchat"
	}
	return filepath.Join(home, ".mapchat")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}
	if model := os.Getenv("MAPCHAT_MODEL"); model != "" {
		c.Gemini.Model = model
	}
	if path := os.Getenv("MAPCHAT_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if os.Getenv("MAPCHAT_DEBUG") == "1" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// ResolveDatabasePath returns the absolute SQLite path, anchoring
// relative paths in the state directory.
func (c *Config) ResolveDatabasePath() string {
	if filepath.IsAbs(c.Storage.DatabasePath) {
		return c.Storage.DatabasePath
	}
	return filepath.Join(StateDir(), c.Storage.DatabasePath)
}
