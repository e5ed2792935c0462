package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
)

type Config struct {
	Device   string      `json:"device"` // input device name; empty = platform default
	LogLevel string      `json:"log_level"`
	Meter    MeterConfig `json:"meter"`
}

type MeterConfig struct {
	History   int `json:"history"`    // recent samples retained for rendering
	RefreshMs int `json:"refresh_ms"` // console redraw interval
}

// Load reads the config from disk or returns defaults. Environment
// variables override both.
func Load() (*Config, error) {
	path := configPath()

	// Default config
	cfg := &Config{
		Device:   "",
		LogLevel: "info",
		Meter: MeterConfig{
			History:   120,
			RefreshMs: 50,
		},
	}

	// Load existing config if it exists
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("MICLEVEL_DEVICE"); v != "" {
		cfg.Device = v
	}
	if v := os.Getenv("MICLEVEL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if cfg.Meter.History <= 0 {
		cfg.Meter.History = 120
	}
	if cfg.Meter.RefreshMs <= 0 {
		cfg.Meter.RefreshMs = 50
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path := configPath()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "miclevel", "config.json")
}
