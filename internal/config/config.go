// Package config loads the daemon configuration from a JSON5 file with env
// overrides, and hot-reloads it when the file changes.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/titanous/json5"
)

// Config is the root configuration for the mudlink daemon.
type Config struct {
	Server ServerConfig `json:"server"`
	Log    LogConfig    `json:"log"`
	mu     sync.RWMutex
}

// ServerConfig configures the listening socket and the admin API.
// AdminKey is NEVER read from the config file (secret); env only.
type ServerConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	AdminKey string `json:"-"` // from env MUDLINK_ADMIN_KEY (or ADMIN_KEY) only
}

// LogConfig configures slog output.
type LogConfig struct {
	Level string `json:"level"` // debug, info, warn, error
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error; defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("MUDLINK_HOST", &c.Server.Host)
	// Generic name first so the project-specific one wins when both are
	// set, matching the PORT precedence below.
	envStr("ADMIN_KEY", &c.Server.AdminKey)
	envStr("MUDLINK_ADMIN_KEY", &c.Server.AdminKey)
	envStr("MUDLINK_LOG_LEVEL", &c.Log.Level)

	for _, key := range []string{"MUDLINK_PORT", "PORT"} {
		if v := os.Getenv(key); v != "" {
			if port, err := strconv.Atoi(v); err == nil && port > 0 {
				c.Server.Port = port
				break
			}
		}
	}
}

// ReplaceFrom copies all data fields from src into c, preserving c's mutex.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Server = src.Server
	c.Log = src.Log
}

// AdminKey returns the admin API key under the read lock.
func (c *Config) AdminKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Server.AdminKey
}

// LogLevel maps the configured level string onto slog. Unknown values fall
// back to info.
func (c *Config) LogLevel() slog.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
