// Package config provides the configuration schema and loader for the
// RiskGuard call-monitoring core.
package config

import "time"

// LogLevel controls log verbosity for the RiskGuard daemon.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for RiskGuard.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Recording RecordingConfig `yaml:"recording"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Call      CallConfig      `yaml:"call"`
}

// ServerConfig holds network and logging settings for the daemon's local
// HTTP surface (health, metrics, number analysis).
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP surface listens on
	// (e.g., "127.0.0.1:8750"). Empty disables the HTTP surface.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// StorageConfig locates the on-device SQLite database.
type StorageConfig struct {
	// DatabasePath is the SQLite database file holding the block list,
	// call history, contacts, and durable application state.
	DatabasePath string `yaml:"database_path"`
}

// RecordingConfig controls call audio capture.
type RecordingConfig struct {
	// Directory is where finalized call recordings are written. Created on
	// first recording if absent.
	Directory string `yaml:"directory"`
}

// BridgeConfig points at the external risk-analysis engine.
type BridgeConfig struct {
	// URL is the websocket endpoint of the analysis engine. Empty disables
	// the bridge; calls are then monitored without live scoring.
	URL string `yaml:"url"`
}

// CallConfig tunes the call session coordinator.
type CallConfig struct {
	// MaxCallDuration is the watchdog limit: a session still open after
	// this long is forcibly closed so the coordinator can never stay
	// outside Idle indefinitely. Defaults to 4h.
	MaxCallDuration time.Duration `yaml:"max_call_duration"`
}

// applyDefaults fills zero-valued fields with their documented defaults.
func (c *Config) applyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "riskguard.db"
	}
	if c.Recording.Directory == "" {
		c.Recording.Directory = "recordings"
	}
	if c.Call.MaxCallDuration <= 0 {
		c.Call.MaxCallDuration = 4 * time.Hour
	}
}
