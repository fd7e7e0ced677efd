// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/peerlink/transport"
)

// EnvVar names the environment variable Load reads the config path
// from.
const EnvVar = "PEERLINK_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local experiments and tests.
	Development Environment = "development"
	// Staging is for pre-production rollouts.
	Staging Environment = "staging"
	// Production is for deployed peers and relays.
	Production Environment = "production"
)

// Config is the configuration shared by the peerlink binaries.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Peer configures the local endpoint.
	Peer PeerConfig `yaml:"peer"`

	// Signaling configures how signals reach the relay.
	Signaling SignalingConfig `yaml:"signaling"`

	// Relay configures peerlink-relay.
	Relay RelayConfig `yaml:"relay"`

	// ICEServers replaces the default STUN server list when non-empty.
	ICEServers []transport.ICEServer `yaml:"ice_servers"`

	Encryption EncryptionConfig `yaml:"encryption"`

	Log LogConfig `yaml:"log"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Signaling  *SignalingConfig  `yaml:"signaling,omitempty"`
	Peer       *PeerConfig       `yaml:"peer,omitempty"`
	Encryption *EncryptionConfig `yaml:"encryption,omitempty"`
	Log        *LogConfig        `yaml:"log,omitempty"`
}

// PeerConfig configures the local endpoint.
type PeerConfig struct {
	// ID is this endpoint's peer id on the relay.
	ID string `yaml:"id"`

	// ConnectTimeout bounds how long a connection may stay connecting,
	// as a Go duration string. Empty or "0" waits indefinitely.
	ConnectTimeout string `yaml:"connect_timeout"`
}

// SignalingConfig configures the relay client.
type SignalingConfig struct {
	// Server is the relay WebSocket URL (ws:// or wss://).
	// Default: ws://localhost:8765/
	Server string `yaml:"server"`
}

// RelayConfig configures peerlink-relay.
type RelayConfig struct {
	// Listen is the TCP address the relay serves on.
	// Default: :8765
	Listen string `yaml:"listen"`
}

// EncryptionConfig controls end-to-end content encryption.
type EncryptionConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Format is "text" or "json". Default: text
	Format string `yaml:"format"`

	// Level is "debug", "info", "warn", or "error". Default: info
	Level string `yaml:"level"`
}

// Default returns the default configuration. Binaries start from it
// when no file is given; LoadFile merges the file on top of it.
func Default() *Config {
	return &Config{
		Environment: Development,
		Signaling: SignalingConfig{
			Server: "ws://localhost:8765/",
		},
		Relay: RelayConfig{
			Listen: ":8765",
		},
		Encryption: EncryptionConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load loads configuration from the PEERLINK_CONFIG environment
// variable. It fails if the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your peerlink.yaml config file, or use --config flag", EnvVar)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current
// config. Files ending in .json or .jsonc may carry comments and
// trailing commas; they are stripped to plain JSON, which the YAML
// decoder accepts as-is.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	switch filepath.Ext(path) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: encrypted content, bounded connects.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Encryption: &EncryptionConfig{Enabled: true},
				Peer:       &PeerConfig{ConnectTimeout: "30s"},
				Log:        &LogConfig{Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Signaling != nil && overrides.Signaling.Server != "" {
		c.Signaling.Server = overrides.Signaling.Server
	}

	if overrides.Peer != nil {
		if overrides.Peer.ID != "" {
			c.Peer.ID = overrides.Peer.ID
		}
		if overrides.Peer.ConnectTimeout != "" {
			c.Peer.ConnectTimeout = overrides.Peer.ConnectTimeout
		}
	}

	// Enabled is a bool, so we always apply it from overrides.
	if overrides.Encryption != nil {
		c.Encryption.Enabled = overrides.Encryption.Enabled
	}

	if overrides.Log != nil {
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// address fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Peer.ID = expandVars(c.Peer.ID, vars)
	c.Signaling.Server = expandVars(c.Signaling.Server, vars)
	c.Relay.Listen = expandVars(c.Relay.Listen, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// ConnectTimeout parses Peer.ConnectTimeout. Empty means zero.
func (c *Config) ConnectTimeout() (time.Duration, error) {
	if c.Peer.ConnectTimeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(c.Peer.ConnectTimeout)
	if err != nil {
		return 0, fmt.Errorf("peer.connect_timeout: %w", err)
	}
	if timeout < 0 {
		return 0, fmt.Errorf("peer.connect_timeout must not be negative, got %s", timeout)
	}
	return timeout, nil
}

// Validate checks the configuration for errors. Peer.ID is not
// required here: the relay has none, and peers may take it from a flag.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Signaling.Server == "" {
		errs = append(errs, fmt.Errorf("signaling.server is required"))
	} else if parsed, err := url.Parse(c.Signaling.Server); err != nil {
		errs = append(errs, fmt.Errorf("signaling.server: %w", err))
	} else if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		errs = append(errs, fmt.Errorf("signaling.server must use ws:// or wss://, got %q", c.Signaling.Server))
	}

	if c.Relay.Listen == "" {
		errs = append(errs, fmt.Errorf("relay.listen is required"))
	}

	for index, server := range c.ICEServers {
		if len(server.URLs) == 0 {
			errs = append(errs, fmt.Errorf("ice_servers[%d]: urls is required", index))
		}
	}

	if _, err := c.ConnectTimeout(); err != nil {
		errs = append(errs, err)
	}

	if !slices.Contains([]string{"text", "json"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: [text json]"))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: [debug info warn error]"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// NewLogger builds the slog logger the binaries use. verbose forces
// debug level regardless of Level.
func (l LogConfig) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch l.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	options := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, options))
	}
	return slog.New(slog.NewTextHandler(w, options))
}
