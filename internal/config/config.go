// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for the loom relay and
// chat client.
//
// Configuration is TOML with sensible defaults and environment variable
// overrides. File location: ~/.loom/config.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/loomchat/loom/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete loom configuration.
type Config struct {
	// Relay server settings.
	Relay RelayConfig `toml:"relay"`

	// Upstream (Groq) settings.
	Upstream UpstreamConfig `toml:"upstream"`

	// Client settings for the TUI and plain-mode REPL.
	Client ClientConfig `toml:"client"`

	// UI settings.
	UI UIConfig `toml:"ui"`

	// Storage settings.
	Storage StorageConfig `toml:"storage"`
}

// RelayConfig contains relay server configuration.
type RelayConfig struct {
	// Port the relay listens on.
	Port int `toml:"port"`
	// AllowedOrigins for CORS. ["*"] allows any origin.
	AllowedOrigins []string `toml:"allowed_origins"`
}

// UpstreamConfig contains Groq upstream configuration.
type UpstreamConfig struct {
	// APIKey is the Groq API key. Usually provided via GROQ_API_KEY
	// rather than the config file.
	APIKey string `toml:"api_key"`
	// BaseURL overrides the Groq API base URL.
	BaseURL string `toml:"base_url"`
	// Model is the model identifier sent upstream.
	Model string `toml:"model"`
	// ModelLabel and ProviderLabel are the cosmetic names reported to
	// chat clients.
	ModelLabel    string `toml:"model_label"`
	ProviderLabel string `toml:"provider_label"`
	// Temperature and MaxTokens tune the completion request.
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	// TimeoutSecs bounds one upstream request.
	TimeoutSecs int `toml:"timeout_secs"`
	// FrontendOrigin is the externally visible origin reported in the
	// attribution headers of upstream requests. Overridable via
	// LOOM_FRONTEND_ORIGIN.
	FrontendOrigin string `toml:"frontend_origin"`
}

// ClientConfig contains settings for the chat client.
type ClientConfig struct {
	// RelayURL is the relay server address.
	RelayURL string `toml:"relay_url"`
	// TimeoutSecs bounds one relay round trip.
	TimeoutSecs int `toml:"timeout_secs"`
}

// UIConfig contains UI settings.
type UIConfig struct {
	// Theme is "dark", "light", or "auto".
	Theme string `toml:"theme"`
	// StreamIntervalMs is the simulated streaming tick in milliseconds.
	StreamIntervalMs int `toml:"stream_interval_ms"`
	// WelcomeMessage is shown when a fresh conversation opens. Empty
	// disables the greeting.
	WelcomeMessage string `toml:"welcome_message"`
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	// Path to the SQLite database file. Empty uses ~/.loom/loom.db.
	Path string `toml:"path"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultWelcome is the greeting shown on a fresh conversation.
const DefaultWelcome = "Welcome to Loom! Ask me anything - research, document analysis, code, and more."

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			Port:           5000,
			AllowedOrigins: []string{"*"},
		},
		Upstream: UpstreamConfig{
			Model:         "llama-3.3-70b-versatile",
			ModelLabel:    "Llama 3.3 70B (Free)",
			ProviderLabel: "Groq",
			Temperature:   0.7,
			MaxTokens:     2000,
			TimeoutSecs:   60,
		},
		Client: ClientConfig{
			RelayURL:    "http://localhost:5000",
			TimeoutSecs: 90,
		},
		UI: UIConfig{
			Theme:            "auto",
			StreamIntervalMs: 15,
			WelcomeMessage:   DefaultWelcome,
		},
		Storage: StorageConfig{},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the loom configuration directory (~/.loom).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".loom"), nil
}

// Path returns the configuration file path (~/.loom/config.toml).
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// StoragePath resolves the SQLite database path, defaulting to
// ~/.loom/loom.db when the config leaves it empty.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "loom.db"), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the configuration: defaults, then ~/.loom/config.toml if it
// exists, then environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from the given file, falling back to
// defaults when it does not exist. Environment overrides always apply.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the given path atomically.
func Save(cfg *Config, path string) error {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, []byte(sb.String()), 0600)
}

// ApplyEnvOverrides applies environment variables over the loaded values.
//
//	GROQ_API_KEY          upstream API key
//	PORT                  relay listen port
//	LOOM_RELAY_URL        relay address for clients
//	LOOM_THEME            UI theme
//	LOOM_FRONTEND_ORIGIN  origin reported in upstream attribution headers
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		c.Upstream.APIKey = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Relay.Port = port
		}
	}
	if v := os.Getenv("LOOM_RELAY_URL"); v != "" {
		c.Client.RelayURL = v
	}
	if v := os.Getenv("LOOM_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("LOOM_FRONTEND_ORIGIN"); v != "" {
		c.Upstream.FrontendOrigin = v
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Relay.Port <= 0 || c.Relay.Port > 65535 {
		return fmt.Errorf("invalid relay port %d", c.Relay.Port)
	}
	if c.UI.StreamIntervalMs < 0 {
		return fmt.Errorf("invalid stream interval %dms", c.UI.StreamIntervalMs)
	}
	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		return fmt.Errorf("invalid theme %q (want dark, light, or auto)", c.UI.Theme)
	}
	if c.Upstream.MaxTokens < 0 {
		return fmt.Errorf("invalid max_tokens %d", c.Upstream.MaxTokens)
	}
	return nil
}

// StreamInterval returns the simulated streaming tick as a duration.
func (c *Config) StreamInterval() time.Duration {
	return time.Duration(c.UI.StreamIntervalMs) * time.Millisecond
}

// ClientTimeout returns the relay round-trip timeout as a duration.
func (c *Config) ClientTimeout() time.Duration {
	return time.Duration(c.Client.TimeoutSecs) * time.Second
}

// UpstreamTimeout returns the upstream request timeout as a duration.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSecs) * time.Second
}
