// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5000, cfg.Relay.Port)
	assert.Equal(t, []string{"*"}, cfg.Relay.AllowedOrigins)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.Upstream.Model)
	assert.Equal(t, "Llama 3.3 70B (Free)", cfg.Upstream.ModelLabel)
	assert.Equal(t, "Groq", cfg.Upstream.ProviderLabel)
	assert.Equal(t, 0.7, cfg.Upstream.Temperature)
	assert.Equal(t, 2000, cfg.Upstream.MaxTokens)
	assert.Equal(t, "http://localhost:5000", cfg.Client.RelayURL)
	assert.Equal(t, 15*time.Millisecond, cfg.StreamInterval())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromPathMissingFile(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Relay.Port, cfg.Relay.Port)
}

func TestLoadFromPathOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[relay]
port = 8080
allowed_origins = ["http://app.example.com"]

[upstream]
model = "llama-3.1-8b-instant"
model_label = "Llama 3.1 8B"
frontend_origin = "https://chat.example.com"

[ui]
theme = "dark"
stream_interval_ms = 30
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Relay.Port)
	assert.Equal(t, []string{"http://app.example.com"}, cfg.Relay.AllowedOrigins)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Upstream.Model)
	assert.Equal(t, "Llama 3.1 8B", cfg.Upstream.ModelLabel)
	assert.Equal(t, "https://chat.example.com", cfg.Upstream.FrontendOrigin)
	// Untouched sections keep defaults.
	assert.Equal(t, "Groq", cfg.Upstream.ProviderLabel)
	assert.Equal(t, "dark", cfg.UI.Theme)
	assert.Equal(t, 30*time.Millisecond, cfg.StreamInterval())
}

func TestLoadFromPathInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("relay = [broken"), 0600))

	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk_test123")
	t.Setenv("PORT", "9000")
	t.Setenv("LOOM_RELAY_URL", "http://relay.internal:9000")
	t.Setenv("LOOM_THEME", "light")
	t.Setenv("LOOM_FRONTEND_ORIGIN", "https://chat.example.com")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "gsk_test123", cfg.Upstream.APIKey)
	assert.Equal(t, 9000, cfg.Relay.Port)
	assert.Equal(t, "http://relay.internal:9000", cfg.Client.RelayURL)
	assert.Equal(t, "light", cfg.UI.Theme)
	assert.Equal(t, "https://chat.example.com", cfg.Upstream.FrontendOrigin)
}

func TestEnvOverridesIgnoreBadPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 5000, cfg.Relay.Port)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Relay.Port = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.UI.Theme = "neon"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.UI.StreamIntervalMs = -5
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	cfg.Relay.Port = 7777
	cfg.UI.Theme = "light"

	require.NoError(t, Save(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 7777, loaded.Relay.Port)
	assert.Equal(t, "light", loaded.UI.Theme)
}

func TestWatchReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, Save(Default(), path))

	reloaded := make(chan *Config, 1)
	w, err := Watch(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()

	cfg := Default()
	cfg.Relay.Port = 6006
	require.NoError(t, Save(cfg, path))

	select {
	case got := <-reloaded:
		assert.Equal(t, 6006, got.Relay.Port)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not deliver reloaded config")
	}
}
