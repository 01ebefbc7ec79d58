// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for multichat.
//
// Configuration lives in TOML at ~/.config/multichat/config.toml, with
// sensible defaults for every field and environment variable overrides for
// the backend URL. A file watcher hot-reloads UI-facing settings into the
// running TUI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Rajbasheer/multichat-tui/internal/model"
	"github.com/Rajbasheer/multichat-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete multichat configuration.
type Config struct {
	// Backend connection
	Backend BackendConfig `toml:"backend"`

	// Chat layout and behavior
	Chat ChatConfig `toml:"chat"`

	// UI appearance
	UI UIConfig `toml:"ui"`

	// Local history mirror and search index
	History HistoryConfig `toml:"history"`
}

// BackendConfig describes how to reach the platform backend.
type BackendConfig struct {
	// BaseURL of the REST backend, e.g. "https://chat.example.com".
	BaseURL string `toml:"base_url"`

	// TimeoutSeconds bounds unary requests; streams are exempt.
	TimeoutSeconds int `toml:"timeout_seconds"`

	// RateLimit is the outgoing request budget in requests per second.
	// Zero disables client-side pacing.
	RateLimit float64 `toml:"rate_limit"`
}

// ChatConfig holds the column layout and streaming knobs.
type ChatConfig struct {
	// Columns is the parallel pane count, clamped to 1..4.
	Columns int `toml:"columns"`

	// DefaultModels optionally pre-binds model keys to columns, index 0
	// first. Keys not in the catalog are ignored.
	DefaultModels []string `toml:"default_models"`

	// StreamBatchSize is how many tokens accumulate before a render flush.
	StreamBatchSize int `toml:"stream_batch_size"`

	// StreamMaxFPS caps render flushes per second while streaming.
	StreamMaxFPS int `toml:"stream_max_fps"`
}

// UIConfig holds appearance settings.
type UIConfig struct {
	// Theme is "dark", "light", or "auto" (detect from the terminal).
	Theme string `toml:"theme"`
}

// HistoryConfig controls the local conversation mirror.
type HistoryConfig struct {
	// Dir is where conversations are mirrored for offline search. Empty
	// means <config dir>/history.
	Dir string `toml:"dir"`

	// IndexEnabled turns the local full-text search index on.
	IndexEnabled bool `toml:"index_enabled"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:        "http://127.0.0.1:8000",
			TimeoutSeconds: 30,
			RateLimit:      8,
		},
		Chat: ChatConfig{
			Columns:         1,
			StreamBatchSize: 15,
			StreamMaxFPS:    30,
		},
		UI: UIConfig{
			Theme: "auto",
		},
		History: HistoryConfig{
			IndexEnabled: true,
		},
	}
}

// Dir returns the multichat config directory, creating nothing.
func Dir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "multichat")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".multichat")
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// TokenPath returns where the session token is persisted.
func TokenPath() string {
	return filepath.Join(Dir(), "session.json")
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config at path (DefaultPath when empty), fills defaults for
// zero values, applies environment overrides, and validates. A missing file
// yields the defaults, not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	if data, err := os.ReadFile(path); err == nil {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config atomically to path (DefaultPath when empty).
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return util.AtomicWriteFile(path, []byte(sb.String()), 0644)
}

// applyEnv overrides selected fields from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("MULTICHAT_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
}

// fillDefaults replaces zero values with the built-in defaults so a sparse
// config file still yields a complete configuration.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = def.Backend.BaseURL
	}
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = def.Backend.TimeoutSeconds
	}
	if c.Chat.Columns == 0 {
		c.Chat.Columns = def.Chat.Columns
	}
	if c.Chat.StreamBatchSize <= 0 {
		c.Chat.StreamBatchSize = def.Chat.StreamBatchSize
	}
	if c.Chat.StreamMaxFPS <= 0 {
		c.Chat.StreamMaxFPS = def.Chat.StreamMaxFPS
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
	if c.History.Dir == "" {
		c.History.Dir = filepath.Join(Dir(), "history")
	}
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("backend.base_url must be an http(s) URL, got %q", c.Backend.BaseURL)
	}
	if c.Chat.Columns < model.MinColumns || c.Chat.Columns > model.MaxColumns {
		return fmt.Errorf("chat.columns must be between %d and %d, got %d",
			model.MinColumns, model.MaxColumns, c.Chat.Columns)
	}
	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		return fmt.Errorf("ui.theme must be dark, light, or auto, got %q", c.UI.Theme)
	}
	return nil
}

// Timeout returns the unary request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}
