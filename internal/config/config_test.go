// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chat.Columns != 1 || cfg.UI.Theme != "auto" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Chat.StreamBatchSize != 15 || cfg.Chat.StreamMaxFPS != 30 {
		t.Errorf("stream defaults not applied: %+v", cfg.Chat)
	}
}

func TestLoadSparseFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[chat]\ncolumns = 3\n\n[ui]\ntheme = \"dark\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chat.Columns != 3 {
		t.Errorf("columns = %d", cfg.Chat.Columns)
	}
	if cfg.UI.Theme != "dark" {
		t.Errorf("theme = %q", cfg.UI.Theme)
	}
	// Unset sections still get defaults.
	if cfg.Backend.BaseURL == "" || cfg.Backend.TimeoutSeconds != 30 {
		t.Errorf("backend defaults missing: %+v", cfg.Backend)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad url", func(c *Config) { c.Backend.BaseURL = "not-a-url" }},
		{"zero columns", func(c *Config) { c.Chat.Columns = 0 }},
		{"five columns", func(c *Config) { c.Chat.Columns = 5 }},
		{"bad theme", func(c *Config) { c.UI.Theme = "solarized" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.fillDefaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid config")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	cfg.Chat.Columns = 2
	cfg.UI.Theme = "light"
	cfg.Chat.DefaultModels = []string{"gpt-4.1", "claude-3-opus"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Chat.Columns != 2 || loaded.UI.Theme != "light" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
	if len(loaded.Chat.DefaultModels) != 2 || loaded.Chat.DefaultModels[0] != "gpt-4.1" {
		t.Errorf("default models lost: %v", loaded.Chat.DefaultModels)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MULTICHAT_BACKEND_URL", "https://override.example.com")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "https://override.example.com" {
		t.Errorf("env override ignored: %q", cfg.Backend.BaseURL)
	}
}
