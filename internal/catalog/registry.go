// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog manages the provider/model catalog: fetched from the
// backend once per session, cached, and replaced by a built-in fallback when
// the fetch fails so the client stays usable offline.
package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/Rajbasheer/multichat-tui/internal/api"
	"github.com/Rajbasheer/multichat-tui/internal/model"
)

// Fetcher is the slice of the backend client the registry needs.
type Fetcher interface {
	Models(ctx context.Context) (api.Catalog, error)
}

// Registry caches the provider -> model catalog for the session.
type Registry struct {
	mu       sync.RWMutex
	catalog  api.Catalog
	fallback bool // true when serving the static catalog
	loaded   bool
}

// NewRegistry returns an empty registry; call Load before use.
func NewRegistry() *Registry {
	return &Registry{}
}

// Load fetches the catalog from the backend. On failure the static fallback
// catalog is installed and the fetch error returned so callers can surface
// the degradation without treating it as fatal.
func (r *Registry) Load(ctx context.Context, fetcher Fetcher) error {
	catalog, err := fetcher.Models(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = true
	if err != nil || len(catalog) == 0 {
		r.catalog = FallbackCatalog()
		r.fallback = true
		return err
	}
	r.catalog = catalog
	r.fallback = false
	return nil
}

// Loaded reports whether Load has run at least once.
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// UsingFallback reports whether the static catalog is in effect.
func (r *Registry) UsingFallback() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Providers returns the provider names in sorted order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	providers := make([]string, 0, len(r.catalog))
	for p := range r.catalog {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers
}

// Selections returns every model as an explicit (provider, key) selection,
// sorted by provider then display name. The selection travels with the
// column from the moment of choice; nothing downstream re-derives the
// provider from the key.
func (r *Registry) Selections() []model.Selection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Selection
	for provider, models := range r.catalog {
		for key, info := range models {
			out = append(out, model.Selection{
				Provider:    provider,
				Key:         key,
				DisplayName: info.Name,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out
}

// Resolve finds the selection for a model key, searching all providers.
// Used only when restoring persisted state (config defaults, saved
// conversations) where just the key was stored.
func (r *Registry) Resolve(key string) (model.Selection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for provider, models := range r.catalog {
		if info, ok := models[key]; ok {
			return model.Selection{Provider: provider, Key: key, DisplayName: info.Name}, true
		}
	}
	return model.Selection{}, false
}

// DisplayName returns the catalog name for a key, or a title-cased rendering
// of the key itself when it is not in the catalog.
func (r *Registry) DisplayName(key string) string {
	if sel, ok := r.Resolve(key); ok && sel.DisplayName != "" {
		return sel.DisplayName
	}
	return beautifyKey(key)
}

// beautifyKey turns "claude-3-opus" into "Claude 3 Opus".
func beautifyKey(key string) string {
	out := make([]rune, 0, len(key))
	upper := true
	for _, r := range key {
		if r == '-' || r == '_' {
			out = append(out, ' ')
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		out = append(out, r)
	}
	return string(out)
}

// FallbackCatalog is the static catalog used when GET /models fails. It
// mirrors the platform's default model set.
func FallbackCatalog() api.Catalog {
	return api.Catalog{
		"openai": {
			"gpt-4.1":     {Name: "GPT-4.1", ID: "gpt-4.1"},
			"gpt-4o":      {Name: "GPT-4o", ID: "gpt-4o"},
			"gpt-4o-mini": {Name: "GPT-4o Mini", ID: "gpt-4o-mini"},
		},
		"claude": {
			"claude-3-opus":   {Name: "Claude 3 Opus", ID: "claude-3-opus"},
			"claude-3-sonnet": {Name: "Claude 3 Sonnet", ID: "claude-3-sonnet"},
			"claude-3-haiku":  {Name: "Claude 3 Haiku", ID: "claude-3-haiku"},
		},
		"gemini": {
			"gemini-1.5-pro":   {Name: "Gemini 1.5 Pro", ID: "gemini-1.5-pro"},
			"gemini-1.5-flash": {Name: "Gemini 1.5 Flash", ID: "gemini-1.5-flash"},
		},
		"openrouter": {
			"llama-3-70b": {Name: "Llama 3 70B", ID: "meta-llama/llama-3-70b-instruct"},
			"mixtral":     {Name: "Mixtral 8x7B", ID: "mistralai/mixtral-8x7b-instruct"},
		},
	}
}
