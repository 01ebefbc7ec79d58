// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/Rajbasheer/multichat-tui/internal/api"
)

type fakeFetcher struct {
	catalog api.Catalog
	err     error
}

func (f *fakeFetcher) Models(ctx context.Context) (api.Catalog, error) {
	return f.catalog, f.err
}

func TestLoadCachesBackendCatalog(t *testing.T) {
	reg := NewRegistry()
	err := reg.Load(context.Background(), &fakeFetcher{catalog: api.Catalog{
		"openai": {"gpt-4.1": {Name: "GPT-4.1", ID: "gpt-4.1"}},
	}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reg.UsingFallback() {
		t.Error("should not be on fallback after successful load")
	}
	sel, ok := reg.Resolve("gpt-4.1")
	if !ok || sel.Provider != "openai" || sel.DisplayName != "GPT-4.1" {
		t.Errorf("Resolve = %#v, %v", sel, ok)
	}
}

func TestLoadFallsBackOnError(t *testing.T) {
	reg := NewRegistry()
	fetchErr := errors.New("backend down")
	err := reg.Load(context.Background(), &fakeFetcher{err: fetchErr})
	if !errors.Is(err, fetchErr) {
		t.Fatalf("Load should surface the fetch error, got %v", err)
	}
	if !reg.UsingFallback() {
		t.Fatal("fallback catalog not installed")
	}
	// The fallback must still let the user pick models.
	if len(reg.Selections()) == 0 {
		t.Error("fallback catalog is empty")
	}
	if _, ok := reg.Resolve("claude-3-opus"); !ok {
		t.Error("fallback catalog missing claude-3-opus")
	}
}

func TestSelectionsSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Load(context.Background(), &fakeFetcher{catalog: FallbackCatalog()})
	sels := reg.Selections()
	for i := 1; i < len(sels); i++ {
		prev, cur := sels[i-1], sels[i]
		if prev.Provider > cur.Provider {
			t.Fatalf("providers out of order: %q before %q", prev.Provider, cur.Provider)
		}
	}
}

func TestDisplayNameBeautifiesUnknownKeys(t *testing.T) {
	reg := NewRegistry()
	tests := []struct {
		key  string
		want string
	}{
		{"claude-3-opus", "Claude 3 Opus"},
		{"some_model", "Some Model"},
		{"gpt", "Gpt"},
	}
	for _, tt := range tests {
		if got := reg.DisplayName(tt.key); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
