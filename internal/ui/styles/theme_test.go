// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "testing"

func TestNewThemeModes(t *testing.T) {
	for _, mode := range []string{"dark", "light", "auto"} {
		th := NewTheme(mode)
		if th == nil {
			t.Fatalf("NewTheme(%q) returned nil", mode)
		}
	}

	if th := NewTheme("dark"); !th.IsDark {
		t.Error("forced dark theme reports light background")
	}
	if th := NewTheme("light"); th.IsDark {
		t.Error("forced light theme reports dark background")
	}
}

func TestMaxVisibleColumns(t *testing.T) {
	tests := []struct {
		width int
		want  int
	}{
		{40, 1},
		{59, 1},
		{60, 2},
		{119, 2},
		{120, 4},
		{200, 4},
	}
	th := NewTheme("auto")
	for _, tt := range tests {
		th.SetSize(tt.width, 40)
		if got := th.MaxVisibleColumns(); got != tt.want {
			t.Errorf("width %d: columns = %d, want %d", tt.width, got, tt.want)
		}
	}
}

func TestColumnAccentWraps(t *testing.T) {
	if ColumnAccent(0) != ColumnAccent(len(ColumnAccents)) {
		t.Error("accent does not wrap around")
	}
	// Negative indexes must not panic.
	_ = ColumnAccent(-1)
}
