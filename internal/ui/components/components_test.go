// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"

	"github.com/Rajbasheer/multichat-tui/internal/ui/styles"
)

func TestSpinnerInactiveRendersNothing(t *testing.T) {
	s := NewSpinner()
	if s.View() != "" {
		t.Error("inactive spinner rendered output")
	}

	s.Start()
	if !s.IsActive() {
		t.Error("spinner not active after Start")
	}
	if s.View() == "" {
		t.Error("active spinner rendered nothing")
	}

	s.Stop()
	if s.View() != "" {
		t.Error("stopped spinner still renders")
	}
}

func TestStatusBarNarrowAndWide(t *testing.T) {
	theme := styles.NewTheme("dark")
	bar := NewStatusBar(theme)
	bar.Title = "Chat with GPT-4"
	bar.Columns = 2
	bar.Streaming = 1
	bar.Status = StatusStreaming

	bar.SetWidth(40)
	if bar.View() == "" {
		t.Error("narrow view empty")
	}

	bar.SetWidth(120)
	wide := bar.View()
	if !strings.Contains(wide, "2 columns") {
		t.Errorf("wide view missing column summary: %q", wide)
	}
	if !strings.Contains(wide, "Streaming") {
		t.Errorf("wide view missing status: %q", wide)
	}
}

func TestOverlayListFilterAndSelect(t *testing.T) {
	theme := styles.NewTheme("dark")
	list := NewOverlayList("Models", theme)
	list.SetItems([]ListItem{
		{Title: "GPT-4.1", Desc: "openai", Value: "gpt-4.1"},
		{Title: "Claude 3 Opus", Desc: "claude", Value: "claude-3-opus"},
		{Title: "Gemini Pro", Desc: "gemini", Value: "gemini-pro"},
	})

	if list.Len() != 3 {
		t.Fatalf("Len = %d", list.Len())
	}

	list.Type("cla")
	if list.Len() != 1 {
		t.Fatalf("filtered Len = %d", list.Len())
	}
	item, ok := list.Selected()
	if !ok || item.Value != "claude-3-opus" {
		t.Errorf("Selected = %+v, %v", item, ok)
	}

	list.Backspace()
	list.Backspace()
	list.Backspace()
	if list.Len() != 3 {
		t.Errorf("Len after clearing filter = %d", list.Len())
	}

	list.MoveDown()
	list.MoveDown()
	list.MoveDown() // clamped at last row
	item, _ = list.Selected()
	if item.Value != "gemini-pro" {
		t.Errorf("cursor item = %q", item.Value)
	}
}

func TestOverlayListEmpty(t *testing.T) {
	theme := styles.NewTheme("dark")
	list := NewOverlayList("Empty", theme)
	list.SetItems(nil)

	if _, ok := list.Selected(); ok {
		t.Error("Selected on empty list returned ok")
	}
	if !strings.Contains(list.View(), "no matches") {
		t.Error("empty list view missing placeholder")
	}
}

func TestMarkdownFallsBackToPlain(t *testing.T) {
	m := NewMarkdown(60)
	out := m.Render("# Title\n\nbody text")
	if out == "" {
		t.Error("markdown rendered empty")
	}
	if !strings.Contains(out, "Title") {
		t.Errorf("rendered output lost content: %q", out)
	}
}

func TestHighlightCodeUnknownLanguage(t *testing.T) {
	code := "completely unhighlightable $$$ content"
	if got := HighlightCode(code, "nosuchlang"); got == "" {
		t.Error("highlight returned empty for unknown language")
	}
}

func TestCodeBlockRender(t *testing.T) {
	cb := NewCodeBlock("go", "package main\n\nfunc main() {}\n")
	out := cb.Render()
	if out == "" {
		t.Fatal("empty render")
	}
	if !strings.Contains(out, "go") {
		t.Error("language badge missing")
	}
}
