// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/Rajbasheer/multichat-tui/internal/ui/styles"
	"github.com/Rajbasheer/multichat-tui/internal/util"
)

// =============================================================================
// OVERLAY LIST
// =============================================================================

// ListItem is one selectable row in an overlay list.
type ListItem struct {
	Title string // primary display text
	Desc  string // secondary text (provider, timestamp, snippet)
	Value string // opaque identifier returned on selection
}

// OverlayList is a filterable selection list rendered as a centered overlay.
// Used for the model picker, the conversation list and search results.
type OverlayList struct {
	title    string
	items    []ListItem
	filtered []int
	filter   string
	cursor   int
	maxRows  int
	theme    *styles.Theme
}

// NewOverlayList creates an overlay list with the given heading.
func NewOverlayList(title string, theme *styles.Theme) *OverlayList {
	return &OverlayList{
		title:   title,
		maxRows: 12,
		theme:   theme,
	}
}

// SetItems replaces the list contents and resets filter and cursor.
func (l *OverlayList) SetItems(items []ListItem) {
	l.items = items
	l.filter = ""
	l.cursor = 0
	l.refilter()
}

// SetTitle updates the heading.
func (l *OverlayList) SetTitle(title string) {
	l.title = title
}

// Len returns the number of visible (filtered) items.
func (l *OverlayList) Len() int {
	return len(l.filtered)
}

// MoveUp moves the cursor up one row.
func (l *OverlayList) MoveUp() {
	if l.cursor > 0 {
		l.cursor--
	}
}

// MoveDown moves the cursor down one row.
func (l *OverlayList) MoveDown() {
	if l.cursor < len(l.filtered)-1 {
		l.cursor++
	}
}

// Type appends text to the filter.
func (l *OverlayList) Type(s string) {
	l.filter += s
	l.refilter()
}

// Backspace removes the last filter rune.
func (l *OverlayList) Backspace() {
	runes := []rune(l.filter)
	if len(runes) == 0 {
		return
	}
	l.filter = string(runes[:len(runes)-1])
	l.refilter()
}

// Selected returns the item under the cursor.
func (l *OverlayList) Selected() (ListItem, bool) {
	if l.cursor < 0 || l.cursor >= len(l.filtered) {
		return ListItem{}, false
	}
	return l.items[l.filtered[l.cursor]], true
}

// refilter recomputes visible rows with a case-insensitive substring match
// over title and description.
func (l *OverlayList) refilter() {
	l.filtered = l.filtered[:0]
	needle := strings.ToLower(l.filter)
	for i, item := range l.items {
		if needle == "" ||
			strings.Contains(strings.ToLower(item.Title), needle) ||
			strings.Contains(strings.ToLower(item.Desc), needle) {
			l.filtered = append(l.filtered, i)
		}
	}
	if l.cursor >= len(l.filtered) {
		l.cursor = len(l.filtered) - 1
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
}

// View renders the overlay box.
func (l *OverlayList) View() string {
	var sb strings.Builder
	sb.WriteString(l.theme.OverlayTitle.Render(l.title))
	if l.filter != "" {
		sb.WriteString(l.theme.ListMeta.Render("  /" + l.filter))
	}
	sb.WriteString("\n\n")

	if len(l.filtered) == 0 {
		sb.WriteString(l.theme.ListMeta.Render("no matches"))
		return l.theme.OverlayBox.Render(sb.String())
	}

	// Scroll window keeps the cursor visible.
	start := 0
	if l.cursor >= l.maxRows {
		start = l.cursor - l.maxRows + 1
	}
	end := start + l.maxRows
	if end > len(l.filtered) {
		end = len(l.filtered)
	}

	for row := start; row < end; row++ {
		item := l.items[l.filtered[row]]
		line := util.TruncateRunes(item.Title, 48)
		if item.Desc != "" {
			line += "  " + l.theme.ListMeta.Render(util.TruncateRunes(item.Desc, 40))
		}
		if row == l.cursor {
			sb.WriteString(l.theme.ListItemSelected.Render("> " + line))
		} else {
			sb.WriteString(l.theme.ListItem.Render("  " + line))
		}
		if row < end-1 {
			sb.WriteString("\n")
		}
	}

	return l.theme.OverlayBox.Render(sb.String())
}
