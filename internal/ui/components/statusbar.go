// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Rajbasheer/multichat-tui/internal/ui/styles"
	"github.com/Rajbasheer/multichat-tui/internal/util"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Status represents the current application status.
type Status int

const (
	StatusReady Status = iota
	StatusStreaming
	StatusLoading
	StatusError
	StatusOffline
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusStreaming:
		return "Streaming..."
	case StatusLoading:
		return "Loading..."
	case StatusError:
		return "Error"
	case StatusOffline:
		return "Offline"
	default:
		return "Unknown"
	}
}

// StatusBar is the bottom status bar: conversation title, column summary,
// session state and keyboard hints.
type StatusBar struct {
	Width         int
	Title         string // active conversation title
	Columns       int    // bound column count
	Streaming     int    // columns currently streaming
	Status        Status
	SessionWarn   time.Duration // >0 when session expiry warning is active
	Unsaved       bool          // last turn has columns that failed to persist
	ShowShortcuts bool

	theme *styles.Theme
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Width:         80,
		Status:        StatusReady,
		ShowShortcuts: true,
		theme:         theme,
	}
}

// SetWidth updates the status bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// View renders the status bar.
func (s *StatusBar) View() string {
	if s.Width < 60 {
		return s.viewNarrow()
	}
	return s.viewWide()
}

func (s *StatusBar) viewNarrow() string {
	parts := []string{s.statusStyle().Render(s.Status.String())}

	if s.Columns > 0 {
		parts = append(parts, s.theme.ShortcutDesc.Render(
			util.IntToString(s.Columns)+" col"))
	}
	if s.SessionWarn > 0 {
		parts = append(parts, s.theme.StatusWarn.Render(s.warnText()))
	}

	sep := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" | ")
	return s.theme.StatusBar.Width(s.Width).Render(strings.Join(parts, sep))
}

func (s *StatusBar) viewWide() string {
	var left []string

	if s.Title != "" {
		left = append(left, s.theme.ShortcutDesc.Render(
			util.TruncateRunes(s.Title, 32)))
	}
	if s.Columns > 0 {
		summary := util.IntToString(s.Columns) + " columns"
		if s.Streaming > 0 {
			summary += " (" + util.IntToString(s.Streaming) + " streaming)"
		}
		left = append(left, s.theme.ShortcutDesc.Render(summary))
	}
	if s.Unsaved {
		left = append(left, s.theme.StatusWarn.Render("unsaved"))
	}
	if s.SessionWarn > 0 {
		left = append(left, s.theme.StatusWarn.Render(s.warnText()))
	}

	sep := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" | ")
	leftSection := strings.Join(left, sep)

	var right []string
	right = append(right, s.statusStyle().Render(s.Status.String()))
	if s.ShowShortcuts {
		right = append(right, s.renderShortcuts())
	}
	rightSection := strings.Join(right, " ")

	spacing := s.Width - lipgloss.Width(leftSection) - lipgloss.Width(rightSection) - 4
	if spacing < 1 {
		spacing = 1
	}

	return s.theme.StatusBar.Width(s.Width).Render(
		leftSection + strings.Repeat(" ", spacing) + rightSection)
}

func (s *StatusBar) warnText() string {
	secs := int(s.SessionWarn.Seconds())
	return "session expires in " + util.IntToString(secs) + "s"
}

func (s *StatusBar) renderShortcuts() string {
	shortcuts := []string{
		s.theme.ShortcutKey.Render("^P") + s.theme.ShortcutDesc.Render("models"),
		s.theme.ShortcutKey.Render("^O") + s.theme.ShortcutDesc.Render("chats"),
		s.theme.ShortcutKey.Render("^C") + s.theme.ShortcutDesc.Render("quit"),
	}
	return strings.Join(shortcuts, " ")
}

func (s *StatusBar) statusStyle() lipgloss.Style {
	switch s.Status {
	case StatusReady:
		return s.theme.StatusOK
	case StatusStreaming, StatusLoading:
		return s.theme.StatusBusy
	case StatusError:
		return s.theme.StatusError
	default:
		return s.theme.ShortcutDesc
	}
}
