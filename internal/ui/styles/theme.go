// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the application. It detects the
// terminal's color capability and adjusts accordingly; a configured theme
// of "dark" or "light" overrides background detection.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// APPLICATION CONTAINER STYLES
	// ==========================================================================

	App       lipgloss.Style
	Container lipgloss.Style

	// ==========================================================================
	// COLUMN STYLES
	// ==========================================================================

	Column            lipgloss.Style
	ColumnFocused     lipgloss.Style
	ColumnHeader      lipgloss.Style
	ColumnHeaderDim   lipgloss.Style
	ColumnPlaceholder lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	UserText       lipgloss.Style
	AssistantLabel lipgloss.Style
	AssistantText  lipgloss.Style
	StreamingText  lipgloss.Style
	ErrorText      lipgloss.Style
	AttachmentTag  lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputPlaceholder lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	StatusOK     lipgloss.Style
	StatusBusy   lipgloss.Style
	StatusError  lipgloss.Style
	StatusWarn   lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// OVERLAY LIST STYLES (model picker, conversation list, search)
	// ==========================================================================

	OverlayBox       lipgloss.Style
	OverlayTitle     lipgloss.Style
	ListItem         lipgloss.Style
	ListItemSelected lipgloss.Style
	ListMeta         lipgloss.Style
	SearchSnippet    lipgloss.Style

	// ==========================================================================
	// SPINNER AND LOADING STYLES
	// ==========================================================================

	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style
}

// NewTheme creates a theme. mode is "dark", "light" or "auto".
func NewTheme(mode string) *Theme {
	colorProfile := termenv.ColorProfile()

	switch mode {
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	case "light":
		lipgloss.SetHasDarkBackground(false)
	}

	t := &Theme{
		IsDark:       lipgloss.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}

	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle()
	t.Container = lipgloss.NewStyle().Padding(0, 1)

	// Columns
	t.Column = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.ColumnFocused = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(0, 1)

	t.ColumnHeader = lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1)

	t.ColumnHeaderDim = lipgloss.NewStyle().
		Foreground(TextMuted).
		Padding(0, 1)

	t.ColumnPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		Align(lipgloss.Center)

	// Messages
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(UserFg)

	t.UserText = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(UserBorder).
		PaddingLeft(1)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(AssistantFg)

	t.AssistantText = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(1)

	t.StreamingText = lipgloss.NewStyle().
		Foreground(TextSecondary).
		PaddingLeft(1)

	t.ErrorText = lipgloss.NewStyle().
		Foreground(Rose).
		PaddingLeft(1)

	t.AttachmentTag = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusOK = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.StatusBusy = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.StatusError = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.StatusWarn = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Overlay lists
	t.OverlayBox = lipgloss.NewStyle().
		Background(Surface).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(1, 2)

	t.OverlayTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.ListItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Padding(0, 1)

	t.ListItemSelected = lipgloss.NewStyle().
		Background(Purple).
		Foreground(TextInverse).
		Bold(true).
		Padding(0, 1)

	t.ListMeta = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.SearchSnippet = lipgloss.NewStyle().
		Foreground(TextSecondary).
		PaddingLeft(2)

	// Spinner
	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.ThinkingText = lipgloss.NewStyle().
		Foreground(TextSecondary)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// MaxVisibleColumns returns how many chat columns fit at the current width.
// Below 60 columns the layout collapses to a single chat column.
func (t *Theme) MaxVisibleColumns() int {
	switch {
	case t.Width < 60:
		return 1
	case t.Width < 120:
		return 2
	default:
		return 4
	}
}
