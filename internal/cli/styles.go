// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Rajbasheer/multichat-tui/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	okStyle = lipgloss.NewStyle().
		Foreground(styles.Emerald)

	warnStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)
)
