// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"sync"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// Markdown renders assistant responses for terminal display. Committed
// messages are rendered through glamour; streaming partials stay plain so
// half-finished fences do not flicker.
type Markdown struct {
	mu       sync.Mutex
	renderer *glamour.TermRenderer
	width    int
}

// NewMarkdown creates a renderer wrapping at width columns.
func NewMarkdown(width int) *Markdown {
	m := &Markdown{}
	m.SetWidth(width)
	return m
}

// SetWidth rebuilds the renderer for a new wrap width. Cheap enough to call
// on every terminal resize.
func (m *Markdown) SetWidth(width int) {
	if width < 20 {
		width = 20
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.renderer != nil && m.width == width {
		return
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		// Fall back to plain text if renderer initialization fails.
		renderer = nil
	}
	m.renderer = renderer
	m.width = width
}

// Render renders markdown content. Returns the original content if rendering
// fails or the renderer is unavailable.
func (m *Markdown) Render(content string) string {
	m.mu.Lock()
	renderer := m.renderer
	m.mu.Unlock()

	if renderer == nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
