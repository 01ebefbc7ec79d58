// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Rajbasheer/multichat-tui/internal/ui/components"
	"github.com/Rajbasheer/multichat-tui/internal/ui/styles"
	"github.com/Rajbasheer/multichat-tui/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full chat screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width <= 0 {
		return "loading..."
	}

	theme := m.deps.Theme

	var sections []string
	sections = append(sections, m.viewHeader())
	sections = append(sections, m.viewColumns())
	sections = append(sections, theme.InputContainer.Render(m.viewInput()))
	sections = append(sections, m.viewStatusBar())

	screen := lipgloss.JoinVertical(lipgloss.Left, sections...)

	if m.overlay != overlayNone {
		return m.viewOverlay(screen)
	}
	return screen
}

func (m Model) viewHeader() string {
	theme := m.deps.Theme

	brand := lipgloss.NewStyle().Bold(true).Foreground(styles.Cyan).Render("multichat " + m.deps.Version)
	title := m.deps.Store.ActiveTitle()
	if title == "" {
		title = "new conversation"
	}
	line := brand + "  " + theme.ListMeta.Render(util.TruncateWidth(title, m.width-20))
	if m.sessionExpired {
		line += "  " + theme.StatusError.Render("[logged out]")
	}
	return theme.Container.Render(line)
}

// viewColumns renders the chat panes side by side.
func (m Model) viewColumns() string {
	columns := m.deps.Store.Columns()
	panes := make([]string, 0, len(columns))
	for i := range columns {
		panes = append(panes, m.viewColumn(i))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, panes...)
}

func (m Model) viewColumn(i int) string {
	theme := m.deps.Theme
	col := m.deps.Store.Column(i)
	if col == nil || i >= len(m.viewports) {
		return ""
	}

	headerStyle := theme.ColumnHeaderDim
	label := "press C-p to bind a model"
	if col.Bound() {
		headerStyle = theme.ColumnHeader.Foreground(styles.ColumnAccent(i))
		label = col.Selection.Label()
	}
	if m.streaming && m.spinner.IsActive() && col.Bound() {
		label += " " + m.spinner.View()
	}
	header := headerStyle.Render(label)

	body := m.viewports[i].View()

	border := theme.Column
	if i == m.focused {
		border = theme.ColumnFocused
	}
	return border.Render(lipgloss.JoinVertical(lipgloss.Left, header, body))
}

// renderTranscript builds the text content of one column's viewport.
func (m *Model) renderTranscript(i int) string {
	theme := m.deps.Theme
	col := m.deps.Store.Column(i)
	if col == nil {
		return ""
	}
	if len(col.Messages) == 0 {
		if col.Bound() {
			return theme.ColumnPlaceholder.Render("Say something to " + col.Selection.Label())
		}
		return theme.ColumnPlaceholder.Render("No model bound")
	}

	width := 40
	if i < len(m.viewports) {
		width = m.viewports[i].Width - 2
	}

	var sb strings.Builder
	for idx := range col.Messages {
		msg := &col.Messages[idx]
		if idx > 0 {
			sb.WriteString("\n")
		}

		if msg.IsUser {
			sb.WriteString(theme.UserLabel.Render("You"))
			sb.WriteString("\n")
			sb.WriteString(theme.UserText.Width(width).Render(msg.Content))
			for _, att := range msg.Attachments {
				sb.WriteString("\n")
				sb.WriteString(theme.AttachmentTag.Render("[attachment] " + att.Name))
			}
			sb.WriteString("\n")
			continue
		}

		name := msg.ModelName
		if name == "" {
			name = col.Selection.Label()
		}
		sb.WriteString(theme.AssistantLabel.Render(name))
		sb.WriteString("\n")

		switch {
		case m.failedMsgs[msg.ID]:
			sb.WriteString(theme.ErrorText.Width(width).Render(msg.Content))
		case msg.Content == "":
			// Live stream: partial text accumulates in the buffer set.
			if partial, ok := m.deps.Dispatcher.Buffers().Partial(msg.ID); ok && partial != "" {
				sb.WriteString(theme.StreamingText.Width(width).Render(partial + "_"))
			} else {
				sb.WriteString(theme.StreamingText.Render("..."))
			}
		default:
			sb.WriteString(theme.AssistantText.Width(width).Render(
				strings.TrimRight(m.markdown.Render(msg.Content), "\n")))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) viewInput() string {
	view := m.input.View()
	if len(m.pendingFiles) > 0 {
		tag := m.deps.Theme.AttachmentTag.Render(
			"staged: " + strings.Join(m.pendingFiles, ", "))
		view += "\n" + tag
	}
	return view
}

func (m Model) viewStatusBar() string {
	st := m.deps.Store
	m.status.Title = st.ActiveTitle()
	m.status.Columns = len(st.BoundColumns())
	m.status.Unsaved = len(m.unsavedCols) > 0

	streamingCount := 0
	for _, idx := range st.BoundColumns() {
		if !m.deps.Dispatcher.State(idx).Terminal() && m.streaming {
			streamingCount++
		}
	}
	m.status.Streaming = streamingCount

	switch {
	case m.sessionExpired:
		m.status.Status = components.StatusError
	case m.streaming:
		m.status.Status = components.StatusStreaming
	default:
		m.status.Status = components.StatusReady
	}

	bar := m.status.View()
	if m.statusText != "" {
		style := m.deps.Theme.StatusOK
		if m.statusErr {
			style = m.deps.Theme.StatusError
		}
		bar = lipgloss.JoinVertical(lipgloss.Left, style.Render(m.statusText), bar)
	}
	return bar
}

// =============================================================================
// OVERLAYS
// =============================================================================

func (m Model) viewOverlay(screen string) string {
	var box string
	switch m.overlay {
	case overlayModels:
		box = m.picker.View()
	case overlayChats:
		box = m.chats.View()
	case overlaySearch:
		box = m.search.View()
	case overlayHelp:
		box = m.viewHelp()
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box,
		lipgloss.WithWhitespaceChars(" "))
}

func (m Model) viewHelp() string {
	theme := m.deps.Theme

	var sb strings.Builder
	sb.WriteString(theme.OverlayTitle.Render("Keyboard shortcuts"))
	sb.WriteString("\n\n")
	for _, group := range m.keys.FullHelp() {
		for _, binding := range group {
			help := binding.Help()
			sb.WriteString(theme.ShortcutKey.Render(util.PadWidth(help.Key, 10)))
			sb.WriteString(theme.ShortcutDesc.Render(help.Desc))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(theme.ListMeta.Render("Slash commands: /attach /detach /columns /new /export /quit"))
	return theme.OverlayBox.Render(sb.String())
}
