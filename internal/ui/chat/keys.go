// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings for the chat interface.
type KeyMap struct {
	Submit     key.Binding
	Cancel     key.Binding
	Quit       key.Binding
	NextColumn key.Binding
	PrevColumn key.Binding
	Models     key.Binding
	Chats      key.Binding
	NewChat    key.Binding
	Search     key.Binding
	Export     key.Binding
	Help       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "cancel turn / close overlay"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
		NextColumn: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "focus next column"),
		),
		PrevColumn: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-Tab", "focus previous column"),
		),
		Models: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("C-p", "pick model for focused column"),
		),
		Chats: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "conversation list"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new conversation"),
		),
		Search: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("C-f", "search history"),
		),
		Export: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("C-e", "export transcript"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("C-g", "toggle help"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar hint line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Models, k.Chats, k.Quit}
}

// FullHelp returns the grouped bindings for the help overlay.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Cancel, k.Quit},
		{k.NextColumn, k.PrevColumn, k.Models},
		{k.Chats, k.NewChat, k.Search, k.Export},
		{k.ScrollUp, k.ScrollDown, k.Help},
	}
}
