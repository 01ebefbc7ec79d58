// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the multi-column chat view for the TUI.
//
// This file defines the Bubble Tea message types used by the chat interface.
// Token delivery is not a per-token message: partial text accumulates in the
// dispatcher's buffer set and StreamTickMsg drains it at a bounded frame
// rate, so a fast stream cannot flood the update loop.
package chat

import (
	"time"

	"github.com/Rajbasheer/multichat-tui/internal/config"
	"github.com/Rajbasheer/multichat-tui/internal/index"
	"github.com/Rajbasheer/multichat-tui/internal/model"
	"github.com/Rajbasheer/multichat-tui/internal/turn"
)

// =============================================================================
// TURN MESSAGES
// =============================================================================

// TurnEventMsg wraps one dispatcher event for the update loop. The wrapped
// event is one of turn.TurnStarted, StreamStarted, StreamCommitted,
// StreamFailed, StreamAborted, SessionExpired or TurnDone.
type TurnEventMsg struct {
	Event turn.Event
}

// StreamTickMsg fires at the configured stream FPS while any column is
// streaming, draining buffered partial text into the transcripts.
type StreamTickMsg struct {
	Time time.Time
}

// =============================================================================
// DATA LOADING MESSAGES
// =============================================================================

// CatalogLoadedMsg reports the model catalog fetch. On error the registry
// already holds the fallback catalog, so Err is informational.
type CatalogLoadedMsg struct {
	Err error
}

// ConversationsLoadedMsg delivers the conversation list for the sidebar.
type ConversationsLoadedMsg struct {
	Conversations []model.Conversation
	Err           error
}

// ConversationLoadedMsg confirms that a conversation was selected and its
// histories loaded into the columns.
type ConversationLoadedMsg struct {
	ID  string
	Err error
}

// ConversationDeletedMsg confirms a delete.
type ConversationDeletedMsg struct {
	ID  string
	Err error
}

// SearchResultsMsg delivers offline search hits.
type SearchResultsMsg struct {
	Query string
	Hits  []index.Hit
	Err   error
}

// =============================================================================
// ATTACHMENT MESSAGES
// =============================================================================

// AttachmentsUploadedMsg reports the outcome of the sequential upload batch.
// On error no attachment was forwarded and the turn was not dispatched.
type AttachmentsUploadedMsg struct {
	Prompt      string
	Attachments []model.Attachment
	Err         error
}

// =============================================================================
// SESSION AND CONFIG MESSAGES
// =============================================================================

// SessionTickMsg drives the idle-timeout clock, once per second.
type SessionTickMsg struct {
	Time time.Time
}

// ConfigReloadedMsg arrives when the config file watcher sees a valid new
// configuration.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// =============================================================================
// EXPORT MESSAGES
// =============================================================================

// ExportDoneMsg reports a transcript export.
type ExportDoneMsg struct {
	Path string
	Err  error
}

// =============================================================================
// STATUS MESSAGES
// =============================================================================

// StatusMsg shows a transient line in the status bar.
type StatusMsg struct {
	Text  string
	IsErr bool
}

// statusExpireMsg clears a transient status line.
type statusExpireMsg struct {
	seq int
}
