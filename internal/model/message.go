// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Rajbasheer/multichat-tui/internal/util"
)

// =============================================================================
// ROLES
// =============================================================================

// Role identifies the author of a message in the persisted history.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// =============================================================================
// MESSAGE
// =============================================================================

// Message is a single chat message in a column's transcript.
//
// Assistant messages are created empty as placeholders when a stream opens
// and their Content grows in place until the stream commits. There is exactly
// one writer per message ID (the column-stream that created it), so no lock
// guards Content.
type Message struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	IsUser      bool         `json:"is_user"`
	Timestamp   time.Time    `json:"timestamp"`
	ModelName   string       `json:"model_name,omitempty"`
	ColumnIndex int          `json:"column_index"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// NewUserMessage creates a user message for the given column.
func NewUserMessage(content string, columnIndex int, attachments []Attachment) Message {
	return Message{
		ID:          NewMessageID(columnIndex),
		Content:     content,
		IsUser:      true,
		Timestamp:   time.Now(),
		ColumnIndex: columnIndex,
		Attachments: attachments,
	}
}

// NewAssistantPlaceholder creates an empty assistant message that a live
// stream will fill in.
func NewAssistantPlaceholder(columnIndex int, modelName string) Message {
	return Message{
		ID:          NewMessageID(columnIndex),
		IsUser:      false,
		Timestamp:   time.Now(),
		ModelName:   modelName,
		ColumnIndex: columnIndex,
	}
}

// Role returns the persisted-history role for this message.
func (m *Message) Role() Role {
	if m.IsUser {
		return RoleUser
	}
	return RoleAssistant
}

// Preview returns a single-line, width-bounded summary of the content,
// suitable for sidebars and status lines.
func (m *Message) Preview(maxWidth int) string {
	return util.TruncateWidth(util.FirstLine(m.Content), maxWidth)
}

// =============================================================================
// ATTACHMENT
// =============================================================================

// Attachment describes an uploaded file. BackendID is the server-assigned
// identifier used in chat requests; an empty BackendID means the upload has
// not happened or failed.
type Attachment struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	MediaType string `json:"media_type,omitempty"`
	BackendID string `json:"backend_id,omitempty"`
}

// Uploaded reports whether the attachment carries a backend identifier.
func (a *Attachment) Uploaded() bool {
	return a.BackendID != ""
}

// =============================================================================
// ID GENERATION
// =============================================================================

// idCounter disambiguates messages created within the same nanosecond tick.
// Incremented atomically: every column-stream goroutine mints ids for its
// own placeholder.
var idCounter uint64

// NewMessageID returns a unique message ID derived from time and the column
// index, e.g. "msg_1714490000123456789_2_7".
func NewMessageID(columnIndex int) string {
	n := atomic.AddUint64(&idCounter, 1)
	return "msg_" + strconv.FormatInt(time.Now().UnixNano(), 10) + "_" +
		util.IntToString(columnIndex) + "_" + strconv.FormatUint(n, 10)
}

// NewConversationID returns a time-derived conversation ID,
// e.g. "conv_20250901T101530_123456".
func NewConversationID() string {
	now := time.Now()
	return "conv_" + now.Format("20060102T150405") + "_" + util.IntToString(now.Nanosecond()/1000)
}
