// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for columns, messages, and
// persisted conversation history.
//
// # Key Types
//
//   - Message: single chat message with role flag, content, and column index
//   - Column: one of up to four parallel chat panes bound to a model
//   - Attachment: an uploaded file referenced by outgoing chat requests
//   - HistoryDoc: versioned per-model message history persisted by the backend
//   - Conversation: metadata for a persisted conversation record
//
// A Column owns its ordered message list. Rebinding a column's model clears
// that column's messages and never touches sibling columns. Assistant message
// content is mutated in place while its stream is live and frozen when the
// stream commits.
package model
