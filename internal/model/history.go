// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// PERSISTED HISTORY DOCUMENT
// =============================================================================

// HistorySchemaVersion is the current version of the persisted history
// document. Version 0 denotes the legacy unversioned shape
// {modelKey: {"messages": [...]}}.
const HistorySchemaVersion = 1

// ErrMalformedHistory marks a persisted messages blob that could not be
// parsed in either the versioned or the legacy shape.
var ErrMalformedHistory = errors.New("malformed conversation history")

// HistoryEntry is one persisted message: role plus text.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Message string `json:"message"`
}

// ModelHistory is the ordered message list persisted under one model key.
type ModelHistory struct {
	Messages []HistoryEntry `json:"messages"`
}

// HistoryDoc is the structured form of a conversation's persisted messages
// field. The backend stores it as an opaque JSON string; Serialize and
// ParseHistory are the only code that touches the wire shape.
type HistoryDoc struct {
	Version int                     `json:"version"`
	Models  map[string]ModelHistory `json:"models"`
}

// NewHistoryDoc returns an empty document at the current schema version.
func NewHistoryDoc() HistoryDoc {
	return HistoryDoc{
		Version: HistorySchemaVersion,
		Models:  make(map[string]ModelHistory),
	}
}

// SetModel overwrites the history stored under key. Overwrite-by-key is what
// makes repeated per-column saves idempotent: saving the same transcript
// twice yields the same document, never duplicated entries.
func (d *HistoryDoc) SetModel(key string, entries []HistoryEntry) {
	if d.Models == nil {
		d.Models = make(map[string]ModelHistory)
	}
	d.Models[key] = ModelHistory{Messages: entries}
}

// Model returns the history under key and whether it exists.
func (d *HistoryDoc) Model(key string) (ModelHistory, bool) {
	h, ok := d.Models[key]
	return h, ok
}

// Empty reports whether the document holds no messages at all.
func (d *HistoryDoc) Empty() bool {
	for _, h := range d.Models {
		if len(h.Messages) > 0 {
			return false
		}
	}
	return true
}

// Serialize encodes the document to the JSON string stored in the backend's
// messages field. Always writes the current schema version.
func (d HistoryDoc) Serialize() (string, error) {
	d.Version = HistorySchemaVersion
	if d.Models == nil {
		d.Models = make(map[string]ModelHistory)
	}
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("serialize history: %w", err)
	}
	return string(data), nil
}

// ParseHistory decodes a persisted messages blob. It accepts the current
// versioned shape and falls back to the legacy unversioned
// {modelKey: {"messages": [...]}} mapping written by older clients.
// An empty blob parses to an empty document.
func ParseHistory(raw string) (HistoryDoc, error) {
	if raw == "" || raw == "{}" || raw == "null" {
		return NewHistoryDoc(), nil
	}

	var versioned struct {
		Version *int                    `json:"version"`
		Models  map[string]ModelHistory `json:"models"`
	}
	if err := json.Unmarshal([]byte(raw), &versioned); err == nil && versioned.Version != nil {
		doc := HistoryDoc{Version: *versioned.Version, Models: versioned.Models}
		if doc.Models == nil {
			doc.Models = make(map[string]ModelHistory)
		}
		return doc, nil
	}

	// Legacy shape: top-level keys are model keys.
	var legacy map[string]ModelHistory
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		return NewHistoryDoc(), fmt.Errorf("%w: %v", ErrMalformedHistory, err)
	}
	doc := NewHistoryDoc()
	for key, h := range legacy {
		// A stray "version"/"models" pair would have decoded above; anything
		// here is a real model key.
		doc.Models[key] = h
	}
	return doc, nil
}

// =============================================================================
// CONVERSATION METADATA
// =============================================================================

// Conversation is the backend-persisted record bundling per-model histories
// under one id and title. Messages is the raw JSON blob; use ParseHistory.
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	Messages       string    `json:"messages"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// History parses the conversation's messages blob. Parse failures degrade to
// an empty document so a corrupt record never takes the client down.
func (c *Conversation) History() HistoryDoc {
	doc, err := ParseHistory(c.Messages)
	if err != nil {
		return NewHistoryDoc()
	}
	return doc
}
