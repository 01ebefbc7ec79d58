// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// COLUMN LIMITS
// =============================================================================

const (
	// MinColumns and MaxColumns bound the parallel chat pane count.
	MinColumns = 1
	MaxColumns = 4
)

// ClampColumnCount forces n into the supported 1..4 range.
func ClampColumnCount(n int) int {
	if n < MinColumns {
		return MinColumns
	}
	if n > MaxColumns {
		return MaxColumns
	}
	return n
}

// =============================================================================
// SELECTION
// =============================================================================

// Selection is an explicit (provider, model key) pair carried from the moment
// a model is picked, so no code ever reverse-scans the catalog to recover the
// provider for a key.
type Selection struct {
	Provider    string `json:"provider"`
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
}

// Bound reports whether the selection names a model.
func (s Selection) Bound() bool {
	return s.Key != ""
}

// Label returns the human-facing name, falling back to the key.
func (s Selection) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Key
}

// =============================================================================
// COLUMN
// =============================================================================

// Column is one chat pane. It owns an ordered transcript and at most one
// bound model.
type Column struct {
	Index     int
	Selection Selection
	Messages  []Message
}

// NewColumn creates an empty column at the given index.
func NewColumn(index int) *Column {
	return &Column{Index: index}
}

// Bind sets the column's model. Switching to a different model clears this
// column's transcript; rebinding the same model is a no-op for the messages.
func (c *Column) Bind(sel Selection) {
	if c.Selection.Key == sel.Key && c.Selection.Provider == sel.Provider {
		c.Selection = sel
		return
	}
	c.Selection = sel
	c.Messages = nil
}

// Bound reports whether a model is bound to this column.
func (c *Column) Bound() bool {
	return c.Selection.Bound()
}

// Append adds a message to the transcript and returns a pointer to the stored
// copy so stream callbacks can grow its content in place.
func (c *Column) Append(msg Message) *Message {
	c.Messages = append(c.Messages, msg)
	return &c.Messages[len(c.Messages)-1]
}

// MessageByID returns the stored message with the given ID, or nil.
func (c *Column) MessageByID(id string) *Message {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return &c.Messages[i]
		}
	}
	return nil
}

// DeleteMessage removes the message with the given ID. Returns true if found.
func (c *Column) DeleteMessage(id string) bool {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops the transcript but keeps the model binding.
func (c *Column) Clear() {
	c.Messages = nil
}
