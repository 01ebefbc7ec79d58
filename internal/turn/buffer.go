// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"strings"
	"sync"
	"time"
)

// =============================================================================
// BUFFER SET
// =============================================================================

// BufferSet accumulates in-flight partial text per assistant message id so
// the render loop never redraws per token. Entries are created by the first
// Write for an id and removed exactly once, when the owning stream reaches a
// terminal state.
//
// Flushing batches on two thresholds, whichever trips first:
//  1. an entry has accumulated batchSize tokens
//  2. minFlush has elapsed since the last flush
//
// Thread-safety: stream goroutines write while the UI loop flushes, so every
// operation locks.
type BufferSet struct {
	mu        sync.Mutex
	entries   map[string]*bufferEntry
	lastFlush time.Time

	batchSize int
	minFlush  time.Duration
}

type bufferEntry struct {
	partial strings.Builder
	pending strings.Builder
	tokens  int
}

// NewBufferSet creates a buffer set. batchSize <= 0 and maxFPS outside
// (0, 60] take the defaults (15 tokens, 30fps).
func NewBufferSet(batchSize, maxFPS int) *BufferSet {
	if batchSize <= 0 {
		batchSize = 15
	}
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = 30
	}
	return &BufferSet{
		entries:   make(map[string]*bufferEntry),
		lastFlush: time.Now(),
		batchSize: batchSize,
		minFlush:  time.Duration(1000/maxFPS) * time.Millisecond,
	}
}

// Write appends a decoded text increment for the given message id.
func (b *BufferSet) Write(messageID, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entries[messageID]
	if e == nil {
		e = &bufferEntry{}
		b.entries[messageID] = e
	}
	e.partial.WriteString(text)
	e.pending.WriteString(text)
	e.tokens++
}

// Partial returns the full text accumulated so far for a message id.
func (b *BufferSet) Partial(messageID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[messageID]
	if !ok {
		return "", false
	}
	return e.partial.String(), true
}

// Flush returns the per-id text accumulated since the previous flush when a
// threshold has tripped, or nil when the render loop should skip this tick.
func (b *BufferSet) Flush() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.shouldFlushLocked() {
		return nil
	}
	return b.drainLocked()
}

func (b *BufferSet) shouldFlushLocked() bool {
	pending := false
	for _, e := range b.entries {
		if e.pending.Len() == 0 {
			continue
		}
		pending = true
		if e.tokens >= b.batchSize {
			return true
		}
	}
	return pending && time.Since(b.lastFlush) >= b.minFlush
}

func (b *BufferSet) drainLocked() map[string]string {
	var out map[string]string
	for id, e := range b.entries {
		if e.pending.Len() == 0 {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[id] = e.pending.String()
		e.pending.Reset()
		e.tokens = 0
	}
	if out != nil {
		b.lastFlush = time.Now()
	}
	return out
}

// Remove drops an entry, returning any text not yet flushed. Called exactly
// once per id, at stream completion or abort.
func (b *BufferSet) Remove(messageID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[messageID]
	if !ok {
		return ""
	}
	delete(b.entries, messageID)
	return e.pending.String()
}

// Reset drops every entry. Used when a turn is canceled wholesale.
func (b *BufferSet) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string]*bufferEntry)
	b.lastFlush = time.Now()
}

// Active returns the number of in-flight entries.
func (b *BufferSet) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
