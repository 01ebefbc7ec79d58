// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// UNICODE: Rune-aware truncation preserves multi-byte characters.
// Conversation titles and column headers routinely carry CJK and emoji, so
// truncation counts display cells, never bytes.

// TruncateRunes truncates a string to a maximum number of runes.
// If the string is truncated, "..." is appended.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// TruncateWidth truncates a string to a maximum terminal display width,
// accounting for double-width (CJK) characters. Appends "..." when there is
// room for it.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth > 3 {
		return runewidth.Truncate(s, maxWidth, "...")
	}
	return runewidth.Truncate(s, maxWidth, "")
}

// PadWidth pads s with spaces on the right to exactly width display cells,
// truncating first if it is too wide.
func PadWidth(s string, width int) string {
	s = TruncateWidth(s, width)
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}

// FirstLine returns the first line of s with surrounding whitespace trimmed.
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// IntToString converts an int to its decimal string form.
// Avoids fmt.Sprintf in hot render paths.
func IntToString(n int) string {
	return strconv.Itoa(n)
}
