// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Rajbasheer/multichat-tui/internal/model"
	"github.com/Rajbasheer/multichat-tui/internal/util"
)

// =============================================================================
// TRANSCRIPT EXPORT
// =============================================================================

// ExportTranscript writes all column transcripts to a markdown file in the
// working directory and returns the path. Unbound columns are skipped.
func ExportTranscript(columns []*model.Column, title string) (string, error) {
	if title == "" {
		title = "conversation"
	}

	var sb strings.Builder
	sb.WriteString("# " + title + "\n\n")
	sb.WriteString("Exported " + time.Now().Format("2006-01-02 15:04") + "\n")

	exported := 0
	for _, col := range columns {
		if col == nil || !col.Bound() || len(col.Messages) == 0 {
			continue
		}
		exported++

		sb.WriteString("\n## " + col.Selection.Label() + "\n\n")
		for i := range col.Messages {
			msg := &col.Messages[i]
			speaker := msg.ModelName
			if msg.IsUser {
				speaker = "You"
			}
			if speaker == "" {
				speaker = col.Selection.Label()
			}
			sb.WriteString("**" + speaker + "**")
			if !msg.Timestamp.IsZero() {
				sb.WriteString(" _" + msg.Timestamp.Format("15:04:05") + "_")
			}
			sb.WriteString("\n\n")
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
			for _, att := range msg.Attachments {
				sb.WriteString("\n> attachment: " + att.Name + "\n")
			}
			sb.WriteString("\n")
		}
	}

	if exported == 0 {
		return "", fmt.Errorf("nothing to export")
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	path := filepath.Join(cwd, exportFilename(title))
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

// exportFilename builds a slug like "my-chat-20250901-150405.md".
func exportFilename(title string) string {
	var slug strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			slug.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			slug.WriteRune('-')
		}
	}
	base := strings.Trim(slug.String(), "-")
	if base == "" {
		base = "conversation"
	}
	base = util.TruncateRunes(base, 40)
	return base + "-" + time.Now().Format("20060102-150405") + ".md"
}
