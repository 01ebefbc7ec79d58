// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/Rajbasheer/multichat-tui/internal/ui/styles"
	"github.com/Rajbasheer/multichat-tui/internal/util"
)

// =============================================================================
// CODE BLOCK RENDERER
// =============================================================================

// CodeBlock renders generated code with syntax highlighting and line numbers.
// Used by the code command output and standalone code views.
type CodeBlock struct {
	Language string
	Code     string
	MaxWidth int
}

// NewCodeBlock creates a code block.
func NewCodeBlock(language, code string) CodeBlock {
	return CodeBlock{
		Language: language,
		Code:     code,
		MaxWidth: 80,
	}
}

// Render renders the code block with styling.
func (c CodeBlock) Render() string {
	code := strings.TrimRight(c.Code, "\n")

	highlighted := HighlightCode(code, c.Language)
	lines := strings.Split(highlighted, "\n")

	lineNumStyle := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Width(4).
		Align(lipgloss.Right).
		MarginRight(1)

	var rendered []string
	for i, line := range lines {
		rendered = append(rendered, lineNumStyle.Render(util.IntToString(i+1))+line)
	}

	var header string
	if c.Language != "" {
		header = lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Background(styles.Overlay).
			Padding(0, 1).
			Bold(true).
			Render(c.Language) + "\n"
	}

	maxWidth := c.MaxWidth - 4
	if maxWidth < 20 {
		maxWidth = 20
	}

	return lipgloss.NewStyle().
		Background(styles.SurfaceDim).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.Overlay).
		Padding(1, 2).
		MaxWidth(maxWidth).
		Render(header + strings.Join(rendered, "\n"))
}

// HighlightCode applies terminal syntax highlighting to code. Returns the
// input unchanged when the language is unknown or highlighting fails.
func HighlightCode(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		return code
	}

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return code
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var sb strings.Builder
	if err := formatter.Format(&sb, style, iterator); err != nil {
		return code
	}
	return sb.String()
}
