// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/Rajbasheer/multichat-tui/internal/api"
	"github.com/Rajbasheer/multichat-tui/internal/catalog"
	"github.com/Rajbasheer/multichat-tui/internal/config"
	"github.com/Rajbasheer/multichat-tui/internal/model"
)

// =============================================================================
// MARKDOWN OUTPUT
// =============================================================================

var markdownRenderer *glamour.TermRenderer

func init() {
	markdownRenderer, _ = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
}

// renderMarkdown pretty-prints markdown, falling back to the raw text.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	out, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return out
}

// stdoutIsTerminal reports whether stdout goes to an interactive terminal.
// Piped output gets the raw text so scripts see clean bytes.
func stdoutIsTerminal() bool {
	stat, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// =============================================================================
// ASK COMMAND
// =============================================================================

// runAsk sends a single prompt and prints the streamed answer.
func runAsk(parser *ArgParser) int {
	prompt := strings.TrimSpace(strings.Join(parser.Positional(), " "))
	if prompt == "" {
		return fail(fmt.Errorf("usage: multichat ask [-m model] <prompt>"))
	}

	cfg, sess, client, err := requireLogin(parser)
	if err != nil {
		return fail(err)
	}

	ctx := context.Background()
	sel, err := resolveModel(ctx, cfg, client, parser.Flag("model", "m"))
	if err != nil {
		return fail(err)
	}
	sess.RecordActivity()

	stream, err := client.Chat(ctx, api.ChatRequest{
		Provider: sel.Provider,
		ModelKey: sel.Key,
		Messages: []api.ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return fail(err)
	}

	tty := stdoutIsTerminal()
	var onText func(string)
	if !tty {
		// Stream straight through when piped.
		onText = func(text string) { fmt.Print(text) }
	}
	final, err := stream.Process(ctx, onText)
	if err != nil {
		return fail(err)
	}

	if tty {
		fmt.Println(infoStyle.Render(sel.Label()))
		fmt.Print(renderMarkdown(final))
	} else {
		fmt.Println()
	}
	return 0
}

// resolveModel loads the catalog and picks the requested model key, the
// configured default, or the first catalog entry, in that order.
func resolveModel(ctx context.Context, cfg *config.Config, client *api.Client, key string) (model.Selection, error) {
	registry := catalog.NewRegistry()
	loadCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()
	_ = registry.Load(loadCtx, client) // fallback catalog covers a dead backend

	if key == "" && len(cfg.Chat.DefaultModels) > 0 {
		key = cfg.Chat.DefaultModels[0]
	}
	if key != "" {
		sel, ok := registry.Resolve(key)
		if !ok {
			return model.Selection{}, fmt.Errorf("unknown model %q (see 'multichat models')", key)
		}
		return sel, nil
	}

	selections := registry.Selections()
	if len(selections) == 0 {
		return model.Selection{}, fmt.Errorf("no models available")
	}
	return selections[0], nil
}
