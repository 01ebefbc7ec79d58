// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Rajbasheer/multichat-tui/internal/api"
	"github.com/Rajbasheer/multichat-tui/internal/ui/components"
)

// runCode generates a snippet via the backend code endpoint and prints it
// with syntax highlighting when stdout is a terminal.
//
//	multichat code --lang go "binary search over a sorted slice"
//	multichat code --lang python --file old.py "add type hints"
func runCode(parser *ArgParser) int {
	instructions := strings.TrimSpace(strings.Join(parser.Positional(), " "))
	if instructions == "" {
		return fail(fmt.Errorf("usage: multichat code [--lang language] [--file path] <instructions>"))
	}

	cfg, sess, client, err := requireLogin(parser)
	if err != nil {
		return fail(err)
	}

	req := api.CodeRequest{
		Language:     parser.Flag("lang", "l"),
		Instructions: instructions,
		CodeStyle:    parser.Flag("style"),
	}
	if req.Language == "" {
		req.Language = "go"
	}
	if path := parser.Flag("file", "f"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fail(fmt.Errorf("read %s: %w", path, err))
		}
		req.ExistingCode = string(data)
	}

	sess.RecordActivity()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	resp, err := client.GenerateCode(ctx, req)
	if err != nil {
		return fail(err)
	}

	if stdoutIsTerminal() && !parser.Bool("plain") {
		fmt.Println(components.HighlightCode(resp.Code, req.Language))
	} else {
		fmt.Println(resp.Code)
	}
	return 0
}
