// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// multichat is a terminal client for the multichat platform: chat with up to
// four LLMs side by side, with streaming responses, attachments and local
// full-text history search.
package main

import (
	"os"

	"github.com/Rajbasheer/multichat-tui/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
