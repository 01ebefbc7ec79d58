// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Rajbasheer/multichat-tui/internal/catalog"
)

// runModels prints the provider/model catalog.
func runModels(parser *ArgParser) int {
	cfg, _, client, err := setup(parser)
	if err != nil {
		return fail(err)
	}

	registry := catalog.NewRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	loadErr := registry.Load(ctx, client)

	selections := registry.Selections()

	if parser.Bool("json") {
		return printJSON(selections)
	}

	if loadErr != nil {
		fmt.Println(warnStyle.Render("backend unreachable, showing the built-in catalog"))
	}
	current := ""
	for _, sel := range selections {
		if sel.Provider != current {
			current = sel.Provider
			fmt.Println(headerStyle.Render(current))
		}
		fmt.Printf("  %-24s %s\n", sel.Key, infoStyle.Render(sel.DisplayName))
	}
	return 0
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fail(err)
	}
	return 0
}
