// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/Rajbasheer/multichat-tui/internal/config"
)

// runConfig shows the effective configuration or writes a starter file.
//
//	multichat config         print the effective configuration
//	multichat config path    print the config file location
//	multichat config init    write the defaults to the config path
func runConfig(parser *ArgParser) int {
	switch parser.Subcommand() {
	case "path":
		fmt.Println(config.DefaultPath())
		return 0

	case "init":
		path := parser.Flag("config", "c")
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.Default().Save(path); err != nil {
			return fail(err)
		}
		fmt.Println(okStyle.Render("wrote " + path))
		return 0

	case "":
		cfg, err := config.Load(parser.Flag("config", "c"))
		if err != nil {
			return fail(err)
		}
		if parser.Bool("json") {
			return printJSON(cfg)
		}
		fmt.Println(headerStyle.Render("backend"))
		fmt.Printf("  base_url:  %s\n", cfg.Backend.BaseURL)
		fmt.Printf("  timeout:   %ds\n", cfg.Backend.TimeoutSeconds)
		fmt.Println(headerStyle.Render("chat"))
		fmt.Printf("  columns:   %d\n", cfg.Chat.Columns)
		fmt.Printf("  defaults:  %v\n", cfg.Chat.DefaultModels)
		fmt.Println(headerStyle.Render("ui"))
		fmt.Printf("  theme:     %s\n", cfg.UI.Theme)
		fmt.Println(headerStyle.Render("history"))
		fmt.Printf("  dir:       %s\n", cfg.History.Dir)
		fmt.Printf("  index:     %v\n", cfg.History.IndexEnabled)
		return 0
	}
	return fail(fmt.Errorf("usage: multichat config [path|init]"))
}
