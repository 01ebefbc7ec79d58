// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Rajbasheer/multichat-tui/internal/config"
	"github.com/Rajbasheer/multichat-tui/internal/index"
	"github.com/Rajbasheer/multichat-tui/internal/util"
)

// =============================================================================
// HISTORY COMMANDS
// =============================================================================

// runHistory lists, searches or deletes saved conversations.
//
//	multichat history                 list all conversations
//	multichat history search <query>  full-text search the local mirror
//	multichat history show <id>       dump one conversation
//	multichat history delete <id>     delete from the backend
func runHistory(parser *ArgParser) int {
	switch parser.Subcommand() {
	case "", "list":
		return historyList(parser)
	case "search":
		return historySearch(parser)
	case "show":
		return historyShow(parser)
	case "delete", "rm":
		return historyDelete(parser)
	}
	return fail(fmt.Errorf("usage: multichat history [list|search <query>|show <id>|delete <id>]"))
}

func historyList(parser *ArgParser) int {
	cfg, _, client, err := requireLogin(parser)
	if err != nil {
		return fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	conversations, err := client.ListConversations(ctx, parser.Flag("model", "m"))
	if err != nil {
		return fail(err)
	}

	if parser.Bool("json") {
		return printJSON(conversations)
	}
	if len(conversations) == 0 {
		fmt.Println(infoStyle.Render("no saved conversations"))
		return 0
	}
	for _, conv := range conversations {
		title := conv.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s  %s\n", infoStyle.Render(conv.ConversationID), util.TruncateWidth(title, 70))
	}
	return 0
}

func historySearch(parser *ArgParser) int {
	query := strings.Join(parser.Rest(), " ")
	if strings.TrimSpace(query) == "" {
		return fail(fmt.Errorf("usage: multichat history search <query>"))
	}

	cfg, err := config.Load(parser.Flag("config", "c"))
	if err != nil {
		return fail(err)
	}
	if !cfg.History.IndexEnabled {
		return fail(fmt.Errorf("history.index_enabled is off in the config"))
	}

	ix, err := index.Open(filepath.Join(config.Dir(), "index.db"), cfg.History.Dir)
	if err != nil {
		return fail(fmt.Errorf("open search index: %w", err))
	}
	defer ix.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	if _, err := ix.Reindex(ctx); err != nil {
		fmt.Println(warnStyle.Render("reindex failed, results may be stale"))
	}
	hits, err := ix.Search(ctx, query, 20)
	if err != nil {
		return fail(err)
	}

	if parser.Bool("json") {
		return printJSON(hits)
	}
	if len(hits) == 0 {
		fmt.Println(infoStyle.Render("no matches"))
		return 0
	}
	for _, hit := range hits {
		title := hit.Title
		if title == "" {
			title = hit.ConversationID
		}
		fmt.Println(headerStyle.Render(title) + infoStyle.Render("  ["+hit.ModelKey+"]"))
		fmt.Println("  " + util.TruncateWidth(hit.Snippet, 100))
	}
	return 0
}

func historyShow(parser *ArgParser) int {
	rest := parser.Rest()
	if len(rest) != 1 {
		return fail(fmt.Errorf("usage: multichat history show <id>"))
	}

	cfg, _, client, err := requireLogin(parser)
	if err != nil {
		return fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	conv, err := client.GetConversation(ctx, rest[0])
	if err != nil {
		return fail(err)
	}

	if parser.Bool("json") {
		return printJSON(conv)
	}
	fmt.Println(headerStyle.Render(conv.Title))
	doc := conv.History()
	for modelKey, history := range doc.Models {
		fmt.Println(okStyle.Render("## " + modelKey))
		for _, entry := range history.Messages {
			fmt.Printf("%s %s\n", infoStyle.Render(string(entry.Role)+":"), entry.Message)
		}
	}
	return 0
}

func historyDelete(parser *ArgParser) int {
	rest := parser.Rest()
	if len(rest) != 1 {
		return fail(fmt.Errorf("usage: multichat history delete <id>"))
	}

	cfg, _, client, err := requireLogin(parser)
	if err != nil {
		return fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	if err := client.DeleteConversation(ctx, rest[0]); err != nil {
		return fail(err)
	}
	fmt.Println(okStyle.Render("deleted " + rest[0]))
	return 0
}
