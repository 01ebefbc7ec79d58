// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/Rajbasheer/multichat-tui/internal/api"
	"github.com/Rajbasheer/multichat-tui/internal/util"
)

// runSearch queries the backend's server-side document index (the RAG store
// behind /search). Local conversation search lives under 'history search'.
func runSearch(parser *ArgParser) int {
	query := strings.TrimSpace(strings.Join(parser.Positional(), " "))
	if query == "" {
		return fail(fmt.Errorf("usage: multichat search [-k results] <query>"))
	}

	cfg, _, client, err := requireLogin(parser)
	if err != nil {
		return fail(err)
	}

	k := 0
	if v := parser.Flag("k"); v != "" {
		for _, r := range v {
			if r < '0' || r > '9' {
				return fail(fmt.Errorf("-k must be a positive integer"))
			}
			k = k*10 + int(r-'0')
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	resp, err := client.Search(ctx, api.SearchRequest{
		Query:  query,
		K:      k,
		Rerank: !parser.Bool("no-rerank"),
	})
	if err != nil {
		return fail(err)
	}

	if parser.Bool("json") {
		return printJSON(resp.Hits)
	}
	if len(resp.Hits) == 0 {
		fmt.Println(infoStyle.Render("no matches"))
		return 0
	}
	for _, hit := range resp.Hits {
		name := hit.Filename
		if name == "" {
			name = hit.DocumentID
		}
		fmt.Println(headerStyle.Render(name))
		fmt.Println("  " + util.TruncateWidth(strings.ReplaceAll(hit.Chunk, "\n", " "), 100))
	}
	return 0
}
