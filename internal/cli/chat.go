// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/Rajbasheer/multichat-tui/internal/api"
	"github.com/Rajbasheer/multichat-tui/internal/config"
	"github.com/Rajbasheer/multichat-tui/internal/model"
)

// =============================================================================
// INTERACTIVE REPL
// =============================================================================

// replInput wraps liner with a persistent input history.
type replInput struct {
	line        *liner.State
	historyFile string
}

func newREPLInput() *replInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	historyFile := filepath.Join(config.Dir(), "repl_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return &replInput{line: line, historyFile: historyFile}
}

func (r *replInput) prompt(p string) (string, error) {
	text, err := r.line.Prompt(p)
	if err == nil && strings.TrimSpace(text) != "" {
		r.line.AppendHistory(text)
	}
	return text, err
}

// close saves the history and restores the terminal.
func (r *replInput) close() {
	if f, err := os.Create(r.historyFile); err == nil {
		r.line.WriteHistory(f)
		f.Close()
	}
	r.line.Close()
}

// runChatREPL is a single-model conversation loop for terminals where the
// full TUI is unwanted (ssh sessions, scripts driving a pty).
func runChatREPL(parser *ArgParser) int {
	cfg, sess, client, err := requireLogin(parser)
	if err != nil {
		return fail(err)
	}

	ctx := context.Background()
	sel, err := resolveModel(ctx, cfg, client, parser.Flag("model", "m"))
	if err != nil {
		return fail(err)
	}

	input := newREPLInput()
	defer input.close()

	fmt.Println(headerStyle.Render("multichat " + Version))
	fmt.Println(infoStyle.Render("model: " + sel.Label() + "  (/help for commands, /quit to exit)"))

	var transcript []api.ChatMessage
	for {
		text, err := input.prompt(promptStyle.Render("> "))
		if err == liner.ErrPromptAborted {
			fmt.Println()
			continue
		}
		if err != nil { // Ctrl+D or closed terminal
			fmt.Println()
			return 0
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "/") {
			switch done, next := replCommand(ctx, cfg, client, text, &transcript, &sel); {
			case done:
				return 0
			case next:
				continue
			}
		}

		sess.RecordActivity()
		transcript = append(transcript, api.ChatMessage{Role: "user", Content: text})

		answer, err := streamAnswer(ctx, client, api.ChatRequest{
			Provider: sel.Provider,
			ModelKey: sel.Key,
			Messages: transcript,
		})
		if err != nil {
			// The failed turn stays out of the transcript.
			transcript = transcript[:len(transcript)-1]
			fmt.Println(errorStyle.Render("error: ") + err.Error())
			continue
		}
		transcript = append(transcript, api.ChatMessage{Role: "assistant", Content: answer})
	}
}

// streamAnswer prints tokens as they arrive. Ctrl+C cancels the generation
// without leaving the REPL.
func streamAnswer(ctx context.Context, client *api.Client, req api.ChatRequest) (string, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			cancel()
		case <-streamCtx.Done():
		}
	}()

	stream, err := client.Chat(streamCtx, req)
	if err != nil {
		return "", err
	}
	final, err := stream.Process(streamCtx, func(text string) {
		fmt.Print(text)
	})
	fmt.Println()
	if err != nil {
		return "", err
	}
	return final, nil
}

// replCommand handles slash commands. Returns (quit, handled).
func replCommand(ctx context.Context, cfg *config.Config, client *api.Client, text string, transcript *[]api.ChatMessage, sel *model.Selection) (bool, bool) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/quit", "/q":
		return true, false
	case "/clear", "/c":
		*transcript = nil
		fmt.Println(okStyle.Render("history cleared"))
		return false, true
	case "/model", "/m":
		if len(fields) < 2 {
			fmt.Println(infoStyle.Render("model: " + sel.Label()))
			return false, true
		}
		next, err := resolveModel(ctx, cfg, client, fields[1])
		if err != nil {
			fmt.Println(errorStyle.Render("error: ") + err.Error())
			return false, true
		}
		*sel = next
		*transcript = nil
		fmt.Println(okStyle.Render("switched to " + sel.Label()))
		return false, true
	case "/history":
		for _, msg := range *transcript {
			fmt.Printf("%s %s\n", infoStyle.Render(msg.Role+":"),
				strings.SplitN(msg.Content, "\n", 2)[0])
		}
		return false, true
	case "/help", "/h":
		fmt.Println(infoStyle.Render("/model [key]  /clear  /history  /quit"))
		return false, true
	}
	fmt.Println(warnStyle.Render("unknown command " + fields[0]))
	return false, true
}
