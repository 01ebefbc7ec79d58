// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the multichat command line: the default TUI entry
// point plus one-shot subcommands for scripting and account management.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/Rajbasheer/multichat-tui/internal/api"
	"github.com/Rajbasheer/multichat-tui/internal/config"
	"github.com/Rajbasheer/multichat-tui/internal/session"
	"github.com/Rajbasheer/multichat-tui/internal/ui"
)

// Version information, overridden at build time via -ldflags.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// ENTRY POINT
// =============================================================================

// Run parses os.Args-style arguments (program name stripped) and executes
// the selected command, returning the process exit code.
func Run(args []string) int {
	cmd := ""
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	// A leading flag means the default TUI command with options.
	switch cmd {
	case "--version", "-v", "--help", "-h":
	default:
		if strings.HasPrefix(cmd, "-") {
			return runTUI(append([]string{cmd}, args...))
		}
	}

	switch cmd {
	case "", "tui":
		return runTUI(args)
	case "ask":
		return runAsk(NewArgParser(args))
	case "chat":
		return runChatREPL(NewArgParser(args))
	case "login":
		return runLogin(NewArgParser(args))
	case "signup":
		return runSignup(NewArgParser(args))
	case "logout":
		return runLogout()
	case "account", "whoami":
		return runAccount(NewArgParser(args))
	case "search":
		return runSearch(NewArgParser(args))
	case "models":
		return runModels(NewArgParser(args))
	case "history":
		return runHistory(NewArgParser(args))
	case "code":
		return runCode(NewArgParser(args))
	case "config":
		return runConfig(NewArgParser(args))
	case "version", "--version", "-v":
		fmt.Printf("multichat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return 0
	case "help", "--help", "-h":
		printHelp()
		return 0
	}

	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
	printHelp()
	return 2
}

func runTUI(args []string) int {
	parser := NewArgParser(args)
	configPath := parser.Flag("config", "c")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fail(err)
	}
	if err := ui.Run(cfg, configPath, Version); err != nil {
		return fail(err)
	}
	return 0
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// setup loads the config and builds the authenticated backend client used by
// every one-shot command.
func setup(parser *ArgParser) (*config.Config, *session.Session, *api.Client, error) {
	cfg, err := config.Load(parser.Flag("config", "c"))
	if err != nil {
		return nil, nil, nil, err
	}
	sess := session.New(session.Config{TokenPath: config.TokenPath()})
	client := api.NewClient(cfg.Backend.BaseURL, sess,
		api.WithTimeout(cfg.Timeout()),
		api.WithRateLimit(cfg.Backend.RateLimit, 2),
	)
	return cfg, sess, client, nil
}

// requireLogin is setup plus a signed-in session.
func requireLogin(parser *ArgParser) (*config.Config, *session.Session, *api.Client, error) {
	cfg, sess, client, err := setup(parser)
	if err != nil {
		return nil, nil, nil, err
	}
	if !sess.LoggedIn() {
		return nil, nil, nil, fmt.Errorf("not logged in: run 'multichat login' first")
	}
	return cfg, sess, client, nil
}

func fail(err error) int {
	fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
	return 1
}

// =============================================================================
// HELP
// =============================================================================

func printHelp() {
	fmt.Print(`multichat - compare LLMs side by side from your terminal

Usage: multichat [command] [flags]

Commands:
  (none)            Launch the chat TUI
  ask <prompt>      One-shot question, answer to stdout
  chat              Interactive single-model REPL
  code <task>       Generate a code snippet
  models            List available providers and models
  history           List, search or delete saved conversations
  search <query>    Search the backend document store
  login             Sign in and store the session token
  signup            Create an account
  logout            Discard the stored session token
  account           Show or manage the signed-in account
  config            Show the effective configuration
  version           Print version information
  help              Show this help

Common flags:
  -c, --config PATH   Use an alternate config file
  -m, --model KEY     Model key for ask/chat/code (e.g. gpt-4o)
      --json          Machine-readable output where supported

Examples:
  multichat
  multichat ask -m gpt-4o "explain goroutines"
  multichat history search "rate limiter"
  multichat code --lang go "binary search over a sorted slice"
`)
}
