// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Rajbasheer/multichat-tui/internal/api"
	"github.com/Rajbasheer/multichat-tui/internal/config"
	"github.com/Rajbasheer/multichat-tui/internal/session"
)

// =============================================================================
// AUTH COMMANDS
// =============================================================================

// runLogin signs in and persists the bearer token for the TUI and the
// one-shot commands.
func runLogin(parser *ArgParser) int {
	_, sess, client, err := setup(parser)
	if err != nil {
		return fail(err)
	}

	email, password, err := promptCredentials(parser)
	if err != nil {
		return fail(err)
	}

	tok, err := client.Login(context.Background(), api.Credentials{Email: email, Password: password})
	if err != nil {
		return fail(err)
	}
	if err := sess.Login(email, tok.AccessToken); err != nil {
		return fail(fmt.Errorf("store session: %w", err))
	}
	fmt.Println(okStyle.Render("logged in as " + email))
	return 0
}

// runSignup creates an account. Deployments with email verification return
// no token; the user logs in after confirming.
func runSignup(parser *ArgParser) int {
	_, sess, client, err := setup(parser)
	if err != nil {
		return fail(err)
	}

	email, password, err := promptCredentials(parser)
	if err != nil {
		return fail(err)
	}

	tok, err := client.Signup(context.Background(), api.Credentials{Email: email, Password: password})
	if err != nil {
		return fail(err)
	}
	if tok.AccessToken == "" {
		fmt.Println(infoStyle.Render("account created - check your email to verify, then run 'multichat login'"))
		return 0
	}
	if err := sess.Login(email, tok.AccessToken); err != nil {
		return fail(fmt.Errorf("store session: %w", err))
	}
	fmt.Println(okStyle.Render("account created, logged in as " + email))
	return 0
}

func runLogout() int {
	sess := session.New(session.Config{TokenPath: config.TokenPath()})
	if !sess.LoggedIn() {
		fmt.Println(infoStyle.Render("not logged in"))
		return 0
	}
	sess.Expire()
	fmt.Println(okStyle.Render("logged out"))
	return 0
}

// =============================================================================
// CREDENTIAL INPUT
// =============================================================================

// promptCredentials reads the email from --email or stdin and the password
// without echo.
func promptCredentials(parser *ArgParser) (string, string, error) {
	email := parser.Flag("email", "e")
	if email == "" {
		fmt.Print("email: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", "", err
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return "", "", fmt.Errorf("email is required")
	}

	password, err := readPassword("password: ")
	if err != nil {
		return "", "", err
	}
	return email, password, nil
}
