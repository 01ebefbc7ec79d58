// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/Rajbasheer/multichat-tui/internal/util"
)

// =============================================================================
// ACCOUNT COMMANDS
// =============================================================================

// runAccount manages the signed-in account and the recovery flows.
//
//	multichat account                  show the profile
//	multichat account email <new>      change the account email
//	multichat account password         change the password
//	multichat account buy <amount>     buy tokens
//	multichat account verify [token]   resend or confirm email verification
//	multichat account forgot <email>   start a password reset
//	multichat account reset <token>    finish a password reset
func runAccount(parser *ArgParser) int {
	switch parser.Subcommand() {
	case "", "show":
		return accountShow(parser)
	case "email":
		return accountEmail(parser)
	case "password":
		return accountPassword(parser)
	case "buy":
		return accountBuy(parser)
	case "verify":
		return accountVerify(parser)
	case "forgot":
		return accountForgot(parser)
	case "reset":
		return accountReset(parser)
	}
	return fail(fmt.Errorf("usage: multichat account [show|email|password|buy|verify|forgot|reset]"))
}

func accountShow(parser *ArgParser) int {
	cfg, _, client, err := requireLogin(parser)
	if err != nil {
		return fail(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	profile, err := client.GetProfile(ctx)
	if err != nil {
		return fail(err)
	}
	if parser.Bool("json") {
		return printJSON(profile)
	}
	fmt.Println(headerStyle.Render(profile.Email))
	verified := "no"
	if profile.Verified {
		verified = "yes"
	}
	fmt.Printf("  verified:     %s\n", verified)
	fmt.Printf("  tokens left:  %s\n", util.IntToString(int(profile.TokensLeft)))
	if profile.PaymentMethod != "" {
		fmt.Printf("  payment:      %s\n", profile.PaymentMethod)
	}
	return 0
}

func accountEmail(parser *ArgParser) int {
	rest := parser.Rest()
	if len(rest) != 1 {
		return fail(fmt.Errorf("usage: multichat account email <new-address>"))
	}
	cfg, _, client, err := requireLogin(parser)
	if err != nil {
		return fail(err)
	}
	password, err := readPassword("current password: ")
	if err != nil {
		return fail(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	if err := client.UpdateEmail(ctx, rest[0], password); err != nil {
		return fail(err)
	}
	fmt.Println(okStyle.Render("email updated to " + rest[0]))
	return 0
}

func accountPassword(parser *ArgParser) int {
	cfg, _, client, err := requireLogin(parser)
	if err != nil {
		return fail(err)
	}
	current, err := readPassword("current password: ")
	if err != nil {
		return fail(err)
	}
	next, err := readPassword("new password: ")
	if err != nil {
		return fail(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	if err := client.UpdatePassword(ctx, current, next); err != nil {
		return fail(err)
	}
	fmt.Println(okStyle.Render("password updated"))
	return 0
}

func accountBuy(parser *ArgParser) int {
	rest := parser.Rest()
	if len(rest) != 1 {
		return fail(fmt.Errorf("usage: multichat account buy <token-amount>"))
	}
	amount := int64(0)
	for _, r := range rest[0] {
		if r < '0' || r > '9' {
			return fail(fmt.Errorf("amount must be a positive integer"))
		}
		amount = amount*10 + int64(r-'0')
	}
	if amount == 0 {
		return fail(fmt.Errorf("amount must be a positive integer"))
	}
	cfg, _, client, err := requireLogin(parser)
	if err != nil {
		return fail(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	if err := client.BuyTokens(ctx, amount); err != nil {
		return fail(err)
	}
	fmt.Println(okStyle.Render("purchased " + rest[0] + " tokens"))
	return 0
}

func accountVerify(parser *ArgParser) int {
	cfg, _, client, err := requireLogin(parser)
	if err != nil {
		return fail(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()

	// With a token argument, confirm it; otherwise resend the email.
	if rest := parser.Rest(); len(rest) == 1 {
		if err := client.VerifyEmail(ctx, rest[0]); err != nil {
			return fail(err)
		}
		fmt.Println(okStyle.Render("email verified"))
		return 0
	}

	profile, err := client.GetProfile(ctx)
	if err != nil {
		return fail(err)
	}
	if profile.Verified {
		fmt.Println(infoStyle.Render("account already verified"))
		return 0
	}
	if err := client.SendVerification(ctx, profile.Email); err != nil {
		return fail(err)
	}
	fmt.Println(okStyle.Render("verification email sent to " + profile.Email))
	return 0
}

func accountForgot(parser *ArgParser) int {
	rest := parser.Rest()
	if len(rest) != 1 {
		return fail(fmt.Errorf("usage: multichat account forgot <email>"))
	}
	cfg, _, client, err := setup(parser)
	if err != nil {
		return fail(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	if err := client.ForgotPassword(ctx, rest[0]); err != nil {
		return fail(err)
	}
	fmt.Println(okStyle.Render("reset email sent; finish with 'multichat account reset <token>'"))
	return 0
}

func accountReset(parser *ArgParser) int {
	rest := parser.Rest()
	if len(rest) != 1 {
		return fail(fmt.Errorf("usage: multichat account reset <token>"))
	}
	cfg, _, client, err := setup(parser)
	if err != nil {
		return fail(err)
	}
	next, err := readPassword("new password: ")
	if err != nil {
		return fail(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	if err := client.ResetPassword(ctx, rest[0], next); err != nil {
		return fail(err)
	}
	fmt.Println(okStyle.Render("password reset, log in with 'multichat login'"))
	return 0
}

// readPassword prompts without echo.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("password is required")
	}
	return string(raw), nil
}
