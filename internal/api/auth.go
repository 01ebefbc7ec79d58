// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"
)

// Credentials is the body of POST /login and POST /signup.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries the bearer token issued on successful auth.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*TokenResponse, error) {
	var tok TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/login", creds, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Signup registers a new account. Some deployments return a token directly;
// others require email verification first, in which case AccessToken is
// empty.
func (c *Client) Signup(ctx context.Context, creds Credentials) (*TokenResponse, error) {
	var tok TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/signup", creds, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// =============================================================================
// ACCOUNT RECOVERY
// =============================================================================

// SendVerification asks the backend to email a verification link.
func (c *Client) SendVerification(ctx context.Context, email string) error {
	payload := map[string]string{"email": email}
	return c.doJSON(ctx, http.MethodPost, "/auth/send-verification", payload, nil)
}

// VerifyEmail confirms an emailed verification token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	return c.doJSON(ctx, http.MethodGet, "/auth/verify-email?token="+url.QueryEscape(token), nil, nil)
}

// ForgotPassword starts the password reset flow for email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	payload := map[string]string{"email": email}
	return c.doJSON(ctx, http.MethodPost, "/auth/forgot-password", payload, nil)
}

// ResetPassword completes a reset using the emailed token.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	payload := map[string]string{"token": token, "new_password": newPassword}
	return c.doJSON(ctx, http.MethodPost, "/auth/reset-password", payload, nil)
}
