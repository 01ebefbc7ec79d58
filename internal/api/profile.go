// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
)

// Profile is the account record served by GET /user/profile.
type Profile struct {
	Email         string `json:"email"`
	Verified      bool   `json:"verified"`
	TokensLeft    int64  `json:"tokens_left"`
	PaymentMethod string `json:"payment_method,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// GetProfile fetches the signed-in account's profile.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.getJSONRetry(ctx, "/user/profile", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateEmail changes the account email. The backend sends a fresh
// verification mail to the new address.
func (c *Client) UpdateEmail(ctx context.Context, newEmail, password string) error {
	payload := map[string]string{"new_email": newEmail, "password": password}
	return c.doJSON(ctx, http.MethodPut, "/user/update-email", payload, nil)
}

// UpdatePassword changes the account password.
func (c *Client) UpdatePassword(ctx context.Context, current, newPassword string) error {
	payload := map[string]string{"current_password": current, "new_password": newPassword}
	return c.doJSON(ctx, http.MethodPut, "/user/update-password", payload, nil)
}

// UpdatePayment replaces the stored payment method.
func (c *Client) UpdatePayment(ctx context.Context, paymentToken string) error {
	payload := map[string]string{"payment_token": paymentToken}
	return c.doJSON(ctx, http.MethodPut, "/user/update-payment", payload, nil)
}

// BuyTokens purchases inference tokens against the stored payment method.
func (c *Client) BuyTokens(ctx context.Context, amount int64) error {
	payload := map[string]int64{"amount": amount}
	return c.doJSON(ctx, http.MethodPost, "/user/buy-tokens", payload, nil)
}
