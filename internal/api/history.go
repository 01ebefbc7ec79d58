// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Rajbasheer/multichat-tui/internal/model"
)

// ListConversations fetches persisted conversations, optionally filtered to
// those containing history for modelKey (empty means all).
func (c *Client) ListConversations(ctx context.Context, modelKey string) ([]model.Conversation, error) {
	path := "/get-chat-history"
	if modelKey != "" {
		path += "?model=" + url.QueryEscape(modelKey)
	}
	var conversations []model.Conversation
	if err := c.getJSONRetry(ctx, path, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// GetConversation fetches one persisted conversation by id.
func (c *Client) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := c.getJSONRetry(ctx, "/get-chat-history/"+url.PathEscape(id), &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// SaveConversationRequest is the body of POST /save-chat-history. Messages
// carries the serialized history document (see model.HistoryDoc).
type SaveConversationRequest struct {
	ConversationID string `json:"conversation_id"`
	Messages       string `json:"messages"`
	Title          string `json:"title"`
}

// SaveConversation upserts a conversation record. Not retried: the caller's
// merge-by-key logic already makes repeats safe, but an automatic replay
// could interleave with a newer save.
func (c *Client) SaveConversation(ctx context.Context, req SaveConversationRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/save-chat-history", req, nil)
}

// DeleteConversation removes a persisted conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/delete-chat-history/"+url.PathEscape(id), nil, nil)
}
