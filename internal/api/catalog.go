// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
)

// ModelInfo is one catalog entry as served by GET /models.
type ModelInfo struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Catalog is the provider -> model-key -> info mapping served by the
// backend, e.g. {"openai": {"gpt-4.1": {"name": "GPT-4.1", "id": "gpt-4.1"}}}.
type Catalog map[string]map[string]ModelInfo

// Models fetches the provider/model catalog. Retries on transient failures;
// callers fall back to the static catalog when this ultimately fails.
func (c *Client) Models(ctx context.Context) (Catalog, error) {
	var catalog Catalog
	if err := c.getJSONRetry(ctx, "/models", &catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}

// =============================================================================
// CHAT
// =============================================================================

// ChatMessage is one turn in the request transcript for POST /chat.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Provider string        `json:"provider"`
	ModelKey string        `json:"model_key"`
	Messages []ChatMessage `json:"messages"`
}

// ChatUploadRequest is the body of POST /chat-with-upload: one previously
// uploaded file plus the user's prompt. The backend retrieves the file
// content server-side.
type ChatUploadRequest struct {
	Provider   string `json:"provider"`
	ModelKey   string `json:"model_key"`
	FileID     string `json:"file_id"`
	UserPrompt string `json:"user_prompt"`
}

// Chat opens a streaming completion for req. The returned Stream must be
// consumed (Process) or closed by the caller.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*Stream, error) {
	return c.openStream(ctx, "/chat", req)
}

// ChatWithUpload opens a streaming completion grounded on an uploaded file.
func (c *Client) ChatWithUpload(ctx context.Context, req ChatUploadRequest) (*Stream, error) {
	return c.openStream(ctx, "/chat-with-upload", req)
}

// openStream POSTs payload and hands back the live body. Streaming requests
// use the timeout-free client and are never retried: replaying a generation
// would bill the account twice.
func (c *Client) openStream(ctx context.Context, path string, payload any) (*Stream, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	body, err := encodeJSON(payload)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.handleErrorResponse(resp)
	}
	return NewStream(resp.Body), nil
}
