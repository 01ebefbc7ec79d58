// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
)

// CodeRequest is the body of POST /code/generate.
type CodeRequest struct {
	Language     string  `json:"language"`
	Instructions string  `json:"instructions"`
	ExistingCode string  `json:"existing_code,omitempty"`
	CodeStyle    string  `json:"code_style,omitempty"`
	UseRAG       bool    `json:"use_rag"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
}

// CodeResponse carries the generated snippet.
type CodeResponse struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
	Model    string `json:"model,omitempty"`
}

// GenerateCode requests a code snippet from the backend's code endpoint.
func (c *Client) GenerateCode(ctx context.Context, req CodeRequest) (*CodeResponse, error) {
	if req.Temperature == 0 {
		req.Temperature = 0.2
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 2048
	}
	var resp CodeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/code/generate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// DOCUMENT SEARCH
// =============================================================================

// SearchRequest is the body of POST /search against the backend's indexed
// document store.
type SearchRequest struct {
	Query   string            `json:"query"`
	K       int               `json:"k"`
	Filters map[string]string `json:"filters,omitempty"`
	Rerank  bool              `json:"rerank"`
}

// SearchHit is one scored chunk from the backend index.
type SearchHit struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename,omitempty"`
	Chunk      string  `json:"chunk"`
	Score      float64 `json:"score"`
}

// SearchResponse is the result set for a search query.
type SearchResponse struct {
	Hits []SearchHit `json:"hits"`
}

// Search queries the backend's document index (server-side RAG store).
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.K == 0 {
		req.K = 5
	}
	var resp SearchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
