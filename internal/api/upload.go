// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
)

// UploadResult is the response of POST /upload.
type UploadResult struct {
	Success  bool   `json:"success"`
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
}

// Upload sends one file as multipart form data under the "file" field and
// returns the backend-assigned file id.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (*UploadResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, &APIError{Type: ErrorTypeInvalid, Message: "failed to build upload form", Cause: err}
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, &APIError{Type: ErrorTypeInvalid, Message: "failed to read file", Cause: err}
	}
	if err := writer.Close(); err != nil {
		return nil, &APIError{Type: ErrorTypeInvalid, Message: "failed to finalize upload form", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &buf)
	if err != nil {
		return nil, &APIError{Type: ErrorTypeInvalid, Message: "failed to build request", Cause: err}
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.unary.Do(req)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.handleErrorResponse(resp)
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &APIError{Type: ErrorTypeServer, Message: "failed to decode upload response", Cause: err}
	}
	return &result, nil
}
