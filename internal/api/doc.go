// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the HTTP client for the multichat backend.
//
// One Client covers the whole REST surface: the model catalog, the two
// streaming chat endpoints, file upload, conversation history, auth and
// account recovery, profile management, code generation, and document
// search.
//
// # Transport
//
// Unary calls share a pooled http.Client with a request timeout. Streaming
// chat responses use a second, timeout-free client so long generations are
// never cut off mid-stream; their lifetime is bounded by the caller's
// context instead. Both clients require TLS 1.2 or newer.
//
// # Errors
//
// Failures map onto package sentinels (ErrUnauthorized, ErrRateLimited, ...)
// wrapped in *APIError, so callers can branch with errors.Is while still
// seeing the backend's message.
//
// # Streaming
//
// The chat endpoints return HTTP 200 with a chunked body of raw UTF-8 text.
// There is no framing and no end-of-message marker beyond EOF. Stream
// decodes incrementally and never splits a multi-byte sequence across
// callbacks.
package api
