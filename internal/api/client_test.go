// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, StaticToken("test-token"), WithRateLimit(0, 0))
	return client, srv
}

func TestAuthorizationHeader(t *testing.T) {
	var gotAuth string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{}`)
	}))

	if _, err := client.Models(context.Background()); err != nil {
		t.Fatalf("Models: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusPaymentRequired, ErrPaymentRequired},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusInternalServerError, ErrServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"detail":"backend says no"}`)
			}))
			err := client.SaveConversation(context.Background(), SaveConversationRequest{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err is not *APIError: %v", err)
			}
			if apiErr.Message != "backend says no" {
				t.Errorf("message = %q", apiErr.Message)
			}
		})
	}
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"openai":{"gpt-4.1":{"name":"GPT-4.1","id":"gpt-4.1"}}}`)
	}))

	catalog, err := client.Models(context.Background())
	if err != nil {
		t.Fatalf("Models after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if catalog["openai"]["gpt-4.1"].Name != "GPT-4.1" {
		t.Errorf("catalog = %#v", catalog)
	}
}

func TestGetDoesNotRetryAuthFailure(t *testing.T) {
	var calls atomic.Int32
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Models(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("401 retried: %d calls", calls.Load())
	}
}

func TestChatStreamsBody(t *testing.T) {
	var gotBody string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/plain")
		for _, part := range []string{"Hel", "lo ", "日本"} {
			fmt.Fprint(w, part)
			flusher.Flush()
		}
	}))

	stream, err := client.Chat(context.Background(), ChatRequest{
		Provider: "openai",
		ModelKey: "gpt-4.1",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	text, err := stream.Process(context.Background(), nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if text != "Hello 日本" {
		t.Errorf("text = %q", text)
	}
	for _, want := range []string{`"provider":"openai"`, `"model_key":"gpt-4.1"`, `"content":"hi"`} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("request body %q missing %q", gotBody, want)
		}
	}
}

func TestChatNonOKStatus(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Chat(context.Background(), ChatRequest{Provider: "openai", ModelKey: "gpt-4.1"})
	if !IsAuthError(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
}

func TestChatWithUploadPayload(t *testing.T) {
	var gotBody string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, "grounded answer")
	}))

	stream, err := client.ChatWithUpload(context.Background(), ChatUploadRequest{
		Provider:   "claude",
		ModelKey:   "claude-3-opus",
		FileID:     "file_123",
		UserPrompt: "summarize",
	})
	if err != nil {
		t.Fatalf("ChatWithUpload: %v", err)
	}
	if text, _ := stream.Process(context.Background(), nil); text != "grounded answer" {
		t.Errorf("text = %q", text)
	}
	for _, want := range []string{`"file_id":"file_123"`, `"user_prompt":"summarize"`} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("body %q missing %q", gotBody, want)
		}
	}
}

func TestUploadMultipart(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "notes.txt" {
			t.Errorf("filename = %q", header.Filename)
		}
		fmt.Fprint(w, `{"success":true,"file_id":"file_abc","filename":"notes.txt"}`)
	}))

	result, err := client.Upload(context.Background(), "/tmp/some/dir/notes.txt", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !result.Success || result.FileID != "file_abc" {
		t.Errorf("result = %#v", result)
	}
}
