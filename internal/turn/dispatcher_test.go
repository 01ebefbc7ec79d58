// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Rajbasheer/multichat-tui/internal/api"
	"github.com/Rajbasheer/multichat-tui/internal/model"
)

// =============================================================================
// FAKES
// =============================================================================

// columnScript drives one column's fake response.
type columnScript struct {
	chunks []string
	err    error         // returned from the request instead of a stream
	delay  time.Duration // before the first chunk
}

// fakeChat serves scripted streams keyed by model key.
type fakeChat struct {
	mu      sync.Mutex
	scripts map[string]columnScript
	chats   []api.ChatRequest
	uploads []api.ChatUploadRequest
}

func (f *fakeChat) Chat(ctx context.Context, req api.ChatRequest) (*api.Stream, error) {
	f.mu.Lock()
	f.chats = append(f.chats, req)
	script := f.scripts[req.ModelKey]
	f.mu.Unlock()
	return f.serve(ctx, script)
}

func (f *fakeChat) ChatWithUpload(ctx context.Context, req api.ChatUploadRequest) (*api.Stream, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, req)
	script := f.scripts[req.ModelKey]
	f.mu.Unlock()
	return f.serve(ctx, script)
}

func (f *fakeChat) serve(ctx context.Context, script columnScript) (*api.Stream, error) {
	if script.err != nil {
		return nil, script.err
	}
	if script.delay > 0 {
		select {
		case <-time.After(script.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return api.NewStream(io.NopCloser(strings.NewReader(strings.Join(script.chunks, "")))), nil
}

// collector gathers events for assertions.
type collector struct {
	mu     sync.Mutex
	events []Event
	done   chan struct{}
}

func newCollector() *collector {
	return &collector{done: make(chan struct{}, 4)}
}

func (c *collector) sink(ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	if _, ok := ev.(TurnDone); ok {
		c.done <- struct{}{}
	}
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("turn never completed")
	}
}

func (c *collector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func countEvents[T Event](events []Event) int {
	n := 0
	for _, ev := range events {
		if _, ok := ev.(T); ok {
			n++
		}
	}
	return n
}

func columnRequests(keys ...string) []ColumnRequest {
	cols := make([]ColumnRequest, len(keys))
	for i, key := range keys {
		cols[i] = ColumnRequest{
			Index:     i,
			Provider:  "test",
			ModelKey:  key,
			ModelName: key,
			Transcript: []api.ChatMessage{
				{Role: "user", Content: "Hello"},
			},
		}
	}
	return cols
}

type saveRecorder struct {
	mu    sync.Mutex
	calls []SaveRequest
	fail  bool
}

func (r *saveRecorder) fn(ctx context.Context, req SaveRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return context.DeadlineExceeded
	}
	r.calls = append(r.calls, req)
	return nil
}

// =============================================================================
// TESTS
// =============================================================================

// Every bound column produces exactly one placeholder and reaches a terminal
// state, for all supported column counts and completion orders.
func TestFanOutAllColumnsReachTerminalState(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4} {
		t.Run(fmt.Sprintf("%d-columns", n), func(t *testing.T) {
			backend := &fakeChat{scripts: map[string]columnScript{}}
			keys := make([]string, n)
			for i := range keys {
				keys[i] = "model-" + string(rune('a'+i))
				// Staggered delays force out-of-order completion.
				backend.scripts[keys[i]] = columnScript{
					chunks: []string{"answer from ", keys[i]},
					delay:  time.Duration(n-i) * 10 * time.Millisecond,
				}
			}

			events := newCollector()
			d := NewDispatcher(Config{
				Backend:      backend,
				Events:       events.sink,
				NewMessageID: model.NewMessageID,
			})
			d.Send(context.Background(), Request{
				Prompt:  "Hello",
				Columns: columnRequests(keys...),
			})
			events.wait(t)

			all := events.all()
			if got := countEvents[StreamStarted](all); got != n {
				t.Errorf("placeholders = %d, want %d", got, n)
			}
			if got := countEvents[StreamCommitted](all); got != n {
				t.Errorf("committed = %d, want %d", got, n)
			}
			for i := 0; i < n; i++ {
				if s := d.State(i); s != StateCommitted {
					t.Errorf("column %d state = %v", i, s)
				}
			}
		})
	}
}

// A 401 on one column fires the logout callback exactly once and leaves
// sibling streams untouched.
func TestAuthFailureSingleLogoutSiblingsUnaffected(t *testing.T) {
	authErr := &api.APIError{Type: api.ErrorTypeAuth, Message: "expired", Cause: api.ErrUnauthorized}
	backend := &fakeChat{scripts: map[string]columnScript{
		"bad-model":  {err: authErr},
		"good-model": {chunks: []string{"still ", "fine"}, delay: 20 * time.Millisecond},
	}}

	var logouts int
	var mu sync.Mutex
	events := newCollector()
	d := NewDispatcher(Config{
		Backend: backend,
		Events:  events.sink,
		OnExpired: func() {
			mu.Lock()
			logouts++
			mu.Unlock()
		},
		NewMessageID: model.NewMessageID,
	})

	d.Send(context.Background(), Request{
		Prompt:  "Hello",
		Columns: columnRequests("bad-model", "good-model"),
	})
	events.wait(t)

	mu.Lock()
	defer mu.Unlock()
	if logouts != 1 {
		t.Errorf("logout callbacks = %d, want 1", logouts)
	}
	all := events.all()
	if got := countEvents[SessionExpired](all); got != 1 {
		t.Errorf("SessionExpired events = %d, want 1", got)
	}
	if got := countEvents[StreamCommitted](all); got != 1 {
		t.Errorf("good column did not commit: %d committed", got)
	}
	// The failed auth column shows no synthetic network message.
	for _, ev := range all {
		if f, ok := ev.(StreamFailed); ok && f.Column == 0 && f.Synthetic != "" {
			t.Error("auth failure must not append the synthetic network error")
		}
	}
}

// Non-auth failures append the synthetic error message to that column only.
func TestServerErrorSyntheticMessage(t *testing.T) {
	backend := &fakeChat{scripts: map[string]columnScript{
		"broken": {err: &api.APIError{Type: api.ErrorTypeServer, Message: "boom", Cause: api.ErrServer}},
		"fine":   {chunks: []string{"ok"}},
	}}
	events := newCollector()
	d := NewDispatcher(Config{Backend: backend, Events: events.sink, NewMessageID: model.NewMessageID})

	d.Send(context.Background(), Request{Prompt: "Hello", Columns: columnRequests("broken", "fine")})
	events.wait(t)

	var failed []StreamFailed
	for _, ev := range events.all() {
		if f, ok := ev.(StreamFailed); ok {
			failed = append(failed, f)
		}
	}
	if len(failed) != 1 {
		t.Fatalf("failed events = %d, want 1", len(failed))
	}
	if failed[0].Column != 0 || failed[0].Synthetic != SyntheticNetworkError {
		t.Errorf("failure = %+v", failed[0])
	}
	if d.State(1) != StateCommitted {
		t.Errorf("healthy column state = %v", d.State(1))
	}
}

// Two bound columns, one prompt: two /chat POSTs with the right model keys
// and one persistence call per column after completion.
func TestTwoColumnScenario(t *testing.T) {
	backend := &fakeChat{scripts: map[string]columnScript{
		"gpt-4":         {chunks: []string{"Hello from GPT"}},
		"claude-3-opus": {chunks: []string{"Hello from Claude"}},
	}}
	saves := &saveRecorder{}
	events := newCollector()
	d := NewDispatcher(Config{
		Backend:      backend,
		Events:       events.sink,
		Save:         saves.fn,
		NewMessageID: model.NewMessageID,
	})

	d.Send(context.Background(), Request{
		Prompt:         "Hello",
		ConversationID: "conv_42",
		Columns:        columnRequests("gpt-4", "claude-3-opus"),
	})
	events.wait(t)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.chats) != 2 {
		t.Fatalf("chat posts = %d, want 2", len(backend.chats))
	}
	gotKeys := map[string]bool{}
	for _, req := range backend.chats {
		gotKeys[req.ModelKey] = true
		if len(req.Messages) == 0 || req.Messages[len(req.Messages)-1].Content != "Hello" {
			t.Errorf("transcript missing prompt: %+v", req.Messages)
		}
	}
	if !gotKeys["gpt-4"] || !gotKeys["claude-3-opus"] {
		t.Errorf("model keys = %v", gotKeys)
	}

	saves.mu.Lock()
	defer saves.mu.Unlock()
	if len(saves.calls) != 2 {
		t.Errorf("save calls = %d, want 2", len(saves.calls))
	}
	for _, ev := range events.all() {
		if c, ok := ev.(StreamCommitted); ok {
			if !c.Saved || c.Content == "" {
				t.Errorf("committed without content/save: %+v", c)
			}
		}
	}
}

// An attachment routes every column through /chat-with-upload carrying the
// backend file id and the bare prompt.
func TestAttachmentRoutesThroughUploadEndpoint(t *testing.T) {
	backend := &fakeChat{scripts: map[string]columnScript{
		"gpt-4": {chunks: []string{"summarized"}},
	}}
	events := newCollector()
	d := NewDispatcher(Config{Backend: backend, Events: events.sink, NewMessageID: model.NewMessageID})

	d.Send(context.Background(), Request{
		Prompt:       "summarize this",
		AttachmentID: "file_abc",
		Columns:      columnRequests("gpt-4"),
	})
	events.wait(t)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.chats) != 0 {
		t.Errorf("plain /chat used despite attachment")
	}
	if len(backend.uploads) != 1 {
		t.Fatalf("upload chats = %d, want 1", len(backend.uploads))
	}
	got := backend.uploads[0]
	if got.FileID != "file_abc" || got.UserPrompt != "summarize this" {
		t.Errorf("upload request = %+v", got)
	}
}

// The save hook's request is self-contained: the dispatch-time transcript
// plus the committed reply, with the column's model identity attached. The
// hook must not have to read the live transcript, which may not even hold
// the placeholder yet when the save fires.
func TestSaveReceivesFrozenTranscript(t *testing.T) {
	backend := &fakeChat{scripts: map[string]columnScript{
		"gpt-4": {chunks: []string{"Hi ", "there"}},
	}}
	saves := &saveRecorder{}
	events := newCollector()
	d := NewDispatcher(Config{
		Backend:      backend,
		Events:       events.sink,
		Save:         saves.fn,
		NewMessageID: model.NewMessageID,
	})

	d.Send(context.Background(), Request{
		Prompt:         "Hello",
		ConversationID: "conv_9",
		Columns:        columnRequests("gpt-4"),
	})
	events.wait(t)

	saves.mu.Lock()
	defer saves.mu.Unlock()
	if len(saves.calls) != 1 {
		t.Fatalf("save calls = %d, want 1", len(saves.calls))
	}
	got := saves.calls[0]
	if got.ConversationID != "conv_9" || got.ColumnIndex != 0 || got.ModelKey != "gpt-4" {
		t.Errorf("save request = %+v", got)
	}
	want := []model.HistoryEntry{
		{Role: model.RoleUser, Message: "Hello"},
		{Role: model.RoleAssistant, Message: "Hi there"},
	}
	if !reflect.DeepEqual(got.Entries, want) {
		t.Errorf("entries = %+v, want %+v", got.Entries, want)
	}
}

// The save hook runs once per column per turn even when the turn commits
// normally, and a failing save does not set the flag.
func TestSaveIdempotencePerTurn(t *testing.T) {
	backend := &fakeChat{scripts: map[string]columnScript{
		"gpt-4": {chunks: []string{"one"}},
	}}
	saves := &saveRecorder{}
	events := newCollector()
	d := NewDispatcher(Config{
		Backend:      backend,
		Events:       events.sink,
		Save:         saves.fn,
		NewMessageID: model.NewMessageID,
	})

	// Two sequential turns: flags reset per turn, one save each.
	for i := 0; i < 2; i++ {
		d.Send(context.Background(), Request{
			Prompt:         "Hello",
			ConversationID: "conv_1",
			Columns:        columnRequests("gpt-4"),
		})
		events.wait(t)
	}
	saves.mu.Lock()
	if len(saves.calls) != 2 {
		t.Errorf("save calls across two turns = %d, want 2", len(saves.calls))
	}
	saves.mu.Unlock()
}

func TestFailedSaveReportedUnsaved(t *testing.T) {
	backend := &fakeChat{scripts: map[string]columnScript{
		"gpt-4": {chunks: []string{"one"}},
	}}
	saves := &saveRecorder{fail: true}
	events := newCollector()
	d := NewDispatcher(Config{
		Backend:      backend,
		Events:       events.sink,
		Save:         saves.fn,
		NewMessageID: model.NewMessageID,
	})
	d.Send(context.Background(), Request{
		Prompt:         "Hello",
		ConversationID: "conv_1",
		Columns:        columnRequests("gpt-4"),
	})
	events.wait(t)

	for _, ev := range events.all() {
		if c, ok := ev.(StreamCommitted); ok && c.Saved {
			t.Error("failed save reported as saved")
		}
	}
}

// Canceling a turn aborts its streams silently: no synthetic message, no
// commit into the stale transcript.
func TestCancelDiscardsLateResults(t *testing.T) {
	backend := &fakeChat{scripts: map[string]columnScript{
		"slow": {chunks: []string{"late"}, delay: 200 * time.Millisecond},
	}}
	events := newCollector()
	d := NewDispatcher(Config{Backend: backend, Events: events.sink, NewMessageID: model.NewMessageID})

	d.Send(context.Background(), Request{Prompt: "Hello", Columns: columnRequests("slow")})
	time.Sleep(10 * time.Millisecond)
	d.CancelActive()
	events.wait(t)

	all := events.all()
	if got := countEvents[StreamCommitted](all); got != 0 {
		t.Errorf("canceled stream committed %d times", got)
	}
	for _, ev := range all {
		if f, ok := ev.(StreamFailed); ok && f.Synthetic != "" {
			t.Error("canceled stream produced a synthetic error message")
		}
	}
	if got := countEvents[StreamAborted](all); got != 1 {
		t.Errorf("aborted events = %d, want 1", got)
	}
}

// Partial text accumulates under the message id and the entry disappears at
// commit.
func TestBufferLifecycleAcrossTurn(t *testing.T) {
	backend := &fakeChat{scripts: map[string]columnScript{
		"gpt-4": {chunks: []string{"streamed body"}},
	}}
	events := newCollector()
	d := NewDispatcher(Config{Backend: backend, Events: events.sink, NewMessageID: model.NewMessageID})

	d.Send(context.Background(), Request{Prompt: "Hello", Columns: columnRequests("gpt-4")})
	events.wait(t)

	if d.Buffers().Active() != 0 {
		t.Errorf("buffer entries leaked: %d", d.Buffers().Active())
	}
	for _, ev := range events.all() {
		if c, ok := ev.(StreamCommitted); ok && c.Content != "streamed body" {
			t.Errorf("final content = %q", c.Content)
		}
	}
}
