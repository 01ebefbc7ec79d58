// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rajbasheer/multichat-tui/internal/api"
	"github.com/Rajbasheer/multichat-tui/internal/catalog"
	"github.com/Rajbasheer/multichat-tui/internal/config"
	"github.com/Rajbasheer/multichat-tui/internal/model"
	"github.com/Rajbasheer/multichat-tui/internal/session"
	"github.com/Rajbasheer/multichat-tui/internal/store"
	"github.com/Rajbasheer/multichat-tui/internal/turn"
	"github.com/Rajbasheer/multichat-tui/internal/ui/styles"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeHistory struct{}

func (fakeHistory) ListConversations(context.Context, string) ([]model.Conversation, error) {
	return nil, nil
}
func (fakeHistory) GetConversation(context.Context, string) (*model.Conversation, error) {
	return nil, nil
}
func (fakeHistory) SaveConversation(context.Context, api.SaveConversationRequest) error {
	return nil
}
func (fakeHistory) DeleteConversation(context.Context, string) error { return nil }

type fakeBackend struct{}

func (fakeBackend) Chat(context.Context, api.ChatRequest) (*api.Stream, error) {
	return api.NewStream(io.NopCloser(strings.NewReader("ok"))), nil
}
func (fakeBackend) ChatWithUpload(context.Context, api.ChatUploadRequest) (*api.Stream, error) {
	return api.NewStream(io.NopCloser(strings.NewReader("ok"))), nil
}

// =============================================================================
// FIXTURE
// =============================================================================

func newTestModel(t *testing.T) Model {
	t.Helper()

	st := store.New(fakeHistory{}, 2, "")
	disp := turn.NewDispatcher(turn.Config{
		Backend: fakeBackend{},
		Buffers: turn.NewBufferSet(1, 60), // flush on every tick
	})

	m := New(Deps{
		Config:     config.Default(),
		Theme:      styles.NewTheme("dark"),
		Registry:   catalog.NewRegistry(),
		Store:      st,
		Dispatcher: disp,
		Session:    session.New(session.Config{}),
	})
	m.width = 120
	m.height = 40
	m.layout()
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	res, _ := m.Update(msg)
	next, ok := res.(Model)
	if !ok {
		t.Fatalf("Update returned %T", res)
	}
	return next
}

func bind(m Model, idx int, key string) {
	col := m.deps.Store.Column(idx)
	col.Bind(model.Selection{Provider: "test", Key: key, DisplayName: key})
}

func enter() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyEnter}
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmitAppendsUserMessageToBoundColumnsOnly(t *testing.T) {
	m := newTestModel(t)
	bind(m, 0, "gpt-4o")
	// Column 1 stays unbound.

	m = typeText(t, m, "hello there")
	m = update(t, m, enter())

	col0 := m.deps.Store.Column(0)
	if len(col0.Messages) != 1 || !col0.Messages[0].IsUser {
		t.Fatalf("bound column messages = %+v", col0.Messages)
	}
	if col0.Messages[0].Content != "hello there" {
		t.Errorf("content = %q", col0.Messages[0].Content)
	}
	if n := len(m.deps.Store.Column(1).Messages); n != 0 {
		t.Errorf("unbound column got %d messages", n)
	}
	if !m.streaming {
		t.Error("submit did not enter streaming state")
	}
	if m.deps.Store.ActiveID() == "" {
		t.Error("submit did not create a conversation")
	}
}

func TestSubmitWithNoBoundColumnsIsRejected(t *testing.T) {
	m := newTestModel(t)
	m = typeText(t, m, "hello")
	m = update(t, m, enter())

	if m.streaming {
		t.Error("turn dispatched with no bound columns")
	}
	if m.statusText == "" {
		t.Error("no status hint shown")
	}
}

func TestSubmitBlockedAfterSessionExpiry(t *testing.T) {
	m := newTestModel(t)
	bind(m, 0, "gpt-4o")
	m.sessionExpired = true

	m = typeText(t, m, "hello")
	m = update(t, m, enter())

	if n := len(m.deps.Store.Column(0).Messages); n != 0 {
		t.Errorf("expired session still dispatched %d messages", n)
	}
	if !strings.Contains(m.statusText, "expired") {
		t.Errorf("status = %q", m.statusText)
	}
}

func TestSubmitBlockedWhileStreaming(t *testing.T) {
	m := newTestModel(t)
	bind(m, 0, "gpt-4o")
	m.streaming = true

	m = typeText(t, m, "second prompt")
	m = update(t, m, enter())

	if n := len(m.deps.Store.Column(0).Messages); n != 0 {
		t.Errorf("concurrent submit appended %d messages", n)
	}
}

// =============================================================================
// TURN EVENTS
// =============================================================================

func TestStreamStartedInsertsPlaceholder(t *testing.T) {
	m := newTestModel(t)
	bind(m, 0, "gpt-4o")

	m = update(t, m, TurnEventMsg{Event: turn.StreamStarted{
		Column:    0,
		MessageID: "msg_1",
		ModelName: "GPT-4o",
	}})

	col := m.deps.Store.Column(0)
	if len(col.Messages) != 1 {
		t.Fatalf("messages = %d", len(col.Messages))
	}
	msg := col.Messages[0]
	if msg.ID != "msg_1" || msg.IsUser || msg.Content != "" || msg.ModelName != "GPT-4o" {
		t.Errorf("placeholder = %+v", msg)
	}
}

func TestStreamTickDrainsPartialIntoTranscript(t *testing.T) {
	m := newTestModel(t)
	bind(m, 0, "gpt-4o")
	m = update(t, m, TurnEventMsg{Event: turn.StreamStarted{Column: 0, MessageID: "msg_1"}})

	m.deps.Dispatcher.Buffers().Write("msg_1", "partial ")
	m = update(t, m, StreamTickMsg{})
	m.deps.Dispatcher.Buffers().Write("msg_1", "text")
	m = update(t, m, StreamTickMsg{})

	msg := m.deps.Store.Column(0).MessageByID("msg_1")
	if msg.Content != "partial text" {
		t.Errorf("content = %q", msg.Content)
	}
}

func TestStreamCommittedTracksUnsavedColumns(t *testing.T) {
	m := newTestModel(t)
	bind(m, 0, "gpt-4o")
	m = update(t, m, TurnEventMsg{Event: turn.StreamStarted{Column: 0, MessageID: "msg_1"}})

	m = update(t, m, TurnEventMsg{Event: turn.StreamCommitted{
		Column: 0, MessageID: "msg_1", Content: "final answer", Saved: false,
	}})
	if !m.unsavedCols[0] {
		t.Error("failed save not tracked")
	}
	if got := m.deps.Store.Column(0).MessageByID("msg_1").Content; got != "final answer" {
		t.Errorf("content = %q", got)
	}

	m = update(t, m, TurnEventMsg{Event: turn.StreamCommitted{
		Column: 0, MessageID: "msg_1", Content: "final answer", Saved: true,
	}})
	if m.unsavedCols[0] {
		t.Error("successful save did not clear the unsaved mark")
	}
}

func TestStreamFailureIsConfinedToItsColumn(t *testing.T) {
	m := newTestModel(t)
	bind(m, 0, "gpt-4o")
	bind(m, 1, "claude")
	m = update(t, m, TurnEventMsg{Event: turn.StreamStarted{Column: 0, MessageID: "msg_a"}})
	m = update(t, m, TurnEventMsg{Event: turn.StreamStarted{Column: 1, MessageID: "msg_b"}})

	m = update(t, m, TurnEventMsg{Event: turn.StreamFailed{
		Column:    1,
		MessageID: "msg_b",
		Synthetic: "Network error. Please try again.",
	}})

	failed := m.deps.Store.Column(1).MessageByID("msg_b")
	if failed.Content != "Network error. Please try again." {
		t.Errorf("synthetic content = %q", failed.Content)
	}
	if !m.failedMsgs["msg_b"] {
		t.Error("failed message not marked for error styling")
	}
	if got := m.deps.Store.Column(0).MessageByID("msg_a").Content; got != "" {
		t.Errorf("healthy column content = %q", got)
	}
	if m.failedMsgs["msg_a"] {
		t.Error("healthy column marked failed")
	}
}

func TestStreamFailedWithoutPlaceholderAppendsErrorMessage(t *testing.T) {
	m := newTestModel(t)
	bind(m, 0, "gpt-4o")

	m = update(t, m, TurnEventMsg{Event: turn.StreamFailed{
		Column:    0,
		Synthetic: "Network error. Please try again.",
	}})

	col := m.deps.Store.Column(0)
	if len(col.Messages) != 1 {
		t.Fatalf("messages = %d", len(col.Messages))
	}
	if col.Messages[0].Content != "Network error. Please try again." {
		t.Errorf("content = %q", col.Messages[0].Content)
	}
}

func TestStreamAbortedRemovesPlaceholder(t *testing.T) {
	m := newTestModel(t)
	bind(m, 0, "gpt-4o")
	m = update(t, m, TurnEventMsg{Event: turn.StreamStarted{Column: 0, MessageID: "msg_1"}})

	m = update(t, m, TurnEventMsg{Event: turn.StreamAborted{Column: 0, MessageID: "msg_1"}})

	if n := len(m.deps.Store.Column(0).Messages); n != 0 {
		t.Errorf("aborted placeholder survived, %d messages", n)
	}
}

func TestSessionExpiredEventLocksInput(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, TurnEventMsg{Event: turn.SessionExpired{Column: 0}})
	if !m.sessionExpired {
		t.Error("expiry event ignored")
	}
}

func TestTurnDoneStopsStreaming(t *testing.T) {
	m := newTestModel(t)
	m.streaming = true
	m = update(t, m, TurnEventMsg{Event: turn.TurnDone{}})
	if m.streaming {
		t.Error("still streaming after TurnDone")
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func TestColumnsCommandResizesLayout(t *testing.T) {
	m := newTestModel(t)
	m = typeText(t, m, "/columns 3")
	m = update(t, m, enter())

	if got := m.deps.Store.ColumnCount(); got != 3 {
		t.Errorf("column count = %d", got)
	}
	if len(m.viewports) != 3 {
		t.Errorf("viewports = %d", len(m.viewports))
	}
}

func TestColumnsCommandRejectsOutOfRange(t *testing.T) {
	m := newTestModel(t)
	for _, arg := range []string{"0", "5", "x"} {
		m = typeText(t, m, "/columns "+arg)
		m = update(t, m, enter())
		if got := m.deps.Store.ColumnCount(); got != 2 {
			t.Errorf("/columns %s changed count to %d", arg, got)
		}
	}
}

func TestAttachAndDetachStageFiles(t *testing.T) {
	m := newTestModel(t)
	m = typeText(t, m, "/attach notes.txt report.pdf")
	m = update(t, m, enter())
	if len(m.pendingFiles) != 2 {
		t.Fatalf("staged = %v", m.pendingFiles)
	}

	m = typeText(t, m, "/detach")
	m = update(t, m, enter())
	if len(m.pendingFiles) != 0 {
		t.Errorf("detach left %v", m.pendingFiles)
	}
}

func TestUnknownCommandShowsError(t *testing.T) {
	m := newTestModel(t)
	m = typeText(t, m, "/bogus")
	m = update(t, m, enter())
	if !m.statusErr || !strings.Contains(m.statusText, "/bogus") {
		t.Errorf("status = %q err=%v", m.statusText, m.statusErr)
	}
}

// =============================================================================
// VIEW
// =============================================================================

func TestViewRendersSyntheticErrorsAndPartials(t *testing.T) {
	m := newTestModel(t)
	bind(m, 0, "gpt-4o")
	m = update(t, m, TurnEventMsg{Event: turn.StreamStarted{Column: 0, MessageID: "msg_1"}})
	m.deps.Dispatcher.Buffers().Write("msg_1", "streaming now")

	transcript := m.renderTranscript(0)
	if !strings.Contains(transcript, "streaming now") {
		t.Errorf("partial text missing from transcript:\n%s", transcript)
	}

	m = update(t, m, TurnEventMsg{Event: turn.StreamFailed{
		Column: 0, MessageID: "msg_1", Synthetic: "Network error. Please try again.",
	}})
	transcript = m.renderTranscript(0)
	if !strings.Contains(transcript, "Network error. Please try again.") {
		t.Errorf("synthetic error missing from transcript:\n%s", transcript)
	}
}

func TestViewShowsBindHintForUnboundColumn(t *testing.T) {
	m := newTestModel(t)
	if got := m.renderTranscript(0); !strings.Contains(got, "No model bound") {
		t.Errorf("placeholder = %q", got)
	}
}

// =============================================================================
// EXPORT
// =============================================================================

func TestExportTranscriptWritesMarkdown(t *testing.T) {
	t.Chdir(t.TempDir())

	col := &model.Column{Index: 0}
	col.Bind(model.Selection{Provider: "test", Key: "gpt-4o", DisplayName: "GPT-4o"})
	col.Append(model.NewUserMessage("what is Go?", 0, nil))
	col.Append(model.Message{
		ID:        "msg_1",
		Content:   "A programming language.",
		ModelName: "GPT-4o",
	})

	path, err := ExportTranscript([]*model.Column{col}, "Go question")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	text := string(data)
	for _, want := range []string{"# Go question", "## GPT-4o", "**You**", "what is Go?", "A programming language."} {
		if !strings.Contains(text, want) {
			t.Errorf("export missing %q", want)
		}
	}
	if !strings.HasSuffix(path, ".md") {
		t.Errorf("path = %q", path)
	}
}

func TestExportTranscriptRejectsEmptyConversation(t *testing.T) {
	if _, err := ExportTranscript([]*model.Column{{Index: 0}}, "empty"); err == nil {
		t.Error("empty export did not fail")
	}
}
