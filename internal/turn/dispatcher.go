// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package turn fans a user prompt out to every model-bound column as
// independent streaming requests and reports their progress as events.
//
// One user turn is a group of column-streams joined with a wait-for-all-
// outcomes policy: a slow or failing model never blocks or cancels its
// siblings, and the turn completes when every column has reached a terminal
// state. Each turn owns a cancellation context; dispatching a new turn or
// calling CancelActive aborts the previous one and discards its late
// results.
package turn

import (
	"context"
	"sync"

	"github.com/Rajbasheer/multichat-tui/internal/api"
	"github.com/Rajbasheer/multichat-tui/internal/model"
)

// SyntheticNetworkError is the assistant-visible message appended to a
// column whose request or stream failed.
const SyntheticNetworkError = "Network error. Please try again."

// ChatAPI is the slice of the backend client the dispatcher needs.
type ChatAPI interface {
	Chat(ctx context.Context, req api.ChatRequest) (*api.Stream, error)
	ChatWithUpload(ctx context.Context, req api.ChatUploadRequest) (*api.Stream, error)
}

// SaveFunc persists one column's transcript after its stream commits. The
// request is self-contained: a frozen copy of the transcript captured at
// dispatch plus the committed reply, so implementations never read the live
// transcript from a stream goroutine.
type SaveFunc func(ctx context.Context, req SaveRequest) error

// SaveRequest is the frozen per-column transcript handed to the save hook.
type SaveRequest struct {
	ColumnIndex    int
	ConversationID string
	ModelKey       string
	ModelName      string
	Entries        []model.HistoryEntry
}

// NewMessageIDFunc mints the placeholder assistant message id for a column.
type NewMessageIDFunc func(columnIndex int) string

// =============================================================================
// REQUESTS
// =============================================================================

// ColumnRequest describes one column's slice of a turn.
type ColumnRequest struct {
	Index     int
	Provider  string
	ModelKey  string
	ModelName string

	// Transcript is the prior conversation including the new user prompt,
	// used for the plain /chat endpoint.
	Transcript []api.ChatMessage
}

// Request is one user turn.
type Request struct {
	Prompt         string
	ConversationID string
	Columns        []ColumnRequest

	// AttachmentID, when set, routes every column through /chat-with-upload
	// with this backend file id and the bare prompt.
	AttachmentID string
}

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher runs turns. Safe for use from the UI loop; stream work happens
// on per-column goroutines.
type Dispatcher struct {
	mu sync.Mutex

	backend ChatAPI
	buffers *BufferSet
	events  func(Event)
	save    SaveFunc

	// onExpired runs (at most once per turn) when a column answers 401.
	onExpired func()

	newMessageID NewMessageIDFunc

	seq        int
	turnCancel context.CancelFunc
	states     map[int]State
	saved      map[int]bool
	inFlight   bool
}

// Config wires a Dispatcher.
type Config struct {
	Backend      ChatAPI
	Buffers      *BufferSet
	Events       func(Event)
	Save         SaveFunc
	OnExpired    func()
	NewMessageID NewMessageIDFunc
}

// NewDispatcher creates a dispatcher. Events and NewMessageID are required;
// Save and OnExpired may be nil.
func NewDispatcher(cfg Config) *Dispatcher {
	buffers := cfg.Buffers
	if buffers == nil {
		buffers = NewBufferSet(0, 0)
	}
	return &Dispatcher{
		backend:      cfg.Backend,
		buffers:      buffers,
		events:       cfg.Events,
		save:         cfg.Save,
		onExpired:    cfg.OnExpired,
		newMessageID: cfg.NewMessageID,
		states:       make(map[int]State),
		saved:        make(map[int]bool),
	}
}

// Buffers returns the buffer set the render loop flushes from.
func (d *Dispatcher) Buffers() *BufferSet {
	return d.buffers
}

// State returns the current state of a column-stream in the active turn.
func (d *Dispatcher) State(columnIndex int) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.states[columnIndex]
}

// InFlight reports whether a turn is still running.
func (d *Dispatcher) InFlight() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// CancelActive aborts the in-flight turn, if any. Late results of aborted
// streams are discarded, not committed into now-stale transcripts.
func (d *Dispatcher) CancelActive() {
	d.mu.Lock()
	cancel := d.turnCancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Send dispatches one user turn: one goroutine per column, join-all. It
// returns immediately; progress arrives through events. Any previous turn is
// canceled first.
func (d *Dispatcher) Send(parent context.Context, req Request) {
	d.mu.Lock()
	if d.turnCancel != nil {
		d.turnCancel()
	}
	ctx, cancel := context.WithCancel(parent)
	d.turnCancel = cancel
	d.seq++
	seq := d.seq
	d.inFlight = true

	// Fresh per-turn state: saved flags and the 401 guard reset here.
	d.states = make(map[int]State)
	d.saved = make(map[int]bool)
	logoutOnce := &sync.Once{}

	indices := make([]int, 0, len(req.Columns))
	for _, col := range req.Columns {
		d.states[col.Index] = StateSending
		indices = append(indices, col.Index)
	}
	d.mu.Unlock()

	d.emit(TurnStarted{Seq: seq, Columns: indices})

	var wg sync.WaitGroup
	for _, col := range req.Columns {
		wg.Add(1)
		go func(col ColumnRequest) {
			defer wg.Done()
			d.runColumn(ctx, seq, req, col, logoutOnce)
		}(col)
	}

	go func() {
		// Wait-for-all-outcomes: individual failures were already reported
		// per column; completion of the group gates turn-level UI state.
		wg.Wait()
		d.mu.Lock()
		if d.seq == seq {
			d.inFlight = false
		}
		d.mu.Unlock()
		d.emit(TurnDone{Seq: seq})
	}()
}

// =============================================================================
// COLUMN STREAM
// =============================================================================

func (d *Dispatcher) runColumn(ctx context.Context, seq int, req Request, col ColumnRequest, logoutOnce *sync.Once) {
	stream, err := d.open(ctx, req, col)
	if err != nil {
		d.failBeforeStream(ctx, seq, col, err, logoutOnce)
		return
	}

	// OK headers: Sending -> Streaming, placeholder message appears.
	messageID := d.newMessageID(col.Index)
	d.setState(col.Index, StateStreaming)
	d.emit(StreamStarted{Seq: seq, Column: col.Index, MessageID: messageID, ModelName: col.ModelName})

	final, err := stream.Process(ctx, func(text string) {
		d.buffers.Write(messageID, text)
	})
	if err != nil {
		d.buffers.Remove(messageID)
		d.setState(col.Index, StateFailed)
		if ctx.Err() != nil {
			// Canceled turn: discard silently, the context is stale.
			d.emit(StreamAborted{Seq: seq, Column: col.Index, MessageID: messageID})
			return
		}
		d.emit(StreamFailed{
			Seq:       seq,
			Column:    col.Index,
			MessageID: messageID,
			Err:       err,
			Synthetic: SyntheticNetworkError,
		})
		return
	}

	// End of stream: content frozen, buffer entry removed exactly once.
	d.buffers.Remove(messageID)
	d.setState(col.Index, StateCommitted)

	saved := d.persist(ctx, req.ConversationID, col, final)
	d.emit(StreamCommitted{
		Seq:       seq,
		Column:    col.Index,
		MessageID: messageID,
		Content:   final,
		Saved:     saved,
	})
}

// open issues the column's HTTP request, choosing the endpoint variant by
// attachment presence.
func (d *Dispatcher) open(ctx context.Context, req Request, col ColumnRequest) (*api.Stream, error) {
	if req.AttachmentID != "" {
		return d.backend.ChatWithUpload(ctx, api.ChatUploadRequest{
			Provider:   col.Provider,
			ModelKey:   col.ModelKey,
			FileID:     req.AttachmentID,
			UserPrompt: req.Prompt,
		})
	}
	return d.backend.Chat(ctx, api.ChatRequest{
		Provider: col.Provider,
		ModelKey: col.ModelKey,
		Messages: col.Transcript,
	})
}

// failBeforeStream handles Sending -> Failed: no placeholder exists yet.
// A 401 triggers the session-expired callback exactly once per turn and
// aborts only this column; every other failure appends the synthetic error
// message to this column only.
func (d *Dispatcher) failBeforeStream(ctx context.Context, seq int, col ColumnRequest, err error, logoutOnce *sync.Once) {
	d.setState(col.Index, StateFailed)

	if ctx.Err() != nil {
		d.emit(StreamAborted{Seq: seq, Column: col.Index})
		return
	}

	if api.IsAuthError(err) {
		logoutOnce.Do(func() {
			if d.onExpired != nil {
				d.onExpired()
			}
			d.emit(SessionExpired{Seq: seq, Column: col.Index})
		})
		d.emit(StreamFailed{Seq: seq, Column: col.Index, Err: err})
		return
	}

	d.emit(StreamFailed{
		Seq:       seq,
		Column:    col.Index,
		Err:       err,
		Synthetic: SyntheticNetworkError,
	})
}

// persist invokes the save hook once per column per turn; the flag is set
// only after a successful save so a failed save can be retried by a later
// commit in the same turn. The hook receives the dispatch-time transcript
// plus the committed reply, never a view into live columns.
func (d *Dispatcher) persist(ctx context.Context, conversationID string, col ColumnRequest, content string) bool {
	if d.save == nil || conversationID == "" {
		return false
	}
	d.mu.Lock()
	already := d.saved[col.Index]
	d.mu.Unlock()
	if already {
		return true
	}

	entries := make([]model.HistoryEntry, 0, len(col.Transcript)+1)
	for _, msg := range col.Transcript {
		role := model.RoleAssistant
		if msg.Role == string(model.RoleUser) {
			role = model.RoleUser
		}
		entries = append(entries, model.HistoryEntry{Role: role, Message: msg.Content})
	}
	entries = append(entries, model.HistoryEntry{Role: model.RoleAssistant, Message: content})

	err := d.save(ctx, SaveRequest{
		ColumnIndex:    col.Index,
		ConversationID: conversationID,
		ModelKey:       col.ModelKey,
		ModelName:      col.ModelName,
		Entries:        entries,
	})
	if err != nil {
		return false
	}
	d.mu.Lock()
	d.saved[col.Index] = true
	d.mu.Unlock()
	return true
}

func (d *Dispatcher) setState(columnIndex int, s State) {
	d.mu.Lock()
	d.states[columnIndex] = s
	d.mu.Unlock()
}

func (d *Dispatcher) emit(ev Event) {
	if d.events != nil {
		d.events(ev)
	}
}
