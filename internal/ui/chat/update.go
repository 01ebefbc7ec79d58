// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rajbasheer/multichat-tui/internal/api"
	"github.com/Rajbasheer/multichat-tui/internal/model"
	"github.com/Rajbasheer/multichat-tui/internal/turn"
	"github.com/Rajbasheer/multichat-tui/internal/ui/components"
	"github.com/Rajbasheer/multichat-tui/internal/upload"
	"github.com/Rajbasheer/multichat-tui/internal/util"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshAllColumns()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamTickMsg:
		return m.handleStreamTick()

	case TurnEventMsg:
		return m.handleTurnEvent(msg.Event)

	case SessionTickMsg:
		return m.handleSessionTick()

	case CatalogLoadedMsg:
		m.rebuildPickerItems()
		m.applyDefaultModels()
		if msg.Err != nil {
			cmd := m.setStatus("model catalog unavailable, using built-in list", true)
			return m, cmd
		}
		return m, nil

	case ConversationsLoadedMsg:
		return m.handleConversationsLoaded(msg)

	case ConversationLoadedMsg:
		if msg.Err != nil {
			cmd := m.setStatus("load conversation: "+msg.Err.Error(), true)
			return m, cmd
		}
		m.overlay = overlayNone
		m.failedMsgs = make(map[string]bool)
		m.unsavedCols = make(map[int]bool)
		m.refreshAllColumns()
		return m, nil

	case ConversationDeletedMsg:
		if msg.Err != nil {
			cmd := m.setStatus("delete conversation: "+msg.Err.Error(), true)
			return m, cmd
		}
		m.refreshAllColumns()
		return m, m.loadConversationsCmd()

	case SearchResultsMsg:
		return m.handleSearchResults(msg)

	case AttachmentsUploadedMsg:
		return m.handleAttachmentsUploaded(msg)

	case ConfigReloadedMsg:
		m.deps.Config = msg.Config
		m.deps.Store.SetColumnCount(msg.Config.Chat.Columns)
		m.syncViewports()
		m.refreshAllColumns()
		cmd := m.setStatus("configuration reloaded", false)
		return m, cmd

	case ExportDoneMsg:
		if msg.Err != nil {
			cmd := m.setStatus("export failed: "+msg.Err.Error(), true)
			return m, cmd
		}
		cmd := m.setStatus("exported to "+msg.Path, false)
		return m, cmd

	case StatusMsg:
		cmd := m.setStatus(msg.Text, msg.IsErr)
		return m, cmd

	case statusExpireMsg:
		if msg.seq == m.statusSeq {
			m.statusText = ""
		}
		return m, nil
	}

	// Remaining messages feed the focused components (spinner frames,
	// textarea blink).
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		m.deps.Dispatcher.CancelActive()
		return m, tea.Quit
	}

	if m.overlay != overlayNone {
		return m.handleOverlayKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		return m.handleSubmit()

	case key.Matches(msg, m.keys.Cancel):
		if m.streaming {
			m.deps.Dispatcher.CancelActive()
			cmd := m.setStatus("turn canceled", false)
			return m, cmd
		}
		return m, nil

	case key.Matches(msg, m.keys.NextColumn):
		if n := len(m.viewports); n > 0 {
			m.focused = (m.focused + 1) % n
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevColumn):
		if n := len(m.viewports); n > 0 {
			m.focused = (m.focused - 1 + n) % n
		}
		return m, nil

	case key.Matches(msg, m.keys.Models):
		m.rebuildPickerItems()
		m.overlay = overlayModels
		return m, nil

	case key.Matches(msg, m.keys.Chats):
		m.overlay = overlayChats
		return m, m.loadConversationsCmd()

	case key.Matches(msg, m.keys.NewChat):
		if m.streaming {
			m.deps.Dispatcher.CancelActive()
		}
		m.deps.Store.Create()
		m.failedMsgs = make(map[string]bool)
		m.unsavedCols = make(map[int]bool)
		m.refreshAllColumns()
		cmd := m.setStatus("new conversation", false)
		return m, cmd

	case key.Matches(msg, m.keys.Search):
		if m.deps.Index == nil {
			cmd := m.setStatus("history index disabled", true)
			return m, cmd
		}
		m.searchQuery = ""
		m.search.SetItems(nil)
		m.search.SetTitle("Search history")
		m.overlay = overlaySearch
		return m, nil

	case key.Matches(msg, m.keys.Export):
		return m, m.exportCmd()

	case key.Matches(msg, m.keys.Help):
		m.overlay = overlayHelp
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		if m.focused < len(m.viewports) {
			m.viewports[m.focused].HalfViewUp()
		}
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		if m.focused < len(m.viewports) {
			m.viewports[m.focused].HalfViewDown()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleOverlayKey routes keys while a picker or list overlay is open.
func (m Model) handleOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Cancel) {
		m.overlay = overlayNone
		return m, nil
	}

	if m.overlay == overlayHelp {
		return m, nil
	}

	list := m.activeOverlayList()
	if list == nil {
		m.overlay = overlayNone
		return m, nil
	}

	switch msg.String() {
	case "up":
		list.MoveUp()
		return m, nil
	case "down":
		list.MoveDown()
		return m, nil
	case "enter":
		return m.handleOverlaySelect()
	case "backspace":
		if m.overlay == overlaySearch {
			runes := []rune(m.searchQuery)
			if len(runes) > 0 {
				m.searchQuery = string(runes[:len(runes)-1])
				m.search.SetTitle("Search history: " + m.searchQuery)
			}
			return m, nil
		}
		list.Backspace()
		return m, nil
	case "ctrl+d":
		if m.overlay == overlayChats {
			if item, ok := list.Selected(); ok {
				return m, m.deleteConversationCmd(item.Value)
			}
		}
		return m, nil
	}

	if msg.Type == tea.KeyRunes {
		text := string(msg.Runes)
		if m.overlay == overlaySearch {
			m.searchQuery += text
			m.search.SetTitle("Search history: " + m.searchQuery)
			return m, nil
		}
		list.Type(text)
	}
	return m, nil
}

func (m *Model) activeOverlayList() *components.OverlayList {
	switch m.overlay {
	case overlayModels:
		return m.picker
	case overlayChats:
		return m.chats
	case overlaySearch:
		return m.search
	}
	return nil
}

func (m Model) handleOverlaySelect() (tea.Model, tea.Cmd) {
	switch m.overlay {
	case overlayModels:
		item, ok := m.picker.Selected()
		if !ok {
			return m, nil
		}
		sel, ok := m.deps.Registry.Resolve(item.Value)
		if !ok {
			cmd := m.setStatus("unknown model "+item.Value, true)
			return m, cmd
		}
		if col := m.deps.Store.Column(m.focused); col != nil {
			// A stream into the old binding must not land in the new one.
			if m.streaming {
				m.deps.Dispatcher.CancelActive()
			}
			col.Bind(sel)
			m.refreshColumn(m.focused)
		}
		m.overlay = overlayNone
		cmd := m.setStatus("column "+util.IntToString(m.focused+1)+" -> "+sel.Label(), false)
		return m, cmd

	case overlayChats:
		item, ok := m.chats.Selected()
		if !ok {
			return m, nil
		}
		if m.streaming {
			m.deps.Dispatcher.CancelActive()
		}
		return m, m.selectConversationCmd(item.Value)

	case overlaySearch:
		if item, ok := m.search.Selected(); ok && item.Value != "" {
			return m, m.selectConversationCmd(item.Value)
		}
		// No results yet: enter submits the typed query.
		if strings.TrimSpace(m.searchQuery) != "" {
			return m, m.searchCmd(m.searchQuery)
		}
		return m, nil
	}
	return m, nil
}

// =============================================================================
// SUBMIT AND DISPATCH
// =============================================================================

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" {
		return m, nil
	}
	if strings.HasPrefix(prompt, "/") {
		m.input.Reset()
		return m.handleCommand(prompt)
	}

	if m.sessionExpired {
		cmd := m.setStatus("session expired - run 'multichat login' and restart", true)
		return m, cmd
	}
	if m.streaming {
		cmd := m.setStatus("a turn is already in flight (Esc cancels)", false)
		return m, cmd
	}

	bound := m.deps.Store.BoundColumns()
	if len(bound) == 0 {
		cmd := m.setStatus("no model bound - press C-p to pick one", true)
		return m, cmd
	}

	m.input.Reset()

	if len(m.pendingFiles) > 0 {
		files := m.pendingFiles
		m.pendingFiles = nil
		return m, m.uploadCmd(prompt, files)
	}
	return m.dispatch(prompt, nil)
}

// dispatch appends the user message to every bound column and hands the turn
// to the dispatcher.
func (m Model) dispatch(prompt string, attachments []model.Attachment) (tea.Model, tea.Cmd) {
	st := m.deps.Store

	if st.ActiveID() == "" {
		st.Create()
	}

	var cols []turn.ColumnRequest
	for _, idx := range st.BoundColumns() {
		col := st.Column(idx)
		if col == nil {
			continue
		}
		col.Append(model.NewUserMessage(prompt, idx, attachments))

		transcript := make([]api.ChatMessage, 0, len(col.Messages))
		for i := range col.Messages {
			msg := &col.Messages[i]
			transcript = append(transcript, api.ChatMessage{
				Role:    string(msg.Role()),
				Content: msg.Content,
			})
		}
		cols = append(cols, turn.ColumnRequest{
			Index:      idx,
			Provider:   col.Selection.Provider,
			ModelKey:   col.Selection.Key,
			ModelName:  col.Selection.Label(),
			Transcript: transcript,
		})
	}

	req := turn.Request{
		Prompt:         prompt,
		ConversationID: st.ActiveID(),
		Columns:        cols,
	}
	if fwd := upload.Forwarded(attachments); fwd != nil {
		req.AttachmentID = fwd.BackendID
	}

	m.deps.Session.RecordActivity()
	m.deps.Dispatcher.Send(context.Background(), req)

	m.streaming = true
	m.refreshAllColumns()

	cmds := []tea.Cmd{m.spinner.Start()}
	if !m.ticking {
		m.ticking = true
		cmds = append(cmds, streamTickCmd(m.deps.Config.Chat.StreamMaxFPS))
	}
	return m, tea.Batch(cmds...)
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "/attach":
		if len(args) == 0 {
			c := m.setStatus("usage: /attach <file> [file...]", true)
			return m, c
		}
		m.pendingFiles = append(m.pendingFiles, args...)
		c := m.setStatus(util.IntToString(len(m.pendingFiles))+" file(s) staged for next message", false)
		return m, c

	case "/detach":
		m.pendingFiles = nil
		c := m.setStatus("staged attachments cleared", false)
		return m, c

	case "/columns":
		if len(args) != 1 {
			c := m.setStatus("usage: /columns <1-4>", true)
			return m, c
		}
		n := 0
		for _, r := range args[0] {
			if r < '0' || r > '9' {
				n = -1
				break
			}
			n = n*10 + int(r-'0')
		}
		if n < model.MinColumns || n > model.MaxColumns {
			c := m.setStatus("columns must be 1-4", true)
			return m, c
		}
		m.deps.Store.SetColumnCount(n)
		m.syncViewports()
		m.refreshAllColumns()
		c := m.setStatus("layout: "+args[0]+" columns", false)
		return m, c

	case "/new":
		if m.streaming {
			m.deps.Dispatcher.CancelActive()
		}
		m.deps.Store.Create()
		m.failedMsgs = make(map[string]bool)
		m.unsavedCols = make(map[int]bool)
		m.refreshAllColumns()
		c := m.setStatus("new conversation", false)
		return m, c

	case "/export":
		return m, m.exportCmd()

	case "/help":
		m.overlay = overlayHelp
		return m, nil

	case "/quit":
		m.quitting = true
		return m, tea.Quit
	}

	c := m.setStatus("unknown command "+cmd, true)
	return m, c
}

// =============================================================================
// STREAMING
// =============================================================================

// handleStreamTick drains buffered partial text into the transcripts and
// re-arms the tick while streams are live.
func (m Model) handleStreamTick() (tea.Model, tea.Cmd) {
	out := m.deps.Dispatcher.Buffers().Flush()
	if len(out) > 0 {
		touched := make(map[int]bool)
		for id, text := range out {
			if col, msg := m.findMessage(id); msg != nil {
				msg.Content += text
				touched[col.Index] = true
			}
		}
		for idx := range touched {
			m.refreshColumn(idx)
		}
	}

	if m.deps.Dispatcher.InFlight() || m.deps.Dispatcher.Buffers().Active() > 0 {
		return m, streamTickCmd(m.deps.Config.Chat.StreamMaxFPS)
	}
	m.ticking = false
	return m, nil
}

func (m Model) handleTurnEvent(ev turn.Event) (tea.Model, tea.Cmd) {
	switch ev := ev.(type) {
	case turn.TurnStarted:
		m.streaming = true
		return m, nil

	case turn.StreamStarted:
		if col := m.deps.Store.Column(ev.Column); col != nil {
			col.Append(model.Message{
				ID:          ev.MessageID,
				IsUser:      false,
				Timestamp:   time.Now(),
				ModelName:   ev.ModelName,
				ColumnIndex: ev.Column,
			})
			m.refreshColumn(ev.Column)
		}
		return m, nil

	case turn.StreamCommitted:
		if _, msg := m.findMessage(ev.MessageID); msg != nil {
			msg.Content = ev.Content
		}
		if ev.Saved {
			delete(m.unsavedCols, ev.Column)
		} else {
			m.unsavedCols[ev.Column] = true
		}
		m.refreshColumn(ev.Column)
		return m, nil

	case turn.StreamFailed:
		return m.handleStreamFailed(ev)

	case turn.StreamAborted:
		if ev.MessageID != "" {
			if col := m.deps.Store.Column(ev.Column); col != nil {
				col.DeleteMessage(ev.MessageID)
			}
		}
		m.refreshColumn(ev.Column)
		return m, nil

	case turn.SessionExpired:
		m.sessionExpired = true
		cmd := m.setStatus("session expired - please log in again", true)
		return m, cmd

	case turn.TurnDone:
		m.streaming = false
		m.spinner.Stop()
		return m, nil
	}
	return m, nil
}

// handleStreamFailed appends the synthetic error message to the failing
// column only. When the stream died mid-flight the placeholder is reused,
// otherwise a fresh assistant message carries the error.
func (m Model) handleStreamFailed(ev turn.StreamFailed) (tea.Model, tea.Cmd) {
	if ev.Synthetic == "" {
		// Auth failure: the session-expired banner already covers it.
		m.refreshColumn(ev.Column)
		return m, nil
	}

	col := m.deps.Store.Column(ev.Column)
	if col == nil {
		return m, nil
	}

	if ev.MessageID != "" {
		if msg := col.MessageByID(ev.MessageID); msg != nil {
			msg.Content = ev.Synthetic
			m.failedMsgs[msg.ID] = true
			m.refreshColumn(ev.Column)
			return m, nil
		}
	}

	msg := col.Append(model.Message{
		ID:          model.NewMessageID(ev.Column),
		Content:     ev.Synthetic,
		IsUser:      false,
		Timestamp:   time.Now(),
		ModelName:   col.Selection.Label(),
		ColumnIndex: ev.Column,
	})
	m.failedMsgs[msg.ID] = true
	m.refreshColumn(ev.Column)
	return m, nil
}

// findMessage locates a message by id across all columns.
func (m *Model) findMessage(id string) (*model.Column, *model.Message) {
	for _, col := range m.deps.Store.Columns() {
		if msg := col.MessageByID(id); msg != nil {
			return col, msg
		}
	}
	return nil, nil
}

// =============================================================================
// SESSION
// =============================================================================

func (m Model) handleSessionTick() (tea.Model, tea.Cmd) {
	res := m.deps.Session.Check()
	switch {
	case res.Expired:
		m.sessionExpired = true
		m.status.SessionWarn = 0
		cmd := m.setStatus("session expired after inactivity", true)
		return m, tea.Batch(cmd, sessionTickCmd())
	case res.Warn:
		m.status.SessionWarn = res.Remaining
	default:
		// Countdown continues once the warning fired; activity that pushed
		// the deadline out clears it.
		if m.status.SessionWarn > 0 {
			rem := m.deps.Session.Remaining()
			if rem > m.status.SessionWarn {
				m.status.SessionWarn = 0
			} else {
				m.status.SessionWarn = rem
			}
		}
	}
	return m, sessionTickCmd()
}

// =============================================================================
// DATA HANDLERS
// =============================================================================

func (m Model) handleConversationsLoaded(msg ConversationsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.overlay = overlayNone
		cmd := m.setStatus("list conversations: "+msg.Err.Error(), true)
		return m, cmd
	}
	items := make([]components.ListItem, 0, len(msg.Conversations))
	for _, conv := range msg.Conversations {
		title := conv.Title
		if title == "" {
			title = conv.ConversationID
		}
		items = append(items, components.ListItem{
			Title: title,
			Desc:  conv.ConversationID,
			Value: conv.ConversationID,
		})
	}
	m.chats.SetItems(items)
	return m, nil
}

func (m Model) handleSearchResults(msg SearchResultsMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		cmd := m.setStatus("search: "+msg.Err.Error(), true)
		return m, cmd
	}
	items := make([]components.ListItem, 0, len(msg.Hits))
	for _, hit := range msg.Hits {
		title := hit.Title
		if title == "" {
			title = hit.ConversationID
		}
		items = append(items, components.ListItem{
			Title: title,
			Desc:  hit.ModelKey + ": " + hit.Snippet,
			Value: hit.ConversationID,
		})
	}
	m.search.SetItems(items)
	m.search.SetTitle("Search history: " + msg.Query + " (" + util.IntToString(len(items)) + ")")
	return m, nil
}

func (m Model) handleAttachmentsUploaded(msg AttachmentsUploadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		// All-or-nothing: the message is not sent.
		cmd := m.setStatus(msg.Err.Error(), true)
		return m, cmd
	}
	return m.dispatch(msg.Prompt, msg.Attachments)
}

// applyDefaultModels pre-binds configured model keys to still-unbound
// columns once the catalog is available. Unknown keys are skipped.
func (m *Model) applyDefaultModels() {
	for i, key := range m.deps.Config.Chat.DefaultModels {
		col := m.deps.Store.Column(i)
		if col == nil || col.Bound() {
			continue
		}
		if sel, ok := m.deps.Registry.Resolve(key); ok {
			col.Bind(sel)
			m.refreshColumn(i)
		}
	}
}

// rebuildPickerItems fills the model picker from the registry.
func (m *Model) rebuildPickerItems() {
	selections := m.deps.Registry.Selections()
	items := make([]components.ListItem, 0, len(selections))
	for _, sel := range selections {
		items = append(items, components.ListItem{
			Title: sel.Label(),
			Desc:  sel.Provider,
			Value: sel.Key,
		})
	}
	m.picker.SetItems(items)
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m Model) loadCatalogCmd() tea.Cmd {
	registry := m.deps.Registry
	fetcher := m.deps.Fetcher
	timeout := m.deps.Config.Timeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := registry.Load(ctx, fetcher)
		return CatalogLoadedMsg{Err: err}
	}
}

func (m Model) loadConversationsCmd() tea.Cmd {
	st := m.deps.Store
	timeout := m.deps.Config.Timeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		conversations, err := st.List(ctx, "")
		return ConversationsLoadedMsg{Conversations: conversations, Err: err}
	}
}

func (m Model) selectConversationCmd(id string) tea.Cmd {
	st := m.deps.Store
	timeout := m.deps.Config.Timeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := st.Select(ctx, id)
		return ConversationLoadedMsg{ID: id, Err: err}
	}
}

func (m Model) deleteConversationCmd(id string) tea.Cmd {
	st := m.deps.Store
	timeout := m.deps.Config.Timeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := st.Delete(ctx, id)
		return ConversationDeletedMsg{ID: id, Err: err}
	}
}

func (m Model) searchCmd(query string) tea.Cmd {
	ix := m.deps.Index
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hits, err := ix.Search(ctx, query, 20)
		return SearchResultsMsg{Query: query, Hits: hits, Err: err}
	}
}

func (m Model) uploadCmd(prompt string, paths []string) tea.Cmd {
	uploads := m.deps.Uploads
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		attachments, err := uploads.UploadAll(ctx, paths)
		return AttachmentsUploadedMsg{Prompt: prompt, Attachments: attachments, Err: err}
	}
}

func (m Model) exportCmd() tea.Cmd {
	columns := m.deps.Store.Columns()
	title := m.deps.Store.ActiveTitle()
	return func() tea.Msg {
		path, err := ExportTranscript(columns, title)
		return ExportDoneMsg{Path: path, Err: err}
	}
}

// streamTickCmd schedules the next buffer flush at the configured FPS.
func streamTickCmd(fps int) tea.Cmd {
	if fps <= 0 {
		fps = 30
	}
	return tea.Tick(time.Second/time.Duration(fps), func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}

// sessionTickCmd drives the idle clock once per second.
func sessionTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return SessionTickMsg{Time: t}
	})
}
