// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store maintains the authoritative in-memory transcripts across all
// chat columns and reconciles them with backend-persisted conversations.
//
// Persistence is per column and merge-by-key: saving column 2 overwrites
// only its model's entry in the conversation document, so repeated saves are
// idempotent and sibling columns' histories survive untouched.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/Rajbasheer/multichat-tui/internal/api"
	"github.com/Rajbasheer/multichat-tui/internal/model"
	"github.com/Rajbasheer/multichat-tui/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNoColumn       = errors.New("column index out of range")
	ErrColumnUnbound  = errors.New("column has no bound model")
	ErrNoConversation = errors.New("no active conversation")
)

// HistoryAPI is the slice of the backend client the store needs.
type HistoryAPI interface {
	ListConversations(ctx context.Context, modelKey string) ([]model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	SaveConversation(ctx context.Context, req api.SaveConversationRequest) error
	DeleteConversation(ctx context.Context, id string) error
}

// =============================================================================
// STORE
// =============================================================================

// maxTitleRunes bounds derived conversation titles.
const maxTitleRunes = 48

// Store owns the column transcripts and the active conversation.
type Store struct {
	mu sync.Mutex

	backend HistoryAPI
	columns []*model.Column

	activeID    string
	activeTitle string
	// knownTitles remembers which conversation ids already have a persisted
	// title, so saves only derive one for brand-new conversations.
	knownTitles map[string]string

	// mirrorDir receives a local JSON copy of every saved conversation for
	// offline search. Empty disables mirroring.
	mirrorDir string

	logger *log.Logger
}

// New creates a store with columnCount empty columns.
func New(backend HistoryAPI, columnCount int, mirrorDir string) *Store {
	s := &Store{
		backend:     backend,
		knownTitles: make(map[string]string),
		mirrorDir:   mirrorDir,
		logger:      log.New(os.Stderr, "", 0),
	}
	s.resize(model.ClampColumnCount(columnCount))
	return s
}

// SetLogger replaces the failure logger (tests use io.Discard).
func (s *Store) SetLogger(l *log.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
}

func (s *Store) resize(n int) {
	for len(s.columns) < n {
		s.columns = append(s.columns, model.NewColumn(len(s.columns)))
	}
	// Shrinking destroys the dropped columns outright.
	if len(s.columns) > n {
		s.columns = s.columns[:n]
	}
}

// SetColumnCount grows or shrinks the column set (1..4). Grown columns start
// empty and unbound; shrunk columns are destroyed with their messages.
func (s *Store) SetColumnCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resize(model.ClampColumnCount(n))
}

// ColumnCount returns the current column count.
func (s *Store) ColumnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.columns)
}

// Column returns the column at index, or nil when out of range. The returned
// pointer is shared; mutate it only from the UI loop.
func (s *Store) Column(index int) *model.Column {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.columns) {
		return nil
	}
	return s.columns[index]
}

// Columns returns the live column slice for rendering.
func (s *Store) Columns() []*model.Column {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.columns
}

// BoundColumns returns the indices of columns with a model bound — the fan-
// out set for a user turn.
func (s *Store) BoundColumns() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for i, c := range s.columns {
		if c.Bound() {
			out = append(out, i)
		}
	}
	return out
}

// ActiveID returns the active conversation id, empty when none.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// ActiveTitle returns the active conversation's title.
func (s *Store) ActiveTitle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeTitle
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Create starts a fresh conversation: new time-based id, cleared transcripts
// (bindings survive), and makes it active.
func (s *Store) Create() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := model.NewConversationID()
	s.activeID = id
	s.activeTitle = ""
	for _, c := range s.columns {
		c.Clear()
	}
	return id
}

// Select fetches a persisted conversation and loads its per-model histories
// into the columns. A model key lands in the column currently bound to it;
// keys bound nowhere default to column 0. Current in-memory messages are
// overwritten.
func (s *Store) Select(ctx context.Context, id string) error {
	conv, err := s.backend.GetConversation(ctx, id)
	if err != nil {
		s.logf("load conversation %s: %v", id, err)
		return err
	}
	doc := conv.History() // parse failures degrade to empty

	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = conv.ConversationID
	s.activeTitle = conv.Title
	s.knownTitles[conv.ConversationID] = conv.Title

	for _, c := range s.columns {
		c.Clear()
	}
	for key, history := range doc.Models {
		col := s.columnForKeyLocked(key)
		for _, entry := range history.Messages {
			msg := model.Message{
				ID:          model.NewMessageID(col.Index),
				Content:     entry.Message,
				IsUser:      entry.Role == model.RoleUser,
				ColumnIndex: col.Index,
			}
			if !msg.IsUser {
				msg.ModelName = col.Selection.Label()
			}
			col.Append(msg)
		}
	}
	return nil
}

func (s *Store) columnForKeyLocked(key string) *model.Column {
	for _, c := range s.columns {
		if c.Selection.Key == key {
			return c
		}
	}
	return s.columns[0]
}

// Save persists one column's live transcript into the conversation document.
// The transcript is snapshotted up front; call it from the UI loop (or any
// single point that owns the column's messages).
func (s *Store) Save(ctx context.Context, columnIndex int, conversationID string) error {
	if conversationID == "" {
		return ErrNoConversation
	}
	col := s.Column(columnIndex)
	if col == nil {
		return ErrNoColumn
	}
	if !col.Bound() {
		return ErrColumnUnbound
	}
	return s.SaveEntries(ctx, conversationID, col.Selection.Key, col.Selection.Label(), transcriptEntries(col))
}

// SaveEntries persists a frozen transcript for one model key.
// Read-merge-write: fetch the existing document (a missing conversation
// yields an empty one), overwrite only this model key, write back. The
// entries belong to the caller, so this is safe off the UI loop while the
// live columns keep changing. The title is derived from the first user entry
// only for conversations that do not have one yet.
func (s *Store) SaveEntries(ctx context.Context, conversationID, modelKey, modelLabel string, entries []model.HistoryEntry) error {
	if conversationID == "" {
		return ErrNoConversation
	}
	if modelKey == "" {
		return ErrColumnUnbound
	}

	doc := model.NewHistoryDoc()
	existingTitle := ""
	if conv, err := s.backend.GetConversation(ctx, conversationID); err == nil {
		doc = conv.History()
		existingTitle = conv.Title
	} else if !errors.Is(err, api.ErrNotFound) {
		s.logf("read conversation %s before save: %v", conversationID, err)
		return err
	}

	doc.SetModel(modelKey, entries)

	raw, err := doc.Serialize()
	if err != nil {
		return err
	}

	title := existingTitle
	if title == "" {
		title = s.titleFor(conversationID, modelLabel, entries)
	}

	req := api.SaveConversationRequest{
		ConversationID: conversationID,
		Messages:       raw,
		Title:          title,
	}
	if err := s.backend.SaveConversation(ctx, req); err != nil {
		s.logf("save conversation %s: %v", conversationID, err)
		return err
	}

	s.mu.Lock()
	s.knownTitles[conversationID] = title
	if s.activeID == conversationID {
		s.activeTitle = title
	}
	s.mu.Unlock()

	s.mirror(model.Conversation{ConversationID: conversationID, Title: title, Messages: raw})
	return nil
}

// titleFor derives a conversation title: first user entry of the transcript,
// truncated; else "Chat with <model>".
func (s *Store) titleFor(conversationID, modelLabel string, entries []model.HistoryEntry) string {
	s.mu.Lock()
	if t, ok := s.knownTitles[conversationID]; ok && t != "" {
		s.mu.Unlock()
		return t
	}
	s.mu.Unlock()

	for i := range entries {
		if entries[i].Role != model.RoleUser {
			continue
		}
		if t := util.TruncateRunes(util.FirstLine(entries[i].Message), maxTitleRunes); t != "" {
			return t
		}
		break
	}
	return "Chat with " + modelLabel
}

// transcriptEntries converts a column's messages to persisted entries.
func transcriptEntries(col *model.Column) []model.HistoryEntry {
	entries := make([]model.HistoryEntry, 0, len(col.Messages))
	for i := range col.Messages {
		m := &col.Messages[i]
		entries = append(entries, model.HistoryEntry{
			Role:    m.Role(),
			Message: m.Content,
		})
	}
	return entries
}

// Delete removes a conversation from the backend and, when it was active,
// clears the transcripts. Local mirror files are removed too.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.backend.DeleteConversation(ctx, id); err != nil {
		s.logf("delete conversation %s: %v", id, err)
		return err
	}

	s.mu.Lock()
	delete(s.knownTitles, id)
	wasActive := s.activeID == id
	if wasActive {
		s.activeID = ""
		s.activeTitle = ""
		for _, c := range s.columns {
			c.Clear()
		}
	}
	mirrorDir := s.mirrorDir
	s.mu.Unlock()

	if mirrorDir != "" {
		os.Remove(filepath.Join(mirrorDir, mirrorName(id)))
	}
	return nil
}

// List fetches conversation metadata, optionally filtered by model key.
func (s *Store) List(ctx context.Context, modelKey string) ([]model.Conversation, error) {
	conversations, err := s.backend.ListConversations(ctx, modelKey)
	if err != nil {
		s.logf("list conversations: %v", err)
		return nil, err
	}
	s.mu.Lock()
	for _, c := range conversations {
		s.knownTitles[c.ConversationID] = c.Title
	}
	s.mu.Unlock()
	return conversations, nil
}

// =============================================================================
// LOCAL MIRROR
// =============================================================================

// mirror writes the saved conversation under the history dir so offline
// search keeps working. Mirror failures are logged, never fatal.
func (s *Store) mirror(conv model.Conversation) {
	s.mu.Lock()
	dir := s.mirrorDir
	s.mu.Unlock()
	if dir == "" {
		return
	}
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		s.logf("mirror conversation %s: %v", conv.ConversationID, err)
		return
	}
	if err := util.AtomicWriteFile(filepath.Join(dir, mirrorName(conv.ConversationID)), data, 0644); err != nil {
		s.logf("mirror conversation %s: %v", conv.ConversationID, err)
	}
}

func mirrorName(conversationID string) string {
	return url.PathEscape(conversationID) + ".json"
}

func (s *Store) logf(format string, args ...any) {
	s.mu.Lock()
	l := s.logger
	s.mu.Unlock()
	if l != nil {
		l.Printf(format, args...)
	}
}
