// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui assembles the application services and runs the TUI.
package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rajbasheer/multichat-tui/internal/api"
	"github.com/Rajbasheer/multichat-tui/internal/catalog"
	"github.com/Rajbasheer/multichat-tui/internal/config"
	"github.com/Rajbasheer/multichat-tui/internal/index"
	"github.com/Rajbasheer/multichat-tui/internal/model"
	"github.com/Rajbasheer/multichat-tui/internal/session"
	"github.com/Rajbasheer/multichat-tui/internal/store"
	"github.com/Rajbasheer/multichat-tui/internal/turn"
	"github.com/Rajbasheer/multichat-tui/internal/ui/chat"
	"github.com/Rajbasheer/multichat-tui/internal/ui/styles"
	"github.com/Rajbasheer/multichat-tui/internal/upload"
)

// =============================================================================
// PROGRAM SENDER
// =============================================================================

// sender forwards messages into the Bubble Tea program. Dispatcher and
// watcher goroutines fire before and after the program exists, so sends are
// guarded and dropped when there is nothing to receive them.
type sender struct {
	mu      sync.Mutex
	program *tea.Program
}

func (s *sender) set(p *tea.Program) {
	s.mu.Lock()
	s.program = p
	s.mu.Unlock()
}

func (s *sender) send(msg tea.Msg) {
	s.mu.Lock()
	p := s.program
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// Run wires the backend client, session, stores and dispatcher together and
// runs the chat TUI until the user quits.
func Run(cfg *config.Config, configPath, version string) error {
	sess := session.New(session.Config{TokenPath: config.TokenPath()})
	if !sess.LoggedIn() {
		return fmt.Errorf("not logged in: run 'multichat login' first")
	}

	client := api.NewClient(cfg.Backend.BaseURL, sess,
		api.WithTimeout(cfg.Timeout()),
		api.WithRateLimit(cfg.Backend.RateLimit, 2),
	)

	registry := catalog.NewRegistry()
	st := store.New(client, cfg.Chat.Columns, cfg.History.Dir)
	uploads := upload.NewPipeline(client)

	var programRef sender

	buffers := turn.NewBufferSet(cfg.Chat.StreamBatchSize, cfg.Chat.StreamMaxFPS)
	dispatcher := turn.NewDispatcher(turn.Config{
		Backend: client,
		Buffers: buffers,
		Events: func(ev turn.Event) {
			programRef.send(chat.TurnEventMsg{Event: ev})
		},
		// Saves run on stream goroutines against the frozen transcript the
		// dispatcher hands over; the live transcript stays UI-loop-owned and
		// picks up the committed content from the StreamCommitted event.
		Save: func(ctx context.Context, req turn.SaveRequest) error {
			return st.SaveEntries(ctx, req.ConversationID, req.ModelKey, req.ModelName, req.Entries)
		},
		OnExpired:    sess.Expire,
		NewMessageID: model.NewMessageID,
	})

	// The offline search index is best-effort: a broken database disables
	// search but never blocks the chat.
	var ix *index.Index
	var ixWatcher *index.Watcher
	if cfg.History.IndexEnabled {
		opened, err := index.Open(filepath.Join(config.Dir(), "index.db"), cfg.History.Dir)
		if err == nil {
			ix = opened
			ixWatcher, _ = ix.Watch(nil)
		}
	}

	theme := styles.NewTheme(cfg.UI.Theme)
	m := chat.New(chat.Deps{
		Config:     cfg,
		Theme:      theme,
		Registry:   registry,
		Fetcher:    client,
		Store:      st,
		Dispatcher: dispatcher,
		Session:    sess,
		Uploads:    uploads,
		Index:      ix,
		Version:    version,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	programRef.set(p)

	sess.SetExpiredCallback(func() {
		programRef.send(chat.StatusMsg{Text: "session expired - please log in again", IsErr: true})
	})

	cfgWatcher, err := config.Watch(configPath, func(next *config.Config) {
		programRef.send(chat.ConfigReloadedMsg{Config: next})
	})
	if err == nil {
		defer cfgWatcher.Close()
	}
	if ixWatcher != nil {
		defer ixWatcher.Close()
	}
	if ix != nil {
		defer ix.Close()
	}

	_, err = p.Run()
	return err
}
