// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rajbasheer/multichat-tui/internal/catalog"
	"github.com/Rajbasheer/multichat-tui/internal/config"
	"github.com/Rajbasheer/multichat-tui/internal/index"
	"github.com/Rajbasheer/multichat-tui/internal/session"
	"github.com/Rajbasheer/multichat-tui/internal/store"
	"github.com/Rajbasheer/multichat-tui/internal/turn"
	"github.com/Rajbasheer/multichat-tui/internal/ui/components"
	"github.com/Rajbasheer/multichat-tui/internal/ui/styles"
	"github.com/Rajbasheer/multichat-tui/internal/upload"
)

// =============================================================================
// OVERLAYS
// =============================================================================

type overlayKind int

const (
	overlayNone overlayKind = iota
	overlayModels
	overlayChats
	overlaySearch
	overlayHelp
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Deps carries the wired application services into the chat model.
type Deps struct {
	Config     *config.Config
	Theme      *styles.Theme
	Registry   *catalog.Registry
	Fetcher    catalog.Fetcher
	Store      *store.Store
	Dispatcher *turn.Dispatcher
	Session    *session.Session
	Uploads    *upload.Pipeline
	Index      *index.Index // nil disables offline search
	Version    string
}

// Model is the Bubble Tea model for the multi-column chat view.
type Model struct {
	deps Deps
	keys KeyMap

	width  int
	height int

	// UI components
	input     textarea.Model
	viewports []viewport.Model
	spinner   components.Spinner
	status    *components.StatusBar
	markdown  *components.Markdown

	// Overlays
	overlay overlayKind
	picker  *components.OverlayList
	chats   *components.OverlayList
	search  *components.OverlayList

	// Offline search: the query is typed into the overlay and submitted.
	searchQuery string

	// Column focus for model binding and scrolling.
	focused int

	// Attachment paths staged with /attach, consumed by the next send.
	pendingFiles []string

	// Render bookkeeping. failedMsgs marks synthetic error messages so the
	// view can style them; unsavedCols marks columns whose last commit did
	// not persist.
	failedMsgs  map[string]bool
	unsavedCols map[int]bool

	// Transient status line.
	statusText string
	statusErr  bool
	statusSeq  int

	sessionExpired bool
	streaming      bool
	ticking        bool
	quitting       bool
}

// New creates the chat model.
func New(deps Deps) Model {
	ti := textarea.New()
	ti.Placeholder = "Type a message... (/attach <file>, /help)"
	ti.Prompt = "> "
	ti.SetHeight(3)
	ti.CharLimit = 8192
	ti.ShowLineNumbers = false
	ti.Focus()

	theme := deps.Theme

	m := Model{
		deps:        deps,
		keys:        DefaultKeyMap(),
		input:       ti,
		spinner:     components.NewThinkingSpinner(),
		status:      components.NewStatusBar(theme),
		markdown:    components.NewMarkdown(78),
		picker:      components.NewOverlayList("Models", theme),
		chats:       components.NewOverlayList("Conversations", theme),
		search:      components.NewOverlayList("Search history", theme),
		failedMsgs:  make(map[string]bool),
		unsavedCols: make(map[int]bool),
	}
	m.syncViewports()
	return m
}

// Init starts background loads and clocks.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadCatalogCmd(),
		sessionTickCmd(),
		textarea.Blink,
	)
}

// =============================================================================
// VIEWPORT MANAGEMENT
// =============================================================================

// syncViewports matches the viewport slice to the column count and resizes
// everything to the current terminal dimensions.
func (m *Model) syncViewports() {
	count := m.deps.Store.ColumnCount()
	for len(m.viewports) < count {
		m.viewports = append(m.viewports, viewport.New(40, 20))
	}
	if len(m.viewports) > count {
		m.viewports = m.viewports[:count]
	}
	if m.focused >= count {
		m.focused = count - 1
	}
	m.layout()
}

// layout recomputes component dimensions from the window size.
func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}

	count := len(m.viewports)
	if count == 0 {
		return
	}

	inputHeight := 5 // textarea with border
	statusHeight := 1
	headerHeight := 1

	colWidth := m.width/count - 2
	if colWidth < 20 {
		colWidth = 20
	}
	colHeight := m.height - inputHeight - statusHeight - headerHeight - 2
	if colHeight < 5 {
		colHeight = 5
	}

	for i := range m.viewports {
		m.viewports[i].Width = colWidth
		m.viewports[i].Height = colHeight
	}

	m.input.SetWidth(m.width - 4)
	m.status.SetWidth(m.width)
	m.markdown.SetWidth(colWidth - 2)
	m.deps.Theme.SetSize(m.width, m.height)
}

// refreshColumn re-renders one column's transcript into its viewport and
// pins the view to the bottom.
func (m *Model) refreshColumn(i int) {
	if i < 0 || i >= len(m.viewports) {
		return
	}
	m.viewports[i].SetContent(m.renderTranscript(i))
	m.viewports[i].GotoBottom()
}

// refreshAllColumns re-renders every column.
func (m *Model) refreshAllColumns() {
	for i := range m.viewports {
		m.refreshColumn(i)
	}
}

// =============================================================================
// STATUS LINE
// =============================================================================

// setStatus shows a transient status line that clears after a few seconds.
func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.statusText = text
	m.statusErr = isErr
	m.statusSeq++
	seq := m.statusSeq
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return statusExpireMsg{seq: seq}
	})
}
