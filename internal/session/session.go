// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the signed-in account state for the lifetime of the
// process: the bearer token, the account email, and the idle timeout that
// logs the user out of a forgotten terminal.
//
// The session is an explicit object handed to the components that need it.
// There are no package-level globals; login and logout are the only
// lifecycle transitions.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Rajbasheer/multichat-tui/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotLoggedIn is returned when an operation needs a token and the
	// session has none.
	ErrNotLoggedIn = errors.New("not logged in")
)

// =============================================================================
// SESSION
// =============================================================================

const (
	// DefaultIdleTimeout logs the session out after this much inactivity.
	DefaultIdleTimeout = 30 * time.Minute

	// DefaultWarningBefore is how long before the timeout the UI warns.
	DefaultWarningBefore = 2 * time.Minute
)

// Session is the explicit account/session object. All fields are guarded by
// the mutex; callbacks run outside the lock.
type Session struct {
	mu sync.Mutex

	id           string
	token        string
	email        string
	startTime    time.Time
	lastActivity time.Time

	timeout       time.Duration
	warningBefore time.Duration
	warningShown  bool

	tokenPath string

	onExpired func()
}

// Config configures a Session.
type Config struct {
	// TokenPath is where the session token is persisted (0600). Empty
	// disables persistence.
	TokenPath string

	// IdleTimeout and WarningBefore control auto-logout. Zero values take
	// the defaults.
	IdleTimeout   time.Duration
	WarningBefore time.Duration
}

// New creates a session and, if a persisted token exists at TokenPath, loads
// it so the user stays signed in across restarts.
func New(cfg Config) *Session {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.WarningBefore <= 0 {
		cfg.WarningBefore = DefaultWarningBefore
	}
	now := time.Now()
	s := &Session{
		id:            "sess_" + now.Format("20060102_150405"),
		startTime:     now,
		lastActivity:  now,
		timeout:       cfg.IdleTimeout,
		warningBefore: cfg.WarningBefore,
		tokenPath:     cfg.TokenPath,
	}
	s.restore()
	return s
}

// persistedToken is the on-disk shape of the session file.
type persistedToken struct {
	Token   string    `json:"token"`
	Email   string    `json:"email"`
	SavedAt time.Time `json:"saved_at"`
}

func (s *Session) restore() {
	if s.tokenPath == "" {
		return
	}
	data, err := os.ReadFile(s.tokenPath)
	if err != nil {
		return
	}
	var saved persistedToken
	if err := json.Unmarshal(data, &saved); err != nil {
		return
	}
	s.token = saved.Token
	s.email = saved.Email
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Login installs a freshly issued token and persists it.
func (s *Session) Login(email, token string) error {
	s.mu.Lock()
	s.token = token
	s.email = email
	s.lastActivity = time.Now()
	s.warningShown = false
	path := s.tokenPath
	s.mu.Unlock()

	if path == "" {
		return nil
	}
	data, err := json.Marshal(persistedToken{Token: token, Email: email, SavedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("encode session token: %w", err)
	}
	// SECURITY: the token file is owner-readable only.
	return util.AtomicWriteFile(path, data, 0600)
}

// Logout clears the in-memory token and removes the persisted file. Safe to
// call when already logged out.
func (s *Session) Logout() {
	s.mu.Lock()
	s.token = ""
	s.email = ""
	path := s.tokenPath
	s.mu.Unlock()

	if path != "" {
		os.Remove(path)
	}
}

// Expire clears the session and fires the expiry callback exactly like an
// idle timeout would. Called when the backend answers 401.
func (s *Session) Expire() {
	s.mu.Lock()
	s.token = ""
	s.email = ""
	path := s.tokenPath
	cb := s.onExpired
	s.mu.Unlock()

	if path != "" {
		os.Remove(path)
	}
	if cb != nil {
		cb()
	}
}

// SetExpiredCallback registers the function run when the session expires
// (401 from the backend or idle timeout).
func (s *Session) SetExpiredCallback(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = fn
}

// =============================================================================
// STATE
// =============================================================================

// Token implements api.TokenSource.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Email returns the signed-in account email, empty when logged out.
func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

// LoggedIn reports whether the session holds a token.
func (s *Session) LoggedIn() bool {
	return s.Token() != ""
}

// ID returns the process-local session identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// =============================================================================
// IDLE TIMEOUT
// =============================================================================

// RecordActivity resets the idle clock. Called on user input.
func (s *Session) RecordActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
	s.warningShown = false
}

// Remaining returns the time until idle logout.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := s.timeout - time.Since(s.lastActivity)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CheckResult describes what a periodic Check observed.
type CheckResult struct {
	Expired   bool
	Warn      bool
	Remaining time.Duration
}

// Check evaluates the idle clock. When the session expires it is cleared and
// the expiry callback fires (outside the lock). The warning is reported at
// most once per activity period.
func (s *Session) Check() CheckResult {
	s.mu.Lock()
	if s.token == "" {
		s.mu.Unlock()
		return CheckResult{}
	}

	idle := time.Since(s.lastActivity)
	result := CheckResult{}
	if idle >= s.timeout {
		result.Expired = true
	} else if !s.warningShown && idle >= s.timeout-s.warningBefore {
		result.Warn = true
		result.Remaining = s.timeout - idle
		s.warningShown = true
	}
	s.mu.Unlock()

	if result.Expired {
		s.Expire()
	}
	return result
}
