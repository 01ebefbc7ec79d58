// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

// State is the lifecycle of one column-stream within a turn.
//
// Transitions:
//
//	Idle -> Sending            on dispatch
//	Sending -> Streaming       on OK response headers (placeholder inserted)
//	Sending -> Failed          on non-OK status or transport error
//	Streaming -> Committed     on end of stream (content frozen, save hook)
//	Streaming -> Failed        on mid-stream transport error
//
// Committed and Failed are terminal; a new user turn starts fresh instances.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCommitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the column-stream has finished.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateFailed
}
