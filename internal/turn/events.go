// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

// Event is delivered to the event sink for every observable transition of a
// turn. The TUI wraps events in bubbletea messages; tests collect them
// directly. Events for one column arrive in order; events across columns
// interleave arbitrarily.
type Event interface{ turnEvent() }

// TurnStarted fires once when a turn is dispatched.
type TurnStarted struct {
	Seq     int
	Columns []int
}

// StreamStarted fires when a column's response headers arrive with OK
// status. The receiver inserts an empty placeholder assistant message with
// this MessageID; partial text accumulates in the buffer set under the same
// id.
type StreamStarted struct {
	Seq       int
	Column    int
	MessageID string
	ModelName string
}

// StreamCommitted fires at end-of-stream with the frozen final content. The
// buffer entry for MessageID has already been removed.
type StreamCommitted struct {
	Seq       int
	Column    int
	MessageID string
	Content   string
	Saved     bool
}

// StreamFailed fires when a column-stream ends in failure. Synthetic, when
// non-empty, is the error message to append to that column's transcript.
// MessageID is empty when the failure happened before the placeholder was
// inserted.
type StreamFailed struct {
	Seq       int
	Column    int
	MessageID string
	Err       error
	Synthetic string
}

// StreamAborted fires for streams cut off by turn cancellation. The partial
// result is discarded; no synthetic message is shown.
type StreamAborted struct {
	Seq       int
	Column    int
	MessageID string
}

// SessionExpired fires at most once per turn, when any column's request
// answers 401.
type SessionExpired struct {
	Seq    int
	Column int
}

// TurnDone fires after every column-stream of the turn has reached a
// terminal state, regardless of individual outcomes.
type TurnDone struct {
	Seq int
}

func (TurnStarted) turnEvent()     {}
func (StreamStarted) turnEvent()   {}
func (StreamCommitted) turnEvent() {}
func (StreamFailed) turnEvent()    {}
func (StreamAborted) turnEvent()   {}
func (SessionExpired) turnEvent()  {}
func (TurnDone) turnEvent()        {}
