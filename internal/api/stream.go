// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// =============================================================================
// STREAM ERRORS
// =============================================================================

// StreamError wraps a mid-stream failure together with the text decoded
// before the failure, so callers can keep the partial response.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream failed after %d bytes: %v", len(e.Partial), e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// STREAM
// =============================================================================

// readChunkSize is the transport read granularity. Chunk boundaries carry no
// meaning; the decoder below reassembles runes regardless.
const readChunkSize = 4 * 1024

// Stream reads a chunked plain-text chat response incrementally.
//
// The body is raw UTF-8 with no framing: EOF is the only end-of-message
// marker. Because HTTP chunk boundaries fall anywhere, a multi-byte sequence
// can be split across reads; Stream holds incomplete trailing bytes back
// until the rest arrives so callbacks only ever see whole runes.
type Stream struct {
	body io.ReadCloser

	// pending holds the tail bytes of an incomplete UTF-8 sequence carried
	// over from the previous read.
	pending []byte

	accumulated strings.Builder
	closed      bool
}

// NewStream wraps a response body. The caller owns closing via Process or
// Close.
func NewStream(body io.ReadCloser) *Stream {
	return &Stream{body: body}
}

// Process reads the stream to EOF, invoking onText for each decoded text
// increment. It returns the full accumulated text. A nil onText just
// accumulates.
//
// Cancellation: the HTTP request context aborts the underlying read; Process
// additionally checks ctx between reads so a canceled turn stops promptly
// even when bytes are still arriving.
func (s *Stream) Process(ctx context.Context, onText func(text string)) (string, error) {
	defer s.Close()

	buf := make([]byte, readChunkSize)
	for {
		select {
		case <-ctx.Done():
			return s.accumulated.String(), &StreamError{Partial: s.accumulated.String(), Err: ctx.Err()}
		default:
		}

		n, err := s.body.Read(buf)
		if n > 0 {
			if text := s.decode(buf[:n]); text != "" {
				s.accumulated.WriteString(text)
				if onText != nil {
					onText(text)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Any bytes still pending are a truncated sequence cut off by
				// EOF; surface them as replacement runes rather than dropping
				// text silently.
				if tail := s.flushPending(); tail != "" {
					s.accumulated.WriteString(tail)
					if onText != nil {
						onText(tail)
					}
				}
				return s.accumulated.String(), nil
			}
			return s.accumulated.String(), &StreamError{Partial: s.accumulated.String(), Err: wrapTransportError(err)}
		}
	}
}

// decode appends chunk to any pending bytes and returns the longest prefix
// that ends on a rune boundary, keeping the incomplete tail for next time.
func (s *Stream) decode(chunk []byte) string {
	data := chunk
	if len(s.pending) > 0 {
		data = append(s.pending, chunk...)
		s.pending = nil
	}

	complete := completeRuneBoundary(data)
	if complete < len(data) {
		s.pending = append([]byte(nil), data[complete:]...)
	}
	return string(data[:complete])
}

// flushPending force-decodes leftover bytes at EOF.
func (s *Stream) flushPending() string {
	if len(s.pending) == 0 {
		return ""
	}
	tail := string(s.pending) // invalid bytes become U+FFFD
	s.pending = nil
	return tail
}

// Close releases the underlying body. Safe to call twice.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// Text returns everything decoded so far.
func (s *Stream) Text() string {
	return s.accumulated.String()
}

// completeRuneBoundary returns the length of the longest prefix of data that
// contains only complete UTF-8 sequences. At most utf8.UTFMax-1 trailing
// bytes can be held back.
func completeRuneBoundary(data []byte) int {
	end := len(data)
	// Walk back over continuation bytes to the last rune start.
	start := end
	for start > 0 && end-start < utf8.UTFMax {
		start--
		b := data[start]
		if b < utf8.RuneSelf {
			// ASCII byte: everything through here is complete.
			return end
		}
		if b >= 0xC0 {
			// Found the start byte of the trailing sequence.
			if utf8.FullRune(data[start:end]) {
				return end
			}
			return start
		}
		// 0x80..0xBF: continuation byte, keep walking back.
	}
	// No rune start within UTFMax bytes: the data is invalid anyway, let the
	// string conversion produce replacement runes.
	return end
}
