// Package boundary implements the chunk buffer & boundary scanner shared
// by every protocol parser (spec.md §4.1): it accumulates incoming text
// deltas and guarantees it never flushes a prefix that could still be the
// head of a recognized tool-call opening sentinel.
//
// Grounded on the buffer-with-lookback shape of the teacher's
// pkg/middleware/extract_json.go (streamingExtractJSONWrapper): that type
// buffers text and holds back a fixed 12-byte suffix in case it turns out
// to be a markdown code fence closer. This package generalizes the same
// idea to an arbitrary set of sentinels and a data-driven lookback length
// (the shortest prefix of any open sentinel currently present in the
// buffer), per spec.md §4.1's algorithm.
package boundary

import (
	"strings"

	"github.com/lanehollow/toolstream/pkg/toolstream"
)

// IDGenFunc produces a new unique segment id.
type IDGenFunc func() string

// Buffer accumulates text-delta chunks and flushes the portion that is
// safe to emit as text — i.e. cannot be the head of any sentinel in the
// configured set.
type Buffer struct {
	data      strings.Builder
	sentinels []string
	idGen     IDGenFunc

	textOpen bool
	textID   string
}

// New creates a Buffer recognizing the given opening sentinels
// (ASCII-case-insensitive). idGen must return a fresh, unique id each call.
func New(sentinels []string, idGen IDGenFunc) *Buffer {
	return &Buffer{sentinels: sentinels, idGen: idGen}
}

// Append enqueues more text to the buffer.
func (b *Buffer) Append(delta string) {
	b.data.WriteString(delta)
}

// Len returns the number of bytes currently buffered.
func (b *Buffer) Len() int { return b.data.Len() }

// Peek returns the current buffered content without consuming it.
func (b *Buffer) Peek() string { return b.data.String() }

// IsTextOpen reports whether a text segment is currently open.
func (b *Buffer) IsTextOpen() bool { return b.textOpen }

// TextID returns the id of the currently open text segment, or "" if none.
func (b *Buffer) TextID() string { return b.textID }

// Consume removes the first n bytes of the buffer (used once a caller has
// matched a full sentinel and wants to advance past it).
func (b *Buffer) Consume(n int) {
	s := b.data.String()
	b.data.Reset()
	b.data.WriteString(s[n:])
}

// Reset clears the buffered bytes (used when switching into a tool-call
// body, which owns its own raw buffer from here on). The open text segment
// state is left as it is; CloseOpenText is what ends that segment.
func (b *Buffer) Reset() {
	b.data.Reset()
}

// FlushSafePrefix emits every buffer prefix that cannot be the head of any
// recognized opening sentinel, per spec.md §4.1's algorithm: compute the
// smallest index i such that buffer[i:] could still extend into a
// sentinel, and flush buffer[0:i).
//
// Opens a new text-start (with a fresh id) if no text segment is currently
// open and there is anything to flush.
func (b *Buffer) FlushSafePrefix(enqueue toolstream.EnqueueFunc) {
	buf := b.data.String()
	if buf == "" {
		return
	}
	safeEnd := potentialStart(buf, b.sentinels)
	if safeEnd <= 0 {
		return
	}
	toFlush := buf[:safeEnd]
	b.Consume(safeEnd)

	if !b.textOpen {
		b.textID = b.idGen()
		b.textOpen = true
		enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextStart, ID: b.textID})
	}
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextDelta, ID: b.textID, Delta: toFlush})
}

// FlushAll force-flushes every remaining buffered byte as text, including a
// held-back partial sentinel. Used at stream finish, when no further chunks
// can arrive to complete or rule out a pending sentinel match (spec.md §4.4's
// finish reconciliation forwards any such leftover as plain text).
func (b *Buffer) FlushAll(enqueue toolstream.EnqueueFunc) {
	buf := b.data.String()
	if buf == "" {
		return
	}
	b.Consume(len(buf))

	if !b.textOpen {
		b.textID = b.idGen()
		b.textOpen = true
		enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextStart, ID: b.textID})
	}
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextDelta, ID: b.textID, Delta: buf})
}

// CloseOpenText emits text-end for the currently open text segment, if
// any. Safe to call when no text segment is open (no-op).
func (b *Buffer) CloseOpenText(enqueue toolstream.EnqueueFunc) {
	if !b.textOpen {
		return
	}
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextEnd, ID: b.textID})
	b.textOpen = false
	b.textID = ""
}

// potentialStart finds the smallest index i in buf such that buf[i:] is a
// non-empty case-insensitive (ASCII) prefix-or-extension of some sentinel
// in sentinels — i.e. the earliest point where a recognized opening
// sentinel might be starting. Returns len(buf) if no such index exists
// (the whole buffer is safe to flush).
func potentialStart(buf string, sentinels []string) int {
	n := len(buf)
	for i := 0; i < n; i++ {
		remaining := buf[i:]
		for _, s := range sentinels {
			if s == "" {
				continue
			}
			l := len(remaining)
			if l > len(s) {
				l = len(s)
			}
			if l == 0 {
				continue
			}
			if asciiEqualFold(remaining[:l], s[:l]) {
				return i
			}
		}
	}
	return n
}

// asciiEqualFold compares two byte strings of equal length, ASCII-case-
// insensitively. Multi-byte UTF-8 sequences compare byte-for-byte (their
// bytes are always >= 0x80 and never match an ASCII sentinel character),
// so Unicode text never accidentally matches a sentinel and never
// interferes with the scan.
func asciiEqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
