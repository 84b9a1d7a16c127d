// Package delta implements the delta emitter shared by every protocol
// parser (spec.md §4.3): it tracks how much of a tool-call's input has
// already been surfaced as tool-input-delta events and emits only the
// strictly-extending suffix of each new candidate.
//
// Grounded on the teacher's pkg/internal/jsonutil.StreamingParser /
// ObjectStreamingParser (accumulate text, re-parse, diff against what was
// already known) — this package applies the same accumulate-and-diff shape
// at the string-prefix level instead of the parsed-value level, which is
// what spec.md §4.3's prefix-monotonicity contract requires.
package delta

import (
	"github.com/lanehollow/toolstream/pkg/toolstream"
)

// defaultChunkThreshold is the byte-length above which a single large
// candidate's delta is split into multiple same-id deltas, so one giant
// chunk never enters the event stream. spec.md §9 marks the exact value a
// tunable, not a contract (only the prefix-sum invariant P2 is binding);
// 512 bytes is the default spec.md §4.3 itself suggests.
const defaultChunkThreshold = 512

// Emitter tracks the emitted-so-far cursor for one tool-call's input.
type Emitter struct {
	id             string
	emitted        string
	chunkThreshold int
}

// New creates an Emitter for the tool-input lifecycle identified by id.
func New(id string) *Emitter {
	return &Emitter{id: id, chunkThreshold: defaultChunkThreshold}
}

// Emitted returns everything emitted so far.
func (e *Emitter) Emitted() string { return e.emitted }

// EmitPrefixDelta emits a tool-input-delta for the suffix of candidate
// beyond what has already been emitted, provided candidate strictly
// extends the current cursor. Non-monotonic candidates are silently
// dropped (not an error) per spec.md §4.3. Returns true if a delta (or
// deltas, if chunked) was emitted.
func (e *Emitter) EmitPrefixDelta(candidate string, enqueue toolstream.EnqueueFunc) bool {
	if candidate == e.emitted || !hasPrefix(candidate, e.emitted) {
		return false
	}
	suffix := candidate[len(e.emitted):]
	e.emitted = candidate
	e.emitChunked(suffix, enqueue)
	return true
}

// EmitFinalRemainder reconciles the emitted cursor against the final,
// fully-resolved JSON input at tool-end (spec.md §4.3). If finalFullJSON
// extends the cursor, the remaining suffix is emitted as the final delta.
// If it does not — the parsed result diverged from what streaming progress
// had already committed to — delta emission halts for this id and a
// non-fatal diagnostic is raised via opts; the stream is never corrupted,
// and the caller still emits the terminal tool-call event with the full
// final input regardless (spec.md §7).
func (e *Emitter) EmitFinalRemainder(finalFullJSON string, opts toolstream.ParserOptions, enqueue toolstream.EnqueueFunc) {
	if finalFullJSON == e.emitted {
		return
	}
	if !hasPrefix(finalFullJSON, e.emitted) {
		opts.ReportMismatch("tool-input delta emitter: final input does not extend emitted prefix", toolstream.OnMismatchMetadata{
			EmittedLength: len(e.emitted),
			FinalLength:   len(finalFullJSON),
		})
		return
	}
	suffix := finalFullJSON[len(e.emitted):]
	e.emitted = finalFullJSON
	e.emitChunked(suffix, enqueue)
}

func (e *Emitter) emitChunked(suffix string, enqueue toolstream.EnqueueFunc) {
	if len(suffix) <= e.chunkThreshold {
		enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolInputDelta, ID: e.id, Delta: suffix})
		return
	}
	runes := []rune(suffix)
	var cur []rune
	curBytes := 0
	flush := func() {
		if len(cur) == 0 {
			return
		}
		enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolInputDelta, ID: e.id, Delta: string(cur)})
		cur = cur[:0]
		curBytes = 0
	}
	for _, r := range runes {
		rb := len(string(r))
		if curBytes+rb > e.chunkThreshold && len(cur) > 0 {
			flush()
		}
		cur = append(cur, r)
		curBytes += rb
	}
	flush()
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
