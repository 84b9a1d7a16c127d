// Package toolstream defines the shared data model for the streaming
// tool-call transducer: the event kinds a transducer emits, the tool
// descriptors it is configured with, and the options that tune its
// recovery and error-reporting behavior.
package toolstream

// EventKind identifies the kind of a StreamEvent.
type EventKind string

const (
	EventStreamStart         EventKind = "stream-start"
	EventTextStart           EventKind = "text-start"
	EventTextDelta           EventKind = "text-delta"
	EventTextEnd             EventKind = "text-end"
	EventReasoningStart      EventKind = "reasoning-start"
	EventReasoningDelta      EventKind = "reasoning-delta"
	EventReasoningEnd        EventKind = "reasoning-end"
	EventToolInputStart      EventKind = "tool-input-start"
	EventToolInputDelta      EventKind = "tool-input-delta"
	EventToolInputEnd        EventKind = "tool-input-end"
	EventToolCall            EventKind = "tool-call"
	EventFinish              EventKind = "finish"
	EventSource              EventKind = "source"
	EventFile                EventKind = "file"
	EventResponseMetadata    EventKind = "response-metadata"
	EventToolApprovalRequest EventKind = "tool-approval-request"
	EventToolResult          EventKind = "tool-result"
	EventRaw                 EventKind = "raw"
	EventError               EventKind = "error"
)

// StreamEvent is one item in the transducer's output event stream (spec.md §3).
type StreamEvent struct {
	Kind EventKind

	// ID identifies a text/reasoning/tool-input segment. For tool-input
	// events it is also the toolCallId surfaced on the terminal tool-call
	// event.
	ID string

	// Delta is the incremental payload for *-delta events: literal text
	// for text-delta/reasoning-delta, a JSON-prefix fragment for
	// tool-input-delta.
	Delta string

	// ToolName is set on tool-input-start and tool-call.
	ToolName string

	// Input is the final, fully-reconciled JSON input string, set only on
	// tool-call.
	Input string

	FinishReason FinishReason
	Usage        *Usage

	// Passthrough carries the opaque payload for pass-through event kinds
	// (source, file, response-metadata, tool-approval-request, tool-result,
	// raw, error) that this package does not interpret.
	Passthrough interface{}

	// Err is set on EventError.
	Err error
}

// EnqueueFunc is called by a Transducer for every event it produces. The
// host owns the channel/stream the events are ultimately written to; the
// transducer never buffers beyond what the chunk buffer (pkg/boundary)
// needs for boundary safety.
type EnqueueFunc func(StreamEvent)

// UpstreamKind identifies the kind of an UpstreamEvent fed into a Transducer.
type UpstreamKind string

const (
	UpstreamStreamStart         UpstreamKind = "stream-start"
	UpstreamTextDelta           UpstreamKind = "text-delta"
	UpstreamReasoningStart      UpstreamKind = "reasoning-start"
	UpstreamReasoningDelta      UpstreamKind = "reasoning-delta"
	UpstreamReasoningEnd        UpstreamKind = "reasoning-end"
	UpstreamSource              UpstreamKind = "source"
	UpstreamFile                UpstreamKind = "file"
	UpstreamResponseMetadata    UpstreamKind = "response-metadata"
	UpstreamToolApprovalRequest UpstreamKind = "tool-approval-request"
	UpstreamToolResult          UpstreamKind = "tool-result"
	UpstreamRaw                 UpstreamKind = "raw"
	UpstreamError               UpstreamKind = "error"
	UpstreamFinish              UpstreamKind = "finish"
)

// UpstreamEvent is one item the host feeds into a Transducer's Transform.
type UpstreamEvent struct {
	Kind UpstreamKind

	// Text carries the raw text-delta payload for UpstreamTextDelta.
	Text string

	// ID is the upstream segment id for reasoning events (pass-through,
	// not reinterpreted).
	ID string

	FinishReason FinishReason
	Usage        *Usage

	Passthrough interface{}
	Err         error
}

// Transducer consumes upstream events and produces a well-formed
// StreamEvent sequence (spec.md §6).
type Transducer interface {
	// Transform processes one upstream event, calling enqueue for zero or
	// more resulting StreamEvents. It never returns an error across the
	// event boundary for recoverable parse conditions (spec.md §7) — only
	// for malformed construction-time input, which does not apply here.
	Transform(ev UpstreamEvent, enqueue EnqueueFunc)

	// Flush finalizes the stream: a caller that already sent an
	// UpstreamFinish event to Transform (the normal streaming path) may
	// call Flush afterward as a no-op safety net. A caller driving the
	// transducer over a single already-complete buffer without ever
	// constructing an UpstreamFinish event may call Flush directly instead;
	// it then performs the same finish reconciliation (spec.md §4.4–4.8's
	// finish sections) and emits the terminal EventFinish. Flush is
	// idempotent: calling it again after EventFinish has been emitted does
	// nothing.
	Flush(enqueue EnqueueFunc)
}
