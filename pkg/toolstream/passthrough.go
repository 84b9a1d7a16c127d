package toolstream

// PassThrough converts an UpstreamEvent that carries no tool-call or text
// semantics of its own into the matching StreamEvent and enqueues it
// unchanged, per spec.md §6's pass-through contract. It reports whether ev
// was one of the recognized pass-through kinds; callers must handle
// UpstreamTextDelta and UpstreamFinish themselves (those two drive
// protocol-specific state machines and are never pass-through).
func PassThrough(ev UpstreamEvent, enqueue EnqueueFunc) bool {
	kind, ok := passThroughKind(ev.Kind)
	if !ok {
		return false
	}
	enqueue(StreamEvent{
		Kind:        kind,
		ID:          ev.ID,
		Passthrough: ev.Passthrough,
		Err:         ev.Err,
	})
	return true
}

func passThroughKind(k UpstreamKind) (EventKind, bool) {
	switch k {
	case UpstreamStreamStart:
		return EventStreamStart, true
	case UpstreamReasoningStart:
		return EventReasoningStart, true
	case UpstreamReasoningDelta:
		return EventReasoningDelta, true
	case UpstreamReasoningEnd:
		return EventReasoningEnd, true
	case UpstreamSource:
		return EventSource, true
	case UpstreamFile:
		return EventFile, true
	case UpstreamResponseMetadata:
		return EventResponseMetadata, true
	case UpstreamToolApprovalRequest:
		return EventToolApprovalRequest, true
	case UpstreamToolResult:
		return EventToolResult, true
	case UpstreamRaw:
		return EventRaw, true
	case UpstreamError:
		return EventError, true
	default:
		return "", false
	}
}
