package toolstream

// FinishReason is why the model stopped generating.
//
// Trimmed from the teacher's multi-modal provider.types.FinishReason down
// to the values this transducer actually normalizes or emits (spec.md §3,
// §4.10).
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content-filter"
	FinishReasonToolCalls     FinishReason = "tool-calls"
	FinishReasonError         FinishReason = "error"
	FinishReasonOther         FinishReason = "other"
	FinishReasonUnknown       FinishReason = "unknown"
)

// Usage is a trimmed token-usage shape: just enough to carry the finish
// event's usage payload through unchanged, plus the legacy-shape
// normalization spec.md §4.10 calls for.
type Usage struct {
	InputTokens  *int64
	OutputTokens *int64
	TotalTokens  *int64
}

// NormalizeFinishReason maps a raw upstream finish-reason string to a
// FinishReason, defaulting unrecognized values to FinishReasonOther. The
// empty string becomes FinishReasonToolCalls when forcedToolCall is true
// (the forced tool-choice path, spec.md §4.10, after a successful call) and
// FinishReasonUnknown otherwise.
func NormalizeFinishReason(raw string, forcedToolCall bool) FinishReason {
	switch raw {
	case "":
		if forcedToolCall {
			return FinishReasonToolCalls
		}
		return FinishReasonUnknown
	case "stop":
		return FinishReasonStop
	case "length", "max_tokens":
		return FinishReasonLength
	case "tool_calls", "tool-calls", "function_call":
		return FinishReasonToolCalls
	case "content_filter", "content-filter":
		return FinishReasonContentFilter
	case "error":
		return FinishReasonError
	default:
		return FinishReasonOther
	}
}

// legacyUsage is the older {promptTokens, completionTokens, totalTokens}
// shape some upstreams still emit, alongside the current
// {inputTokens, outputTokens, totalTokens} shape (spec.md §4.10).
type legacyUsage struct {
	PromptTokens     *int64
	CompletionTokens *int64
	TotalTokens      *int64
}

// NormalizeUsage accepts a usage payload shaped either the current way
// (InputTokens/OutputTokens) or the legacy way (PromptTokens/
// CompletionTokens) and returns a single Usage. Either argument may be nil;
// when both carry a given field the current-shape value wins.
func NormalizeUsage(current *Usage, legacy map[string]interface{}) *Usage {
	out := &Usage{}
	if current != nil {
		out.InputTokens = current.InputTokens
		out.OutputTokens = current.OutputTokens
		out.TotalTokens = current.TotalTokens
	}
	if legacy == nil {
		if out.InputTokens == nil && out.OutputTokens == nil && out.TotalTokens == nil {
			return nil
		}
		return out
	}
	if out.InputTokens == nil {
		out.InputTokens = int64Ptr(legacy, "promptTokens")
	}
	if out.OutputTokens == nil {
		out.OutputTokens = int64Ptr(legacy, "completionTokens")
	}
	if out.TotalTokens == nil {
		out.TotalTokens = int64Ptr(legacy, "totalTokens")
	}
	if out.InputTokens == nil && out.OutputTokens == nil && out.TotalTokens == nil {
		return nil
	}
	return out
}

func int64Ptr(m map[string]interface{}, key string) *int64 {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case int64:
		return &n
	case int:
		i := int64(n)
		return &i
	case float64:
		i := int64(n)
		return &i
	default:
		return nil
	}
}
