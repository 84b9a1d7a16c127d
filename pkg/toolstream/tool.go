package toolstream

import "github.com/lanehollow/toolstream/pkg/schema"

// ToolDescriptor is the record a Transducer is configured with for each
// tool the model may call (spec.md §3). Names must be unique within the
// slice passed to a parser factory; lifetime is per-stream.
type ToolDescriptor struct {
	Name        string
	InputSchema schema.JSONSchema
}

// ValidateToolDescriptors filters out invalid entries (missing name,
// duplicate name), reporting each one through onError and substituting
// nothing for it — the entry is skipped entirely per spec.md §7. A nil
// InputSchema is replaced with a permissive {"type":"object"} schema
// rather than rejected, since an empty schema is itself valid, just
// unhelpful for the array-coercion and arguments-only heuristics.
func ValidateToolDescriptors(tools []ToolDescriptor, onError func(message string, metadata map[string]interface{})) []ToolDescriptor {
	seen := make(map[string]bool, len(tools))
	out := make([]ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		if t.Name == "" {
			reportError(onError, "tool descriptor missing name, skipping", nil)
			continue
		}
		if seen[t.Name] {
			reportError(onError, "duplicate tool name, skipping", map[string]interface{}{"name": t.Name})
			continue
		}
		seen[t.Name] = true
		if t.InputSchema.Raw() == nil {
			t.InputSchema = schema.New(map[string]interface{}{"type": "object"})
		}
		out = append(out, t)
	}
	return out
}

func reportError(onError func(string, map[string]interface{}), message string, metadata map[string]interface{}) {
	if onError != nil {
		onError(message, metadata)
	}
}
