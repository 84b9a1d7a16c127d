// Package forced implements the tool-choice forced path (spec.md §4.10):
// when the caller's tool-choice is `required` or names a specific tool,
// streaming protocol parsing is bypassed entirely. The host already
// requested a non-streaming generation (that request is the out-of-scope
// host middleware collaborator spec.md §2 names); this package takes the
// resulting text and strictly parses it as a single `{name, arguments}`
// envelope, emitting exactly a `tool-call` followed by a terminal `finish`.
//
// Grounded on pkg/recovery's envelope acceptance for the JSON shape check,
// simplified because there is no candidate scanning here — tool-choice
// forced generation is expected to return the envelope as the entire
// response text, not embedded in surrounding prose — and no
// arguments-only fallback, since a forced call is never ambiguous about
// whether a name was supplied.
package forced

import (
	"encoding/json"
	"strings"

	"github.com/lanehollow/toolstream/pkg/toolstream"
)

// Result is a successfully parsed forced tool-call.
type Result struct {
	ToolName string
	Input    string
}

// StrictParse parses text as a `{"name": string, "arguments": object}`
// envelope. Unlike pkg/recovery.Recover, there is no tolerant JSON repair
// and no arguments-only heuristic: spec.md §4.10 calls this parse
// "strict" precisely to contrast with §4.9's lenient whole-text scan.
//
// If forcedTool is non-empty (tool-choice named one specific tool rather
// than `required`), the parsed name must equal it exactly; otherwise the
// parsed name must simply be one of tools.
func StrictParse(text string, tools []toolstream.ToolDescriptor, forcedTool string) (Result, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{}, false
	}
	var envelope struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return Result{}, false
	}
	if envelope.Name == "" {
		return Result{}, false
	}
	if forcedTool != "" {
		if envelope.Name != forcedTool {
			return Result{}, false
		}
	} else if !knownTool(tools, envelope.Name) {
		return Result{}, false
	}
	if envelope.Arguments == nil {
		envelope.Arguments = map[string]interface{}{}
	}
	inputJSON, err := json.Marshal(envelope.Arguments)
	if err != nil {
		return Result{}, false
	}
	return Result{ToolName: envelope.Name, Input: string(inputJSON)}, true
}

// Run drives the full forced path: parse text, emit tool-call on success
// (or report the failure via onError), then always emit the terminal
// finish event. rawFinishReason is the upstream's raw reason string (may
// be empty); usage/legacyUsage are normalized via
// toolstream.NormalizeUsage. (The streaming parsers do not call
// NormalizeUsage; they pass the upstream finish event's usage through.)
func Run(
	text string,
	rawFinishReason string,
	usage *toolstream.Usage,
	legacyUsage map[string]interface{},
	tools []toolstream.ToolDescriptor,
	forcedTool string,
	opts toolstream.ParserOptions,
	enqueue toolstream.EnqueueFunc,
) {
	opts = opts.Resolved()
	normalizedUsage := toolstream.NormalizeUsage(usage, legacyUsage)

	result, ok := StrictParse(text, tools, forcedTool)
	if !ok {
		opts.Report("forced: tool-choice response did not parse as a {name, arguments} envelope", map[string]interface{}{
			"text":       text,
			"forcedTool": forcedTool,
		})
		enqueue(toolstream.StreamEvent{
			Kind:         toolstream.EventFinish,
			FinishReason: toolstream.NormalizeFinishReason(rawFinishReason, false),
			Usage:        normalizedUsage,
		})
		return
	}

	id := toolstream.NewToolCallID()
	enqueue(toolstream.StreamEvent{
		Kind:     toolstream.EventToolCall,
		ID:       id,
		ToolName: result.ToolName,
		Input:    result.Input,
	})
	enqueue(toolstream.StreamEvent{
		Kind:         toolstream.EventFinish,
		FinishReason: toolstream.NormalizeFinishReason(rawFinishReason, true),
		Usage:        normalizedUsage,
	})
}

func knownTool(tools []toolstream.ToolDescriptor, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}
