// Package recovery implements the non-streaming whole-text fallback
// (spec.md §4.9): given a complete block of text that a protocol parser
// already ran over without producing a tool-call, scan it for a tool-call
// the model wrote in some other shape entirely and, if one is found,
// split the text into the segment before it, the recovered call, and the
// segment after.
//
// Grounded on pkg/jsonparser's tolerant-parse machinery (the teacher's
// accumulate-reparse-diff approach to partial JSON, reused here for
// whole-text candidates rather than streaming prefixes) and on
// pkg/schema.MatchesObjectKeys for the arguments-only heuristic.
package recovery

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/lanehollow/toolstream/pkg/jsonparser"
	"github.com/lanehollow/toolstream/pkg/toolstream"
)

// maxCandidateLen caps how much text a single balanced-brace candidate
// (spec.md §4.9, extraction rule 3) may span, to keep the left-to-right
// scan over pathological or truncated input bounded.
const maxCandidateLen = 10000

// ToolCall is a tool-call recovered from whole text.
type ToolCall struct {
	ToolName string
	Input    string
}

// Result is the [text-before, tool-call, text-after] split spec.md §4.9
// calls for.
type Result struct {
	TextBefore string
	Call       ToolCall
	TextAfter  string
}

// Recover scans text for the earliest-appearing candidate span that
// parses as tolerant JSON and matches a known tool, per spec.md §4.9.
// ok is false if no candidate was accepted; opts.OnError then receives a
// diagnostic.
func Recover(text string, tools []toolstream.ToolDescriptor, opts toolstream.ParserOptions) (Result, bool) {
	opts = opts.Resolved()
	for _, c := range collectCandidates(text) {
		call, ok := accept(c.body, tools)
		if !ok {
			continue
		}
		return Result{
			TextBefore: text[:c.start],
			Call:       call,
			TextAfter:  text[c.end:],
		}, true
	}
	opts.Report("recovery: no candidate in whole text matched a known tool", nil)
	return Result{}, false
}

type candidate struct {
	start, end int
	body       string
}

// collectCandidates gathers every extraction-rule candidate and orders
// them by where they start in the document: spec.md §4.9's three
// extraction rules are kinds of candidate, not a priority ladder between
// them — "earliest wins" means earliest by position, full stop (see the
// worked example where an unfenced `{...}` object beats a later fenced
// code block naming the same tool).
func collectCandidates(text string) []candidate {
	var cands []candidate
	cands = append(cands, extractToolCallTags(text)...)
	cands = append(cands, extractFencedBlocks(text)...)
	cands = append(cands, extractBalancedBraces(text)...)
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].start < cands[j].start })
	return cands
}

// extractToolCallTags finds every `<tool_call ...>...</tool_call>` span
// (ASCII-case-insensitive sentinel, attributes on the opening tag
// ignored) and returns its inner body as a candidate.
func extractToolCallTags(text string) []candidate {
	var out []candidate
	lower := strings.ToLower(text)
	pos := 0
	for {
		idx := strings.Index(lower[pos:], "<tool_call")
		if idx < 0 {
			return out
		}
		start := pos + idx
		gt := strings.IndexByte(text[start:], '>')
		if gt < 0 {
			return out
		}
		bodyStart := start + gt + 1
		closeIdx := strings.Index(lower[bodyStart:], "</tool_call")
		if closeIdx < 0 {
			pos = start + 1
			continue
		}
		closeStart := bodyStart + closeIdx
		closeGt := strings.IndexByte(text[closeStart:], '>')
		if closeGt < 0 {
			pos = start + 1
			continue
		}
		end := closeStart + closeGt + 1
		out = append(out, candidate{start: start, end: end, body: text[bodyStart:closeStart]})
		pos = end
	}
}

// extractFencedBlocks finds every fenced code block tagged ```json,
// ```yaml, ```xml, or untagged (```) and returns its body as a candidate.
// Any other language tag (```python, ```text, ...) is not a recognized
// candidate kind and is skipped.
func extractFencedBlocks(text string) []candidate {
	var out []candidate
	pos := 0
	for {
		idx := strings.Index(text[pos:], "```")
		if idx < 0 {
			return out
		}
		start := pos + idx
		afterFence := start + 3
		nl := strings.IndexByte(text[afterFence:], '\n')
		if nl < 0 {
			return out
		}
		lang := strings.TrimSpace(text[afterFence : afterFence+nl])
		bodyStart := afterFence + nl + 1
		if !isFenceLang(lang) {
			pos = afterFence
			continue
		}
		closeIdx := strings.Index(text[bodyStart:], "```")
		if closeIdx < 0 {
			pos = bodyStart
			continue
		}
		bodyEnd := bodyStart + closeIdx
		end := bodyEnd + 3
		out = append(out, candidate{start: start, end: end, body: strings.TrimSpace(text[bodyStart:bodyEnd])})
		pos = end
	}
}

func isFenceLang(lang string) bool {
	switch strings.ToLower(lang) {
	case "", "json", "yaml", "xml":
		return true
	default:
		return false
	}
}

// extractBalancedBraces scans text left to right for every `{` that opens
// a string-aware balanced span of at most maxCandidateLen bytes, and
// returns each span found as a candidate. This naturally yields both an
// outer object and any nested object values it contains as separate
// candidates; since a nested `{` always starts later than its enclosing
// one, document-order sorting tries the outer form first.
func extractBalancedBraces(text string) []candidate {
	var out []candidate
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		if end, ok := scanBalancedBraces(text, i); ok {
			out = append(out, candidate{start: i, end: end, body: text[i:end]})
		}
	}
	return out
}

func scanBalancedBraces(s string, start int) (end int, ok bool) {
	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		if i-start > maxCandidateLen {
			return 0, false
		}
		c := s[i]
		if inString {
			if c == '\\' {
				i++
				continue
			}
			if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// accept attempts a tolerant JSON parse of body and applies spec.md
// §4.9's two acceptance modes.
func accept(body string, tools []toolstream.ToolDescriptor) (ToolCall, bool) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return ToolCall{}, false
	}
	result := jsonparser.ParsePartialJSON(trimmed)
	if result.State == jsonparser.ParseStateFailed || result.State == jsonparser.ParseStateUndefinedInput {
		return ToolCall{}, false
	}
	obj, ok := result.Value.(map[string]interface{})
	if !ok {
		return ToolCall{}, false
	}

	if nameVal, hasName := obj["name"]; hasName {
		name, isString := nameVal.(string)
		if !isString {
			return ToolCall{}, false
		}
		argsVal, hasArgs := obj["arguments"]
		if !hasArgs {
			return ToolCall{}, false
		}
		argsObj, isObject := argsVal.(map[string]interface{})
		if !isObject {
			return ToolCall{}, false
		}
		if !knownTool(tools, name) {
			return ToolCall{}, false
		}
		return toToolCall(name, argsObj)
	}

	if _, hasArgs := obj["arguments"]; hasArgs {
		return ToolCall{}, false
	}
	if len(tools) != 1 {
		return ToolCall{}, false
	}
	only := tools[0]
	if !only.InputSchema.MatchesObjectKeys(obj) {
		return ToolCall{}, false
	}
	return toToolCall(only.Name, obj)
}

func toToolCall(name string, args map[string]interface{}) (ToolCall, bool) {
	inputJSON, err := json.Marshal(args)
	if err != nil {
		return ToolCall{}, false
	}
	return ToolCall{ToolName: name, Input: string(inputJSON)}, true
}

func knownTool(tools []toolstream.ToolDescriptor, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}
