// Package taggedjson implements the tagged-JSON tool-call protocol
// (spec.md §4.4): `<tool_call>{"name":...,"arguments":{...}}</tool_call>`
// with configurable sentinels.
//
// Grounded on pkg/boundary for the outside-the-tag text safety. The
// inside-the-tag progressive parse locates the "arguments" value as a raw
// text span (pkg/jsonprefix.LocateTopLevelValue) rather than decoding and
// re-marshaling it, so streaming progress is always a literal, order-
// preserving substring of what the model actually wrote — adapted from the
// teacher's pkg/internal/jsonutil accumulate-reparse-diff shape, applied at
// the text-span level instead of the parsed-value level.
package taggedjson

import (
	"encoding/json"
	"strings"

	"github.com/lanehollow/toolstream/pkg/boundary"
	"github.com/lanehollow/toolstream/pkg/delta"
	"github.com/lanehollow/toolstream/pkg/jsonparser"
	"github.com/lanehollow/toolstream/pkg/jsonprefix"
	"github.com/lanehollow/toolstream/pkg/protocol"
	"github.com/lanehollow/toolstream/pkg/toolstream"
)

func init() {
	protocol.Register(protocol.Descriptor{
		Kind: protocol.TaggedJSON,
		Name: "Tagged JSON",
		New: func(tools []toolstream.ToolDescriptor, opts toolstream.ParserOptions) toolstream.Transducer {
			return New(tools, opts)
		},
	})
}

type state int

const (
	outside state = iota
	inside
)

// Parser is a tagged-JSON protocol transducer. One Parser handles exactly
// one stream; construct a fresh one per stream via New.
type Parser struct {
	opts  toolstream.ParserOptions
	outer *boundary.Buffer

	state state
	body  strings.Builder

	started    bool
	toolCallID string
	toolName   string
	emitter    *delta.Emitter

	finished bool
}

// New constructs a Parser. tools is accepted for interface symmetry with the
// other protocols; the tagged-JSON envelope carries its own tool name and
// does not require it to be preregistered.
func New(tools []toolstream.ToolDescriptor, opts toolstream.ParserOptions) *Parser {
	opts = opts.Resolved()
	p := &Parser{opts: opts}
	p.outer = boundary.New([]string{opts.ToolCallStart}, p.nextTextID)
	return p
}

func (p *Parser) nextTextID() string {
	return toolstream.NewToolCallID()
}

// Transform implements toolstream.Transducer.
func (p *Parser) Transform(ev toolstream.UpstreamEvent, enqueue toolstream.EnqueueFunc) {
	switch ev.Kind {
	case toolstream.UpstreamFinish:
		p.runFinish(ev, enqueue)
	case toolstream.UpstreamTextDelta:
		p.consume(ev.Text, enqueue)
	default:
		p.outer.CloseOpenText(enqueue)
		toolstream.PassThrough(ev, enqueue)
	}
}

// Flush implements toolstream.Transducer.
func (p *Parser) Flush(enqueue toolstream.EnqueueFunc) {
	p.runFinish(toolstream.UpstreamEvent{Kind: toolstream.UpstreamFinish}, enqueue)
}

func (p *Parser) consume(text string, enqueue toolstream.EnqueueFunc) {
	if p.state == outside {
		p.outer.Append(text)
		p.drainOutside(enqueue)
		return
	}
	p.body.WriteString(text)
	if p.processBody(enqueue) {
		p.drainOutside(enqueue)
	}
}

// drainOutside repeatedly flushes safe text and, once the full opening
// sentinel is present, transitions into the tool-call body.
func (p *Parser) drainOutside(enqueue toolstream.EnqueueFunc) {
	for {
		if p.state == outside {
			p.outer.FlushSafePrefix(enqueue)
			buf := p.outer.Peek()
			start := p.opts.ToolCallStart
			if len(buf) < len(start) || !asciiEqualFold(buf[:len(start)], start) {
				return
			}
			p.outer.CloseOpenText(enqueue)
			p.outer.Consume(len(start))
			remainder := p.outer.Peek()
			p.outer.Reset()
			p.state = inside
			p.body.Reset()
			p.body.WriteString(remainder)
		}
		if !p.processBody(enqueue) {
			return
		}
		// processBody closed the call, reverted to outside, and re-queued
		// any leftover text onto p.outer; loop to keep draining it.
	}
}

// processBody looks for the closing sentinel in the accumulated body. It
// returns true if a closing sentinel was found (call finalized, state
// reverted to outside with any leftover re-queued onto p.outer) so the
// caller can continue draining; false if the body is still incomplete
// (parser remains in "inside" state awaiting more text).
func (p *Parser) processBody(enqueue toolstream.EnqueueFunc) bool {
	end := p.opts.ToolCallEnd
	bodyStr := p.body.String()
	idx := caseInsensitiveIndex(bodyStr, end)
	if idx < 0 {
		p.tryProgressiveEmit(bodyStr, enqueue)
		return false
	}
	envelope := bodyStr[:idx]
	leftover := bodyStr[idx+len(end):]
	p.finalize(envelope, enqueue)
	p.state = outside
	p.body.Reset()
	if leftover != "" {
		p.outer.Append(leftover)
	}
	return true
}

// tryProgressiveEmit derives the streaming progress candidate directly from
// the model's own raw "arguments" text (located, not decoded) so that
// successive candidates are literal growing substrings of what the model
// actually typed — preserving its key order and guaranteeing prefix
// monotonicity without a decode/re-marshal round trip (see
// jsonprefix.OrderedObject's doc comment for why that round trip is unsafe).
func (p *Parser) tryProgressiveEmit(bodyStr string, enqueue toolstream.EnqueueFunc) {
	if !p.started {
		nameVal, complete, found := jsonprefix.LocateTopLevelValue(bodyStr, "name")
		if !found || !complete {
			return
		}
		var name string
		if err := json.Unmarshal([]byte(nameVal), &name); err != nil || name == "" {
			return
		}
		p.beginToolCall(name, enqueue)
	}

	argsVal, _, found := jsonprefix.LocateTopLevelValue(bodyStr, "arguments")
	if !found || argsVal == "" {
		return
	}
	repaired := jsonparser.FixJSON(argsVal)
	if repaired == "" {
		return
	}
	candidate := jsonprefix.ToIncompleteJSONPrefix(repaired)
	p.emitter.EmitPrefixDelta(candidate, enqueue)
}

func (p *Parser) beginToolCall(name string, enqueue toolstream.EnqueueFunc) {
	p.started = true
	p.toolName = name
	p.toolCallID = toolstream.NewToolCallID()
	p.emitter = delta.New(p.toolCallID)
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolInputStart, ID: p.toolCallID, ToolName: name})
}

// finalize validates envelope as {name: non-empty string, arguments: object}
// and either emits the remaining lifecycle events — using the literal
// "arguments" substring as the final input, for exact textual continuity
// with the progress deltas tryProgressiveEmit derived from that same raw
// text — or, on a shape mismatch, closes any in-progress lifecycle and
// falls back to literal text.
func (p *Parser) finalize(envelope string, enqueue toolstream.EnqueueFunc) {
	nameVal, nameComplete, nameFound := jsonprefix.LocateTopLevelValue(envelope, "name")
	argsVal, argsComplete, argsFound := jsonprefix.LocateTopLevelValue(envelope, "arguments")

	var name string
	validName := nameFound && nameComplete && json.Unmarshal([]byte(nameVal), &name) == nil && name != ""
	validArgs := argsFound && argsComplete && strings.HasPrefix(strings.TrimSpace(argsVal), "{") && json.Valid([]byte(argsVal))

	if !validName || !validArgs {
		p.abandon(envelope, "tagged-json: malformed tool-call envelope", enqueue)
		return
	}

	finalJSON := argsVal
	if !p.started {
		p.beginToolCall(name, enqueue)
	}
	p.emitter.EmitFinalRemainder(finalJSON, p.opts, enqueue)
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolInputEnd, ID: p.toolCallID})
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolCall, ID: p.toolCallID, ToolName: name, Input: finalJSON})
	p.started = false
}

// abandon closes any open tool-input lifecycle without a tool-call and,
// per policy, re-emits the raw markup as literal text.
func (p *Parser) abandon(body, message string, enqueue toolstream.EnqueueFunc) {
	p.opts.Report(message, map[string]interface{}{"body": body})
	if p.started {
		enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolInputEnd, ID: p.toolCallID})
		p.started = false
	}
	if !p.opts.EmitRawToolCallTextOnError {
		return
	}
	id := toolstream.NewToolCallID()
	raw := p.opts.ToolCallStart + body + p.opts.ToolCallEnd
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextStart, ID: id})
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextDelta, ID: id, Delta: raw})
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextEnd, ID: id})
}

func (p *Parser) runFinish(ev toolstream.UpstreamEvent, enqueue toolstream.EnqueueFunc) {
	if p.finished {
		return
	}
	p.finished = true

	if p.state == inside {
		p.reconcileDangling(enqueue)
	} else {
		p.outer.FlushAll(enqueue)
		p.outer.CloseOpenText(enqueue)
	}

	enqueue(toolstream.StreamEvent{Kind: toolstream.EventFinish, FinishReason: ev.FinishReason, Usage: ev.Usage})
}

// reconcileDangling implements spec.md §4.4's finish reconciliation: a
// dangling tool-call body (no closing sentinel seen) is force-completed if
// it contains a leading balanced JSON object whose trailing text is empty
// or a strict prefix of the closing sentinel.
func (p *Parser) reconcileDangling(enqueue toolstream.EnqueueFunc) {
	bodyStr := p.body.String()
	obj, trailing, ok := leadingBalancedObject(bodyStr)
	if ok && isEmptyOrStrictPrefix(trailing, p.opts.ToolCallEnd) {
		p.finalize(obj, enqueue)
		p.state = outside
		p.body.Reset()
		return
	}
	p.abandon(bodyStr, "tagged-json: stream finished without closing sentinel", enqueue)
	p.state = outside
	p.body.Reset()
}

func isEmptyOrStrictPrefix(trailing, sentinel string) bool {
	if trailing == "" {
		return true
	}
	if len(trailing) >= len(sentinel) {
		return false
	}
	return asciiEqualFold(trailing, sentinel[:len(trailing)])
}

// leadingBalancedObject scans s (after skipping leading whitespace) for a
// string-aware balanced `{...}` object starting at the first `{` and
// returns it along with everything after it.
func leadingBalancedObject(s string) (obj string, trailing string, ok bool) {
	trimmed := strings.TrimLeft(s, " \t\n\r")
	if trimmed == "" || trimmed[0] != '{' {
		return "", s, false
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
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
				return trimmed[:i+1], trimmed[i+1:], true
			}
		}
	}
	return "", s, false
}

func caseInsensitiveIndex(haystack, needle string) int {
	if needle == "" {
		return -1
	}
	h := strings.ToLower(haystack)
	n := strings.ToLower(needle)
	return strings.Index(h, n)
}

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
