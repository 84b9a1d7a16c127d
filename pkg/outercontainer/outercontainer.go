// Package outercontainer implements the outer-container tool-call protocol
// (spec.md §4.8): `<tool_call [name="N"]>...</tool_call>` wrapping either a
// single call's `<parameter>` elements directly, or one or more
// `<call|function|tool|invoke [name="T"]>` subelements, each a complete
// tool-call of its own.
//
// Grounded on pkg/boundary for the chunk-boundary-safe outer scan and on
// pkg/elementxml's key-locking progress model (see pkg/outercontainer/call.go),
// generalized here to the contiguity-aware run grouping spec.md §4.8's
// non-contiguous-repeat rejection rule requires (pkg/outercontainer/runs.go).
package outercontainer

import (
	"strings"

	"github.com/lanehollow/toolstream/pkg/boundary"
	"github.com/lanehollow/toolstream/pkg/protocol"
	"github.com/lanehollow/toolstream/pkg/schema"
	"github.com/lanehollow/toolstream/pkg/toolstream"
)

func init() {
	protocol.Register(protocol.Descriptor{
		Kind: protocol.OuterContainer,
		Name: "Outer Container",
		New: func(tools []toolstream.ToolDescriptor, opts toolstream.ParserOptions) toolstream.Transducer {
			return New(tools, opts)
		},
	})
}

type state int

const (
	outside state = iota
	detecting
	single
	multiAwaitingCall
	multiInsideCall
)

type mode int

const (
	modeUnknown mode = iota
	modeSingle
	modeMulti
)

// Parser is an outer-container protocol transducer. One Parser handles
// exactly one stream; construct a fresh one per stream via New.
type Parser struct {
	opts  toolstream.ParserOptions
	tools []toolstream.ToolDescriptor
	outer *boundary.Buffer

	state state
	mode  mode
	inner strings.Builder

	outerName string
	call      *callBuilder
	// currentAlias is the subelement tag name (call/function/tool/invoke)
	// of the subcall currently being scanned, in multi mode; its own
	// closing tag must use the same alias.
	currentAlias string

	finished bool
}

// New constructs a Parser. tools is used only for schema lookup by name
// (array-typed properties): names arrive inline in the body, never as a
// preregistered sentinel, so tools need not be exhaustive.
func New(tools []toolstream.ToolDescriptor, opts toolstream.ParserOptions) *Parser {
	opts = opts.Resolved()
	p := &Parser{opts: opts, tools: tools}
	p.outer = boundary.New([]string{"<tool_call"}, func() string { return toolstream.NewToolCallID() })
	p.state = outside
	return p
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
	} else {
		p.inner.WriteString(text)
	}
	p.drain(enqueue)
}

func (p *Parser) drain(enqueue toolstream.EnqueueFunc) {
	for {
		switch p.state {
		case outside:
			if !p.tryEnterOuter(enqueue) {
				return
			}
		case detecting:
			if !p.tryDetectMode(enqueue) {
				return
			}
		case single:
			if !p.processSingle(enqueue) {
				return
			}
		case multiAwaitingCall:
			if !p.tryEnterSubcall(enqueue) {
				return
			}
		case multiInsideCall:
			if !p.processSubcall(enqueue) {
				return
			}
		}
	}
}

func (p *Parser) schemaFor(name string) schema.JSONSchema {
	for _, t := range p.tools {
		if t.Name == name {
			return t.InputSchema
		}
	}
	return schema.New(nil)
}

// tryEnterOuter flushes safe outer text and, once a complete `<tool_call
// [name="N"]>` opening tag is buffered, transitions into mode detection.
func (p *Parser) tryEnterOuter(enqueue toolstream.EnqueueFunc) bool {
	p.outer.FlushSafePrefix(enqueue)
	buf := p.outer.Peek()
	if buf == "" {
		return false
	}
	const sentinel = "<tool_call"
	lower := strings.ToLower(buf)
	if len(lower) < len(sentinel) {
		return false
	}
	if !strings.HasPrefix(lower, sentinel) {
		return false
	}
	tag, ok := parseOpenTag(buf)
	if !ok {
		return false
	}
	if !strings.EqualFold(tag.Name, "tool_call") {
		// Shares the "<tool_call" prefix (e.g. a hypothetical "<tool_calls>")
		// but isn't actually the sentinel; nothing more can be resolved from
		// the buffered bytes until finish reconciliation forwards it as text.
		return false
	}

	p.outer.CloseOpenText(enqueue)
	p.outer.Consume(tag.Len)
	p.outerName = tag.Attrs["name"]
	p.mode = modeUnknown
	p.call = nil

	if tag.SelfClosing {
		p.opts.Report("outercontainer: self-closing tool_call names no tool and carries no parameters", nil)
		p.state = outside
		return true
	}

	remainder := p.outer.Peek()
	p.outer.Reset()
	p.inner.Reset()
	p.inner.WriteString(remainder)
	p.state = detecting
	return true
}

// tryDetectMode resolves mode from the first meaningful inner tag (spec.md
// §4.8): a leading `<name>T</name>` only supplies the (single-mode) tool
// name and is consumed transparently; a `<parameter>` tag fixes single
// mode; any call-like alias fixes multi mode.
func (p *Parser) tryDetectMode(enqueue toolstream.EnqueueFunc) bool {
	body := p.inner.String()
	i := 0
	for i < len(body) && isSpace(body[i]) {
		i++
	}
	if i >= len(body) {
		return false
	}
	if body[i] != '<' {
		return false
	}
	tag, ok := parseOpenTag(body[i:])
	if !ok {
		return false
	}

	switch {
	case strings.EqualFold(tag.Name, "name"):
		value, tagLen, found := scanTextElement(body[i+tag.Len:], "name")
		if !found {
			return false
		}
		if p.outerName == "" {
			p.outerName = strings.TrimSpace(value)
		}
		consumed := i + tag.Len + tagLen
		remainder := body[consumed:]
		p.inner.Reset()
		p.inner.WriteString(remainder)
		return true
	case strings.EqualFold(tag.Name, "parameter"):
		p.mode = modeSingle
		p.call = newCallBuilder(p.opts, p.outerName, p.schemaFor(p.outerName))
		p.state = single
		return true
	case isCallAlias(tag.Name):
		p.mode = modeMulti
		p.state = multiAwaitingCall
		return true
	default:
		return false
	}
}

// processSingle scans parameters directly under `<tool_call>` until its
// `</tool_call>` closing tag (single mode has no separate inner close: the
// wrapper's own close ends the one call it wraps).
func (p *Parser) processSingle(enqueue toolstream.EnqueueFunc) bool {
	body := p.inner.String()
	closed, stopPos, stopped := scanParamElements(body)
	p.call.progress(closed, enqueue)
	if !stopped {
		return false
	}
	rest := body[stopPos:]
	tagLen, incomplete, matched := matchClosingTag(rest, "tool_call")
	if incomplete {
		return false
	}
	if !matched {
		return false
	}
	p.call.finalize(closed, enqueue)
	leftover := rest[tagLen:]
	p.inner.Reset()
	p.outer.Reset()
	p.state = outside
	if leftover != "" {
		p.outer.Append(leftover)
	}
	return true
}

// tryEnterSubcall scans, at the point between subcalls, for either the
// next call-like opening tag or the outer `</tool_call>` closing tag.
func (p *Parser) tryEnterSubcall(enqueue toolstream.EnqueueFunc) bool {
	body := p.inner.String()
	i := 0
	for i < len(body) && isSpace(body[i]) {
		i++
	}
	if i >= len(body) {
		return false
	}
	rest := body[i:]

	if tagLen, incomplete, matched := matchClosingTag(rest, "tool_call"); incomplete || matched {
		if incomplete {
			return false
		}
		leftover := rest[tagLen:]
		p.inner.Reset()
		p.outer.Reset()
		p.state = outside
		p.mode = modeUnknown
		if leftover != "" {
			p.outer.Append(leftover)
		}
		return true
	}

	if rest[0] != '<' {
		return false
	}
	tag, ok := parseOpenTag(rest)
	if !ok {
		return false
	}
	if !isCallAlias(tag.Name) {
		return false
	}

	p.currentAlias = tag.Name
	p.call = newCallBuilder(p.opts, tag.Attrs["name"], p.schemaFor(tag.Attrs["name"]))
	consumed := i + tag.Len
	remainder := body[consumed:]

	if tag.SelfClosing {
		p.call.finalize(nil, enqueue)
		p.inner.Reset()
		p.inner.WriteString(remainder)
		return true
	}

	p.inner.Reset()
	p.inner.WriteString(remainder)
	p.state = multiInsideCall
	return true
}

// processSubcall scans the current subcall's `<name>`/`<parameter>`
// children until its own closing tag (matching the alias it was opened
// with), then returns to multiAwaitingCall for the next subcall or the
// outer close.
func (p *Parser) processSubcall(enqueue toolstream.EnqueueFunc) bool {
	if p.call.toolName == "" {
		body := p.inner.String()
		i := 0
		for i < len(body) && isSpace(body[i]) {
			i++
		}
		if i < len(body) && body[i] == '<' {
			if tag, ok := parseOpenTag(body[i:]); ok && strings.EqualFold(tag.Name, "name") {
				value, tagLen, found := scanTextElement(body[i+tag.Len:], "name")
				if !found {
					return false
				}
				p.call.toolName = strings.TrimSpace(value)
				consumed := i + tag.Len + tagLen
				p.inner.Reset()
				p.inner.WriteString(body[consumed:])
			}
		}
	}

	body := p.inner.String()
	closed, stopPos, stopped := scanParamElements(body)
	p.call.progress(closed, enqueue)
	if !stopped {
		return false
	}
	rest := body[stopPos:]
	tagLen, incomplete, matched := matchClosingTag(rest, p.currentAlias)
	if incomplete {
		return false
	}
	if !matched {
		return false
	}
	p.call.finalize(closed, enqueue)
	leftover := rest[tagLen:]
	p.inner.Reset()
	p.inner.WriteString(leftover)
	p.state = multiAwaitingCall
	return true
}

func (p *Parser) runFinish(ev toolstream.UpstreamEvent, enqueue toolstream.EnqueueFunc) {
	if p.finished {
		return
	}
	p.finished = true

	switch p.state {
	case detecting:
		p.opts.Report("outercontainer: stream finished before any call or parameter was recognized", map[string]interface{}{"body": p.inner.String()})
		p.emitRawOnError(enqueue)
	case single:
		body := p.inner.String()
		closed, _, _ := scanParamElements(body)
		if p.call.started || len(closed) > 0 {
			p.call.finalize(closed, enqueue)
		} else {
			p.opts.Report("outercontainer: tool call never closed", map[string]interface{}{"body": body})
			p.emitRawOnError(enqueue)
		}
	case multiInsideCall:
		body := p.inner.String()
		closed, _, _ := scanParamElements(body)
		if p.call.started || len(closed) > 0 {
			p.call.finalize(closed, enqueue)
		} else {
			p.opts.Report("outercontainer: subcall never closed", map[string]interface{}{"body": body})
		}
	case multiAwaitingCall:
		// Every completed subcall already finalized; nothing dangling.
	default:
		p.outer.FlushAll(enqueue)
		p.outer.CloseOpenText(enqueue)
	}

	enqueue(toolstream.StreamEvent{Kind: toolstream.EventFinish, FinishReason: ev.FinishReason, Usage: ev.Usage})
}

func (p *Parser) emitRawOnError(enqueue toolstream.EnqueueFunc) {
	if !p.opts.EmitRawToolCallTextOnError {
		return
	}
	raw := "<tool_call>" + p.inner.String()
	if raw == "" {
		return
	}
	id := toolstream.NewToolCallID()
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextStart, ID: id})
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextDelta, ID: id, Delta: raw})
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextEnd, ID: id})
}
