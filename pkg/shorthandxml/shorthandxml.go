// Package shorthandxml implements the shorthand-XML tool-call protocol
// (spec.md §4.7): `<tool_call><function=NAME><parameter=K>V</parameter>…
// </function></tool_call>`, including the `<call=NAME>` legacy synonym.
//
// Grounded on pkg/boundary for the outside-the-call text safety (the
// `<tool_call>` wrapper is the sentinel here, not the tool's own name, so
// unlike element-XML/YAML-in-XML the tool name is discovered from the body
// rather than from the sentinel itself — the same shape as pkg/taggedjson's
// envelope-carries-its-own-name design) and on pkg/elementxml's key-locking
// progress model for the repeated-parameter-forms-an-array stability rule.
package shorthandxml

import (
	"strings"

	"github.com/lanehollow/toolstream/pkg/boundary"
	"github.com/lanehollow/toolstream/pkg/delta"
	"github.com/lanehollow/toolstream/pkg/jsonprefix"
	"github.com/lanehollow/toolstream/pkg/protocol"
	"github.com/lanehollow/toolstream/pkg/schema"
	"github.com/lanehollow/toolstream/pkg/toolstream"
)

func init() {
	protocol.Register(protocol.Descriptor{
		Kind: protocol.ShorthandXML,
		Name: "Shorthand XML",
		New: func(tools []toolstream.ToolDescriptor, opts toolstream.ParserOptions) toolstream.Transducer {
			return New(tools, opts)
		},
	})
}

type state int

const (
	outside state = iota
	awaitingFunction
	insideFunction
	awaitingOuterClose
)

// Parser is a shorthand-XML protocol transducer. One Parser handles exactly
// one stream; construct a fresh one per stream via New.
type Parser struct {
	opts  toolstream.ParserOptions
	tools []toolstream.ToolDescriptor
	outer *boundary.Buffer

	state    state
	inner    strings.Builder
	closeBuf strings.Builder

	toolName string
	args     *jsonprefix.OrderedObject
	locked   map[string]bool

	started    bool
	toolCallID string
	emitter    *delta.Emitter

	finished bool
}

// New constructs a Parser. Tool names are not part of the sentinel grammar
// here (they arrive inside `<function=NAME>`), so tools need not be
// preregistered for the call to be recognized; they are consulted only for
// array-schema hints during progress emission.
func New(tools []toolstream.ToolDescriptor, opts toolstream.ParserOptions) *Parser {
	opts = opts.Resolved()
	p := &Parser{opts: opts, tools: tools}
	p.outer = boundary.New([]string{"<tool_call"}, func() string { return toolstream.NewToolCallID() })
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
	switch p.state {
	case outside:
		p.outer.Append(text)
	case awaitingFunction, insideFunction:
		p.inner.WriteString(text)
	case awaitingOuterClose:
		p.closeBuf.WriteString(text)
	}
	p.drain(enqueue)
}

func (p *Parser) drain(enqueue toolstream.EnqueueFunc) {
	for {
		switch p.state {
		case outside:
			if !p.tryEnterToolCall(enqueue) {
				return
			}
		case awaitingFunction:
			if !p.tryEnterFunction(enqueue) {
				return
			}
		case insideFunction:
			if !p.processParams(enqueue) {
				return
			}
		case awaitingOuterClose:
			if !p.tryConsumeOuterClose(enqueue) {
				return
			}
		}
	}
}

func (p *Parser) tryEnterToolCall(enqueue toolstream.EnqueueFunc) bool {
	p.outer.FlushSafePrefix(enqueue)
	buf := p.outer.Peek()
	if buf == "" {
		return false
	}
	tagLen, wait, matched := matchToolCallOpen(buf)
	if wait || !matched {
		return false
	}
	p.outer.CloseOpenText(enqueue)
	p.outer.Consume(tagLen)
	remainder := p.outer.Peek()
	p.outer.Reset()
	p.state = awaitingFunction
	p.inner.Reset()
	p.inner.WriteString(remainder)
	p.toolName = ""
	p.started = false
	p.args = jsonprefix.NewOrderedObject()
	p.locked = map[string]bool{}
	return true
}

func (p *Parser) tryEnterFunction(enqueue toolstream.EnqueueFunc) bool {
	name, bodyStart, found := scanFunctionOpen(p.inner.String())
	if !found {
		return false
	}
	p.toolName = name
	p.beginToolCall(enqueue)
	remainder := p.inner.String()[bodyStart:]
	p.inner.Reset()
	p.inner.WriteString(remainder)
	p.state = insideFunction
	return true
}

func (p *Parser) beginToolCall(enqueue toolstream.EnqueueFunc) {
	p.started = true
	p.toolCallID = toolstream.NewToolCallID()
	p.emitter = delta.New(p.toolCallID)
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolInputStart, ID: p.toolCallID, ToolName: p.toolName})
}

func (p *Parser) lookupTool(name string) toolstream.ToolDescriptor {
	for _, t := range p.tools {
		if t.Name == name {
			return t
		}
	}
	return toolstream.ToolDescriptor{InputSchema: schema.New(nil)}
}

// processParams re-scans the accumulated function body on every call (the
// body is bounded by one tool call's arguments, so re-scanning is cheap and
// keeps the logic in one place rather than threading incremental scan
// state). Returns true once `</function>` is found, finalizing the call.
func (p *Parser) processParams(enqueue toolstream.EnqueueFunc) bool {
	bodyStr := p.inner.String()
	closed, _, _, functionClosed, leftover := scanParams(bodyStr)

	p.lockSupersededParams(closed, enqueue)

	if !functionClosed {
		return false
	}

	p.finalize(closed, enqueue)
	p.state = awaitingOuterClose
	p.inner.Reset()
	p.closeBuf.Reset()
	p.closeBuf.WriteString(leftover)
	return true
}

// lockSupersededParams applies pkg/elementxml's key-locking rule here: a
// single-occurrence parameter is withheld from progress until it stops
// being the most-recently-closed parameter (spec.md §4.7's "pending
// single-occurrence parameters are flushed when a different key begins or
// the call ends") or a second occurrence confirms array-coercion.
func (p *Parser) lockSupersededParams(closed []paramOcc, enqueue toolstream.EnqueueFunc) {
	if len(closed) == 0 {
		return
	}
	counts := map[string]int{}
	values := map[string][]string{}
	var order []string
	for _, c := range closed {
		if _, ok := values[c.Key]; !ok {
			order = append(order, c.Key)
		}
		counts[c.Key]++
		values[c.Key] = append(values[c.Key], c.Value)
	}
	lastKey := closed[len(closed)-1].Key
	schemaFor := p.lookupTool(p.toolName).InputSchema

	for _, key := range order {
		if p.locked[key] || key == lastKey {
			continue
		}
		if counts[key] < 2 && !schemaFor.IsArrayProperty(key) {
			continue
		}
		p.lockParam(key, counts[key], values[key], schemaFor)
	}

	if p.args.Len() == 0 {
		return
	}
	candidate, err := p.args.ToJSON()
	if err != nil {
		return
	}
	p.emitter.EmitPrefixDelta(jsonprefix.ToIncompleteJSONPrefix(candidate), enqueue)
}

func (p *Parser) lockParam(key string, count int, values []string, s schema.JSONSchema) {
	p.locked[key] = true
	if count >= 2 || s.IsArrayProperty(key) {
		p.args.Set(key, toInterfaceSlice(values))
	} else {
		p.args.Set(key, values[0])
	}
}

// finalize recomputes every key's true final value from the complete
// occurrence list, independent of what progress had locked (mirrors
// pkg/elementxml.finalizeCall), then emits the remaining lifecycle.
func (p *Parser) finalize(closed []paramOcc, enqueue toolstream.EnqueueFunc) {
	if !p.started {
		p.beginToolCall(enqueue)
	}
	counts := map[string]int{}
	values := map[string][]string{}
	var order []string
	for _, c := range closed {
		if _, ok := values[c.Key]; !ok {
			order = append(order, c.Key)
		}
		counts[c.Key]++
		values[c.Key] = append(values[c.Key], c.Value)
	}
	schemaFor := p.lookupTool(p.toolName).InputSchema
	coerce := func(key string) interface{} {
		if counts[key] >= 2 || schemaFor.IsArrayProperty(key) {
			return toInterfaceSlice(values[key])
		}
		return values[key][0]
	}

	final := jsonprefix.NewOrderedObject()
	for _, key := range p.args.Keys() {
		if _, ok := values[key]; ok {
			final.Set(key, coerce(key))
		}
	}
	for _, key := range order {
		if final.Has(key) {
			continue
		}
		final.Set(key, coerce(key))
	}

	finalJSON, err := final.ToJSON()
	if err != nil {
		finalJSON = "{}"
	}
	p.emitter.EmitFinalRemainder(finalJSON, p.opts, enqueue)
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolInputEnd, ID: p.toolCallID})
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolCall, ID: p.toolCallID, ToolName: p.toolName, Input: finalJSON})
	p.started = false
}

// tryConsumeOuterClose swallows the `</tool_call>` sentinel once fully
// buffered. Anything preceding it is held, not flushed, until the sentinel
// resolves (the tool-call has already been emitted at this point; only
// stray bytes around the wrapper's own closing tag remain at stake), same
// as pkg/taggedjson's hold-the-whole-body approach for its closing
// sentinel.
func (p *Parser) tryConsumeOuterClose(enqueue toolstream.EnqueueFunc) bool {
	const closeTag = "</tool_call>"
	buf := p.closeBuf.String()
	lower := strings.ToLower(buf)
	idx := strings.Index(lower, closeTag)
	if idx < 0 {
		return false
	}
	leftover := buf[idx+len(closeTag):]
	p.closeBuf.Reset()
	p.state = outside
	p.outer.Reset()
	if leftover != "" {
		p.outer.Append(leftover)
	}
	return true
}

func (p *Parser) runFinish(ev toolstream.UpstreamEvent, enqueue toolstream.EnqueueFunc) {
	if p.finished {
		return
	}
	p.finished = true

	switch p.state {
	case awaitingFunction, insideFunction:
		p.reconcileDangling(enqueue)
	case awaitingOuterClose:
		// The tool-call was already emitted; any trailing bytes before an
		// absent closing tag are re-surfaced as best-effort literal text
		// rather than silently dropped.
		if s := p.closeBuf.String(); s != "" {
			id := toolstream.NewToolCallID()
			enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextStart, ID: id})
			enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextDelta, ID: id, Delta: s})
			enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextEnd, ID: id})
		}
		p.state = outside
	default:
		p.outer.FlushAll(enqueue)
		p.outer.CloseOpenText(enqueue)
	}

	enqueue(toolstream.StreamEvent{Kind: toolstream.EventFinish, FinishReason: ev.FinishReason, Usage: ev.Usage})
}

// reconcileDangling implements the same best-effort finish policy as
// pkg/elementxml/pkg/yamlxml: if a complete function body (name plus
// closed parameters up to, but not necessarily including, a `</function>`)
// can be recovered, finalize on it; otherwise abandon without leaking
// markup.
func (p *Parser) reconcileDangling(enqueue toolstream.EnqueueFunc) {
	bodyStr := p.inner.String()
	if p.state == awaitingFunction {
		name, bodyStart, found := scanFunctionOpen(bodyStr)
		if !found {
			p.abandon(bodyStr, enqueue)
			return
		}
		p.toolName = name
		bodyStr = bodyStr[bodyStart:]
	}
	closed, _, _, _, _ := scanParams(bodyStr)
	if len(closed) == 0 && p.toolName == "" {
		p.abandon(bodyStr, enqueue)
		return
	}
	p.finalize(closed, enqueue)
	p.state = outside
	p.inner.Reset()
}

func (p *Parser) abandon(body string, enqueue toolstream.EnqueueFunc) {
	p.opts.Report("shorthandxml: stream finished without a complete tool-call", map[string]interface{}{"body": body})
	if p.started {
		enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolInputEnd, ID: p.toolCallID})
		p.started = false
	}
	p.state = outside
	p.inner.Reset()
	if !p.opts.EmitRawToolCallTextOnError {
		return
	}
	id := toolstream.NewToolCallID()
	raw := "<tool_call>" + body
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextStart, ID: id})
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextDelta, ID: id, Delta: raw})
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextEnd, ID: id})
}

func toInterfaceSlice(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// matchToolCallOpen recognizes the literal `<tool_call>` wrapper open tag
// (whitespace tolerated before the closing '>'; no attributes in this
// protocol's grammar, unlike §4.8's outer-container).
func matchToolCallOpen(buf string) (tagLen int, wait, matched bool) {
	const sentinel = "<tool_call"
	lower := strings.ToLower(buf)
	if len(lower) < len(sentinel) {
		if strings.HasPrefix(sentinel, lower) {
			wait = true
		}
		return 0, wait, false
	}
	if !strings.HasPrefix(lower, sentinel) {
		return 0, false, false
	}
	i := len(sentinel)
	for i < len(buf) && (buf[i] == ' ' || buf[i] == '\t' || buf[i] == '\n' || buf[i] == '\r') {
		i++
	}
	if i >= len(buf) {
		return 0, true, false
	}
	if buf[i] != '>' {
		return 0, false, false
	}
	return i + 1, false, true
}
