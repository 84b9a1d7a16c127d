// Package elementxml implements the element-XML tool-call protocol
// (spec.md §4.5): `<toolName><param>value</param>…</toolName>`, including
// the self-closing form, repeated-child array coercion, and the stability
// rules that keep streaming progress prefix-monotonic.
//
// Grounded on pkg/boundary for the chunk-boundary-safe outer scan and on
// pkg/jsonprefix.OrderedObject (see its doc comment) for building the
// progress JSON in first-discovery order instead of alphabetically.
package elementxml

import (
	"strings"

	"github.com/lanehollow/toolstream/pkg/boundary"
	"github.com/lanehollow/toolstream/pkg/delta"
	"github.com/lanehollow/toolstream/pkg/jsonprefix"
	"github.com/lanehollow/toolstream/pkg/protocol"
	"github.com/lanehollow/toolstream/pkg/toolstream"
)

func init() {
	protocol.Register(protocol.Descriptor{
		Kind: protocol.ElementXML,
		Name: "Element XML",
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

// Parser is an element-XML protocol transducer. One Parser handles exactly
// one stream; construct a fresh one per stream via New.
type Parser struct {
	opts  toolstream.ParserOptions
	tools []toolstream.ToolDescriptor
	outer *boundary.Buffer

	state      state
	activeTool toolstream.ToolDescriptor
	inner      strings.Builder

	started    bool
	toolCallID string
	emitter    *delta.Emitter
	args       *jsonprefix.OrderedObject
	locked     map[string]bool

	finished bool
}

// New constructs a Parser recognizing only the given tools' names as
// opening tags.
func New(tools []toolstream.ToolDescriptor, opts toolstream.ParserOptions) *Parser {
	opts = opts.Resolved()
	p := &Parser{opts: opts, tools: tools}
	sentinels := make([]string, 0, len(tools))
	for _, t := range tools {
		sentinels = append(sentinels, "<"+t.Name)
	}
	p.outer = boundary.New(sentinels, func() string { return toolstream.NewToolCallID() })
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
		if p.state == outside {
			if !p.tryEnterTool(enqueue) {
				return
			}
			if p.state == outside {
				// A self-closing tag resolved without ever entering a body;
				// go around again rather than scanning inner for one.
				continue
			}
		}
		if !p.processInner(enqueue) {
			return
		}
	}
}

// tryEnterTool flushes safe outer text and, once a known tool's opening tag
// is fully buffered, transitions into its body. Returns false when the
// outer buffer holds no complete opening tag yet (caller should wait for
// more text).
func (p *Parser) tryEnterTool(enqueue toolstream.EnqueueFunc) bool {
	p.outer.FlushSafePrefix(enqueue)
	buf := p.outer.Peek()
	if buf == "" {
		return false
	}
	tool, tagLen, selfClosing, wait, matched := matchOpeningTag(buf, p.tools)
	if wait {
		return false
	}
	if !matched {
		// Shares a "<" prefix with some sentinel but isn't actually one of
		// the known tools; boundary.potentialStart will keep holding it
		// back only as long as it remains a genuine prefix candidate, so
		// reaching here with !matched means there is nothing more this
		// parser can safely resolve from the currently buffered bytes yet.
		return false
	}

	p.outer.CloseOpenText(enqueue)
	p.outer.Consume(tagLen)
	p.activeTool = tool
	p.started = false

	if selfClosing {
		// No body at all; whatever follows the tag stays in the outer
		// buffer for the next iteration to scan as plain text or another
		// tool call.
		p.finalizeCall(nil, enqueue)
		return true
	}

	remainder := p.outer.Peek()
	p.outer.Reset()
	p.state = inside
	p.inner.Reset()
	p.inner.WriteString(remainder)
	return true
}

// processInner looks for the active tool's closing tag. Returns true if the
// call was finalized (state reverted to outside, any leftover re-queued
// onto the outer buffer) so the caller can keep draining; false if the body
// is still incomplete.
func (p *Parser) processInner(enqueue toolstream.EnqueueFunc) bool {
	innerStr := p.inner.String()
	closeTag := "</" + strings.ToLower(p.activeTool.Name)
	idx := indexTagClose(strings.ToLower(innerStr), closeTag)
	if idx < 0 {
		p.emitProgress(innerStr, enqueue)
		return false
	}
	body := innerStr[:idx]
	after := idx + len(closeTag)
	gt := strings.IndexByte(innerStr[after:], '>')
	var leftover string
	if gt >= 0 {
		leftover = innerStr[after+gt+1:]
	}

	closed, _, _, _ := scanChildren(body)
	p.finalizeCall(closed, enqueue)
	p.state = outside
	p.inner.Reset()
	if leftover != "" {
		p.outer.Append(leftover)
	}
	return true
}

func (p *Parser) beginToolCall(enqueue toolstream.EnqueueFunc) {
	p.started = true
	p.toolCallID = toolstream.NewToolCallID()
	p.emitter = delta.New(p.toolCallID)
	p.args = jsonprefix.NewOrderedObject()
	p.locked = map[string]bool{}
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolInputStart, ID: p.toolCallID, ToolName: p.activeTool.Name})
}

// emitProgress applies spec.md §4.5's stability rules. A key is "locked"
// into the progress object the first time some other key closes after its
// last occurrence — proof no more repeats of it are still being typed
// consecutively — and only once it has either reached a second occurrence
// or is schema-declared as an array; the trailing key (the most recently
// closed child) is never locked, since it may still repeat. A locked key's
// value is then frozen for the rest of the stream: once later keys are
// appended after it in p.args, rewriting its value in place would shift
// every byte that follows it and break delta prefix-monotonicity, so
// finalizeCall — not progress — is what reconciles a key that keeps
// repeating after being superseded.
func (p *Parser) emitProgress(innerStr string, enqueue toolstream.EnqueueFunc) {
	closed, _, _, _ := scanChildren(innerStr)
	if len(closed) == 0 {
		return
	}
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
	lastKey := closed[len(closed)-1].Key

	for _, key := range order {
		if p.locked[key] || key == lastKey {
			continue
		}
		if counts[key] < 2 && !p.activeTool.InputSchema.IsArrayProperty(key) {
			continue
		}
		p.lockKey(key, counts[key], values[key])
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

func (p *Parser) lockKey(key string, count int, values []string) {
	p.locked[key] = true
	if count >= 2 || p.activeTool.InputSchema.IsArrayProperty(key) {
		p.args.Set(key, toInterfaceSlice(values))
	} else {
		p.args.Set(key, values[0])
	}
}

// finalizeCall builds the final arguments object from every closed child
// (array coercion applied to any key with 2+ occurrences or a
// schema-declared array type) and emits the remainder of the lifecycle. It
// recomputes every key's true final value directly from closed rather than
// trusting p.args, since a key locked mid-stream may have kept repeating
// after being superseded; already-locked keys keep their progress position
// so the emitted remainder stays as small as possible.
func (p *Parser) finalizeCall(closed []childOcc, enqueue toolstream.EnqueueFunc) {
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

	coerce := func(key string) interface{} {
		if counts[key] >= 2 || p.activeTool.InputSchema.IsArrayProperty(key) {
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
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolCall, ID: p.toolCallID, ToolName: p.activeTool.Name, Input: finalJSON})
	p.started = false
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
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

// reconcileDangling closes a tool body that never saw its closing tag,
// treating any still-open trailing child's accumulated text as if it had
// closed (spec.md §8 seed scenario 2 explicitly allows recovering this
// case, as one of two acceptable outcomes).
func (p *Parser) reconcileDangling(enqueue toolstream.EnqueueFunc) {
	innerStr := p.inner.String()
	closed, openKey, openText, openIncomplete := scanChildren(innerStr)
	if openIncomplete && openKey != "" {
		closed = append(closed, childOcc{Key: openKey, Value: openText})
	}
	p.finalizeCall(closed, enqueue)
	p.state = outside
	p.inner.Reset()
}

// matchOpeningTag reports whether buf begins with a known tool's opening
// tag (ASCII-case-insensitive), tolerating self-closing form and
// attributes. wait is true when buf is still a strict prefix of some
// tool's sentinel and more text is needed to disambiguate.
func matchOpeningTag(buf string, tools []toolstream.ToolDescriptor) (tool toolstream.ToolDescriptor, tagLen int, selfClosing, wait, matched bool) {
	lower := strings.ToLower(buf)
	for _, t := range tools {
		sentinel := "<" + strings.ToLower(t.Name)
		if len(lower) < len(sentinel) {
			if strings.HasPrefix(sentinel, lower) {
				wait = true
			}
			continue
		}
		if !strings.HasPrefix(lower, sentinel) {
			continue
		}
		if len(buf) == len(sentinel) {
			wait = true
			continue
		}
		delim := buf[len(sentinel)]
		if delim != '>' && delim != '/' && delim != ' ' && delim != '\t' && delim != '\n' && delim != '\r' {
			continue
		}
		end := strings.IndexByte(buf[len(sentinel):], '>')
		if end < 0 {
			wait = true
			continue
		}
		endIdx := len(sentinel) + end
		self := endIdx > 0 && buf[endIdx-1] == '/'
		return t, endIdx + 1, self, false, true
	}
	return toolstream.ToolDescriptor{}, 0, false, wait, false
}
