// Package yamlxml implements the YAML-in-XML tool-call protocol
// (spec.md §4.6): `<toolName>` wrapping a YAML block mapping body, with
// the stability rules that keep streaming progress safe against YAML's
// looser, line-oriented incompleteness than XML's tag-delimited one.
//
// Grounded on pkg/boundary for the chunk-boundary-safe outer scan (the
// outer `<toolName>…</toolName>` wrapper is identical to pkg/elementxml's)
// and on gopkg.in/yaml.v3's Node API, which exposes a document's mapping
// keys in their literal file order — the same order-preservation role
// pkg/jsonprefix.OrderedObject plays for element-XML, here obtained
// directly from the parser instead of hand-tracked.
package yamlxml

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
		Kind: protocol.YAMLInXML,
		Name: "YAML in XML",
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

// Parser is a YAML-in-XML protocol transducer. One Parser handles exactly
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
				// A self-closing tag resolved without entering a body; go
				// around again rather than scanning inner for one.
				continue
			}
		}
		if !p.processInner(enqueue) {
			return
		}
	}
}

// tryEnterTool flushes safe outer text and, once a known tool's opening tag
// is fully buffered, transitions into its body.
func (p *Parser) tryEnterTool(enqueue toolstream.EnqueueFunc) bool {
	p.outer.FlushSafePrefix(enqueue)
	buf := p.outer.Peek()
	if buf == "" {
		return false
	}
	tool, tagLen, selfClosing, wait, matched := matchOpeningTag(buf, p.tools)
	if wait || !matched {
		return false
	}

	p.outer.CloseOpenText(enqueue)
	p.outer.Consume(tagLen)
	p.activeTool = tool
	p.started = false

	if selfClosing {
		// Zero-argument call; whatever follows stays in the outer buffer
		// for the next iteration to scan as plain text or another call.
		p.finalize("", enqueue)
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
// call was finalized; false if the body is still incomplete.
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

	p.finalize(body, enqueue)
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
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolInputStart, ID: p.toolCallID, ToolName: p.activeTool.Name})
}

// emitProgress projects the largest currently-stable prefix of the YAML
// body (spec.md §4.6's line-dropping retry loop) through §4.2's
// incomplete-JSON-prefix stripping before handing it to the delta emitter.
// Because the stable prefix only ever grows by whole, already-final lines
// — a completed scalar line's value can never retroactively change — and
// ToIncompleteJSONPrefix always trims back to before the outermost
// still-open construct, each successive candidate is a genuine extension
// of the last, without needing per-key locking the way element-XML's
// repeatable children do.
func (p *Parser) emitProgress(innerStr string, enqueue toolstream.EnqueueFunc) {
	root, ok := stableYAMLPrefix(innerStr)
	if !ok {
		return
	}
	obj, ok := nodeToValue(root).(*jsonprefix.OrderedObject)
	if !ok || obj.Len() == 0 {
		return
	}
	full, err := obj.ToJSON()
	if err != nil {
		return
	}
	if !p.started {
		p.beginToolCall(enqueue)
	}
	candidate := jsonprefix.ToIncompleteJSONPrefix(full)
	p.emitter.EmitPrefixDelta(candidate, enqueue)
}

// finalize strict-parses the complete YAML body and emits the remainder of
// the lifecycle. A body that fails to parse as a mapping is abandoned per
// spec.md §4.5's error-recovery policy (shared by §4.6).
func (p *Parser) finalize(body string, enqueue toolstream.EnqueueFunc) {
	if !p.started {
		p.beginToolCall(enqueue)
	}

	final, ok := parseFullYAML(body)
	if !ok {
		p.abandon(body, "yamlxml: malformed YAML tool-call body", enqueue)
		return
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
	raw := "<" + p.activeTool.Name + ">" + body + "</" + p.activeTool.Name + ">"
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

// reconcileDangling implements spec.md §4.6's finish best-effort: if the
// dangling body parses after stripping a trailing partial close-tag
// prefix (e.g. "</toolNa"), accept it; otherwise fall back to the same
// named-unstable-line-aware stable prefix §4.6 uses for mid-stream
// progress, and finalize on whatever that recovers.
func (p *Parser) reconcileDangling(enqueue toolstream.EnqueueFunc) {
	innerStr := p.inner.String()
	stripped := stripTrailingPartialCloseTag(innerStr, p.activeTool.Name)
	if final, ok := parseFullYAML(stripped); ok {
		p.finishFinal(final, enqueue)
		return
	}
	if root, ok := stableYAMLPrefix(innerStr); ok {
		if obj, ok := nodeToValue(root).(*jsonprefix.OrderedObject); ok && obj.Len() > 0 {
			p.finishFinal(obj, enqueue)
			return
		}
	}
	p.abandon(innerStr, "yamlxml: stream finished without closing tag", enqueue)
	p.state = outside
	p.inner.Reset()
}

func (p *Parser) finishFinal(obj *jsonprefix.OrderedObject, enqueue toolstream.EnqueueFunc) {
	if !p.started {
		p.beginToolCall(enqueue)
	}
	finalJSON, err := obj.ToJSON()
	if err != nil {
		finalJSON = "{}"
	}
	p.emitter.EmitFinalRemainder(finalJSON, p.opts, enqueue)
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolInputEnd, ID: p.toolCallID})
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolCall, ID: p.toolCallID, ToolName: p.activeTool.Name, Input: finalJSON})
	p.started = false
	p.state = outside
	p.inner.Reset()
}

// stripTrailingPartialCloseTag removes a trailing partial occurrence of
// "</toolName" (e.g. "</get_weat") from the end of s, so a body that ends
// mid-way through typing its own closing tag can still be recovered.
func stripTrailingPartialCloseTag(s, toolName string) string {
	closeTag := "</" + strings.ToLower(toolName)
	lower := strings.ToLower(s)
	for n := len(closeTag) - 1; n > 0; n-- {
		if len(lower) >= n && strings.HasSuffix(lower, closeTag[:n]) {
			return s[:len(s)-n]
		}
	}
	return s
}

// parseFullYAML strict-parses s as a complete YAML mapping, returning the
// ordered object form on success.
func parseFullYAML(s string) (*jsonprefix.OrderedObject, bool) {
	root, ok := parseStrict(s)
	if !ok {
		return nil, false
	}
	obj, ok := nodeToValue(root).(*jsonprefix.OrderedObject)
	return obj, ok
}
