// Package transducer is the single import point a host needs: it
// registers all five wire-format protocols (blank-importing each parser
// package for its init-time protocol.Register call) and wires the
// whole-text recovery fallback (spec.md §4.9) onto the streaming parsers
// (spec.md §4.4–4.8) the way spec.md §4.9's opening sentence describes —
// "invoked when whole-text parsing via the active protocol yields no
// tool-call."
package transducer

import (
	"github.com/lanehollow/toolstream/pkg/protocol"
	"github.com/lanehollow/toolstream/pkg/recovery"
	"github.com/lanehollow/toolstream/pkg/toolstream"

	_ "github.com/lanehollow/toolstream/pkg/elementxml"
	_ "github.com/lanehollow/toolstream/pkg/outercontainer"
	_ "github.com/lanehollow/toolstream/pkg/shorthandxml"
	_ "github.com/lanehollow/toolstream/pkg/taggedjson"
	_ "github.com/lanehollow/toolstream/pkg/yamlxml"
)

// New validates tools (spec.md §7: invalid descriptors are skipped, not
// fatal) and constructs a fresh Transducer for kind.
func New(kind protocol.Kind, tools []toolstream.ToolDescriptor, opts toolstream.ParserOptions) (toolstream.Transducer, error) {
	opts = opts.Resolved()
	validated := toolstream.ValidateToolDescriptors(tools, opts.OnError)
	return protocol.New(kind, validated, opts)
}

// RunWholeText drives kind's protocol parser over a single complete text
// (one upstream text-delta followed immediately by finish) and, if that
// pass produced no tool-call, falls back to pkg/recovery over the same
// text before emitting anything — matching spec.md §4.9's "invoked when
// whole-text parsing ... yields no tool-call." If recovery also finds
// nothing, the original (tool-call-less) event sequence from the protocol
// pass is emitted unchanged.
func RunWholeText(kind protocol.Kind, text string, tools []toolstream.ToolDescriptor, opts toolstream.ParserOptions, enqueue toolstream.EnqueueFunc) {
	opts = opts.Resolved()
	validated := toolstream.ValidateToolDescriptors(tools, opts.OnError)

	tr, err := protocol.New(kind, validated, opts)
	if err != nil {
		opts.Report("transducer: "+err.Error(), map[string]interface{}{"kind": string(kind)})
		return
	}

	var buffered []toolstream.StreamEvent
	sawToolCall := false
	capture := func(e toolstream.StreamEvent) {
		if e.Kind == toolstream.EventToolCall {
			sawToolCall = true
		}
		buffered = append(buffered, e)
	}
	tr.Transform(toolstream.UpstreamEvent{Kind: toolstream.UpstreamTextDelta, Text: text}, capture)
	tr.Flush(capture)

	if sawToolCall {
		flushBuffered(buffered, enqueue)
		return
	}

	if res, ok := recovery.Recover(text, validated, opts); ok {
		emitRecovered(res, finishUsage(buffered), enqueue)
		return
	}

	flushBuffered(buffered, enqueue)
}

func flushBuffered(buffered []toolstream.StreamEvent, enqueue toolstream.EnqueueFunc) {
	for _, e := range buffered {
		enqueue(e)
	}
}

func finishUsage(buffered []toolstream.StreamEvent) *toolstream.Usage {
	for _, e := range buffered {
		if e.Kind == toolstream.EventFinish {
			return e.Usage
		}
	}
	return nil
}

func emitRecovered(res recovery.Result, usage *toolstream.Usage, enqueue toolstream.EnqueueFunc) {
	if res.TextBefore != "" {
		emitLiteralText(res.TextBefore, enqueue)
	}

	callID := toolstream.NewToolCallID()
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolInputStart, ID: callID, ToolName: res.Call.ToolName})
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolInputDelta, ID: callID, Delta: res.Call.Input})
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolInputEnd, ID: callID})
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolCall, ID: callID, ToolName: res.Call.ToolName, Input: res.Call.Input})

	if res.TextAfter != "" {
		emitLiteralText(res.TextAfter, enqueue)
	}

	enqueue(toolstream.StreamEvent{Kind: toolstream.EventFinish, FinishReason: toolstream.FinishReasonToolCalls, Usage: usage})
}

func emitLiteralText(text string, enqueue toolstream.EnqueueFunc) {
	id := toolstream.NewToolCallID()
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextStart, ID: id})
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextDelta, ID: id, Delta: text})
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventTextEnd, ID: id})
}
