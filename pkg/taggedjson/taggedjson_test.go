package taggedjson

import (
	"encoding/json"
	"testing"

	"github.com/lanehollow/toolstream/pkg/toolstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runChunks(t *testing.T, chunks []string, opts toolstream.ParserOptions) []toolstream.StreamEvent {
	t.Helper()
	p := New(nil, opts)
	var events []toolstream.StreamEvent
	enqueue := func(e toolstream.StreamEvent) { events = append(events, e) }
	for _, c := range chunks {
		p.Transform(toolstream.UpstreamEvent{Kind: toolstream.UpstreamTextDelta, Text: c}, enqueue)
	}
	p.Transform(toolstream.UpstreamEvent{Kind: toolstream.UpstreamFinish, FinishReason: toolstream.FinishReasonToolCalls}, enqueue)
	p.Flush(enqueue)
	return events
}

func joinedToolDeltas(events []toolstream.StreamEvent, id string) string {
	out := ""
	for _, e := range events {
		if e.Kind == toolstream.EventToolInputDelta && e.ID == id {
			out += e.Delta
		}
	}
	return out
}

func findToolCall(events []toolstream.StreamEvent) *toolstream.StreamEvent {
	for i := range events {
		if events[i].Kind == toolstream.EventToolCall {
			return &events[i]
		}
	}
	return nil
}

func TestSeedScenario1_SplitAcrossChunks(t *testing.T) {
	chunks := []string{
		`<tool_call>{"name":"get_weather","arg`,
		`uments":{"location":"Seoul","unit":"celsius"}}</tool_call>`,
	}
	events := runChunks(t, chunks, toolstream.ParserOptions{})

	call := findToolCall(events)
	require.NotNil(t, call)
	assert.Equal(t, "get_weather", call.ToolName)

	var got, want map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(call.Input), &got))
	require.NoError(t, json.Unmarshal([]byte(`{"location":"Seoul","unit":"celsius"}`), &want))
	assert.Equal(t, want, got)

	deltas := joinedToolDeltas(events, call.ID)
	assert.Equal(t, call.Input, deltas)

	// finish must be last
	assert.Equal(t, toolstream.EventFinish, events[len(events)-1].Kind)
}

func TestSeedScenario1_SingleCharacterChunking(t *testing.T) {
	full := `<tool_call>{"name":"get_weather","arguments":{"location":"Seoul","unit":"celsius"}}</tool_call>`
	chunks := make([]string, 0, len(full))
	for _, r := range full {
		chunks = append(chunks, string(r))
	}
	events := runChunks(t, chunks, toolstream.ParserOptions{})

	call := findToolCall(events)
	require.NotNil(t, call)
	assert.Equal(t, "get_weather", call.ToolName)
	deltas := joinedToolDeltas(events, call.ID)
	assert.Equal(t, call.Input, deltas)
}

func TestPlainTextPassesThrough(t *testing.T) {
	events := runChunks(t, []string{"hello ", "world"}, toolstream.ParserOptions{})
	var text string
	for _, e := range events {
		if e.Kind == toolstream.EventTextDelta {
			text += e.Delta
		}
	}
	assert.Equal(t, "hello world", text)
	assert.Nil(t, findToolCall(events))
}

func TestSentinelNeverLeaksIntoTextDelta(t *testing.T) {
	chunks := []string{"before <tool_c", "all>{\"name\":\"x\",\"arguments\":{}}</tool_call>after"}
	events := runChunks(t, chunks, toolstream.ParserOptions{})
	for _, e := range events {
		if e.Kind == toolstream.EventTextDelta {
			assert.NotContains(t, e.Delta, "<tool_c")
		}
	}
}

func TestMalformedEnvelope_SuppressedByDefault(t *testing.T) {
	chunks := []string{`<tool_call>not json at all</tool_call>`}
	events := runChunks(t, chunks, toolstream.ParserOptions{})
	assert.Nil(t, findToolCall(events))
	for _, e := range events {
		if e.Kind == toolstream.EventTextDelta {
			assert.NotContains(t, e.Delta, "not json at all")
		}
	}
}

func TestMalformedEnvelope_RawEmittedWhenPolicyEnabled(t *testing.T) {
	chunks := []string{`<tool_call>not json at all</tool_call>`}
	events := runChunks(t, chunks, toolstream.ParserOptions{EmitRawToolCallTextOnError: true})
	assert.Nil(t, findToolCall(events))
	found := false
	for _, e := range events {
		if e.Kind == toolstream.EventTextDelta && e.Delta == "<tool_call>not json at all</tool_call>" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestFinishReconciliation_RecoversDanglingBalancedObject(t *testing.T) {
	chunks := []string{`<tool_call>{"name":"get_weather","arguments":{"location":"NY"}}`}
	events := runChunks(t, chunks, toolstream.ParserOptions{})
	call := findToolCall(events)
	require.NotNil(t, call)
	assert.Equal(t, "get_weather", call.ToolName)
}

func TestFinishReconciliation_SuppressesUnrecoverableDangling(t *testing.T) {
	chunks := []string{`<tool_call>{"name":"get_weather",`}
	events := runChunks(t, chunks, toolstream.ParserOptions{})
	assert.Nil(t, findToolCall(events))
}

func TestCustomSentinels(t *testing.T) {
	opts := toolstream.ParserOptions{ToolCallStart: "[[call]]", ToolCallEnd: "[[/call]]"}
	chunks := []string{`[[call]]{"name":"calc","arguments":{"a":1}}[[/call]]`}
	events := runChunks(t, chunks, opts)
	call := findToolCall(events)
	require.NotNil(t, call)
	assert.Equal(t, "calc", call.ToolName)
}

func TestFinishIsAlwaysLastEvent(t *testing.T) {
	events := runChunks(t, []string{"just text, no tool call"}, toolstream.ParserOptions{})
	require.NotEmpty(t, events)
	assert.Equal(t, toolstream.EventFinish, events[len(events)-1].Kind)
}

func TestNonTextUpstreamEventClosesOpenText(t *testing.T) {
	p := New(nil, toolstream.ParserOptions{})
	var events []toolstream.StreamEvent
	enqueue := func(e toolstream.StreamEvent) { events = append(events, e) }

	p.Transform(toolstream.UpstreamEvent{Kind: toolstream.UpstreamTextDelta, Text: "hello"}, enqueue)
	require.True(t, p.outer.IsTextOpen())

	p.Transform(toolstream.UpstreamEvent{Kind: toolstream.UpstreamReasoningStart, ID: "r1"}, enqueue)

	require.Len(t, events, 4)
	assert.Equal(t, toolstream.EventTextStart, events[0].Kind)
	assert.Equal(t, toolstream.EventTextDelta, events[1].Kind)
	assert.Equal(t, toolstream.EventTextEnd, events[2].Kind)
	assert.Equal(t, toolstream.EventReasoningStart, events[3].Kind)
}
