package outercontainer

import (
	"encoding/json"
	"testing"

	"github.com/lanehollow/toolstream/pkg/schema"
	"github.com/lanehollow/toolstream/pkg/toolstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runChunks(t *testing.T, tools []toolstream.ToolDescriptor, chunks []string, opts toolstream.ParserOptions) []toolstream.StreamEvent {
	t.Helper()
	p := New(tools, opts)
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

func toolCalls(events []toolstream.StreamEvent) []toolstream.StreamEvent {
	var out []toolstream.StreamEvent
	for _, e := range events {
		if e.Kind == toolstream.EventToolCall {
			out = append(out, e)
		}
	}
	return out
}

func sumTool() toolstream.ToolDescriptor {
	return toolstream.ToolDescriptor{
		Name: "sum",
		InputSchema: schema.New(map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"numbers": map[string]interface{}{"type": "array"},
			},
		}),
	}
}

func TestSingleMode_NameAttribute(t *testing.T) {
	input := `<tool_call name="get_weather"><parameter name="location">Seoul</parameter></tool_call>`
	events := runChunks(t, nil, []string{input}, toolstream.ParserOptions{})

	calls := toolCalls(events)
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].ToolName)
	assert.Equal(t, `{"location":"Seoul"}`, calls[0].Input)
	assert.Equal(t, calls[0].Input, joinedToolDeltas(events, calls[0].ID))
	assert.Equal(t, toolstream.EventFinish, events[len(events)-1].Kind)
}

func TestSingleMode_SplitAcrossChunks(t *testing.T) {
	chunks := []string{
		`<tool_call name="get_weath`,
		`er"><parameter name="loc`,
		`ation">Seoul</paramet`,
		`er></tool_call>`,
	}
	events := runChunks(t, nil, chunks, toolstream.ParserOptions{})

	calls := toolCalls(events)
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].ToolName)
	assert.Equal(t, `{"location":"Seoul"}`, calls[0].Input)
}

func TestSingleCharacterChunking(t *testing.T) {
	full := `<tool_call name="get_weather"><parameter name="location">Seoul</parameter></tool_call>`
	chunks := make([]string, 0, len(full))
	for _, r := range full {
		chunks = append(chunks, string(r))
	}
	events := runChunks(t, nil, chunks, toolstream.ParserOptions{})

	calls := toolCalls(events)
	require.Len(t, calls, 1)
	assert.Equal(t, calls[0].Input, joinedToolDeltas(events, calls[0].ID))
}

func TestMultiMode_TwoSubcalls(t *testing.T) {
	input := `<tool_call><call><name>get_weather</name><parameter name="location">Seoul</parameter></call>` +
		`<function name="get_time"><parameter name="tz">KST</parameter></function></tool_call>`
	events := runChunks(t, nil, []string{input}, toolstream.ParserOptions{})

	calls := toolCalls(events)
	require.Len(t, calls, 2)
	assert.Equal(t, "get_weather", calls[0].ToolName)
	assert.Equal(t, `{"location":"Seoul"}`, calls[0].Input)
	assert.Equal(t, "get_time", calls[1].ToolName)
	assert.Equal(t, `{"tz":"KST"}`, calls[1].Input)
	assert.Equal(t, toolstream.EventFinish, events[len(events)-1].Kind)
}

func TestMultiMode_SelfClosingSubcall(t *testing.T) {
	input := `<tool_call><call name="ping"/><call name="pong"/></tool_call>`
	events := runChunks(t, nil, []string{input}, toolstream.ParserOptions{})

	calls := toolCalls(events)
	require.Len(t, calls, 2)
	assert.Equal(t, "ping", calls[0].ToolName)
	assert.Equal(t, "{}", calls[0].Input)
	assert.Equal(t, "pong", calls[1].ToolName)
	assert.Equal(t, "{}", calls[1].Input)
}

func TestRepeatedParameter_ContiguousCoercesToArray(t *testing.T) {
	input := `<tool_call name="sum"><parameter name="numbers">3</parameter>` +
		`<parameter name="numbers">5</parameter><parameter name="numbers">7</parameter></tool_call>`
	events := runChunks(t, []toolstream.ToolDescriptor{sumTool()}, []string{input}, toolstream.ParserOptions{})

	calls := toolCalls(events)
	require.Len(t, calls, 1)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(calls[0].Input), &got))
	assert.Equal(t, []interface{}{"3", "5", "7"}, got["numbers"])
}

func TestRepeatedParameter_NonContiguousRejectedWithOnError(t *testing.T) {
	input := `<tool_call name="x"><parameter name="a">1</parameter>` +
		`<parameter name="b">2</parameter><parameter name="a">3</parameter></tool_call>`
	var diagnostics []string
	opts := toolstream.ParserOptions{OnError: func(msg string, _ map[string]interface{}) {
		diagnostics = append(diagnostics, msg)
	}}
	events := runChunks(t, nil, []string{input}, opts)

	calls := toolCalls(events)
	require.Len(t, calls, 1)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(calls[0].Input), &got))
	assert.Equal(t, "1", got["a"], "the already-sealed key keeps its original value")
	assert.Equal(t, "2", got["b"])
	require.Len(t, diagnostics, 1)
}

func TestSelfClosingParameter_IsEmptyString(t *testing.T) {
	input := `<tool_call name="noop"><parameter name="flag"/></tool_call>`
	events := runChunks(t, nil, []string{input}, toolstream.ParserOptions{})

	calls := toolCalls(events)
	require.Len(t, calls, 1)
	assert.Equal(t, `{"flag":""}`, calls[0].Input)
}

func TestPlainTextPassesThrough(t *testing.T) {
	events := runChunks(t, nil, []string{"hello ", "world"}, toolstream.ParserOptions{})
	var text string
	for _, e := range events {
		if e.Kind == toolstream.EventTextDelta {
			text += e.Delta
		}
	}
	assert.Equal(t, "hello world", text)
	assert.Empty(t, toolCalls(events))
}

func TestSentinelNeverLeaksIntoTextDelta(t *testing.T) {
	chunks := []string{"before <tool_c", `all name="x"><parameter name="a">1</parameter></tool_call>after`}
	events := runChunks(t, nil, chunks, toolstream.ParserOptions{})
	for _, e := range events {
		if e.Kind == toolstream.EventTextDelta {
			assert.NotContains(t, e.Delta, "<tool_c")
			assert.NotContains(t, e.Delta, "</tool_call>")
		}
	}
}

func TestFinishIsAlwaysLastEvent(t *testing.T) {
	events := runChunks(t, nil, []string{"just text, no tool call"}, toolstream.ParserOptions{})
	require.NotEmpty(t, events)
	assert.Equal(t, toolstream.EventFinish, events[len(events)-1].Kind)
}

func TestFinishReconciliation_SingleModeMissingClose(t *testing.T) {
	chunks := []string{`<tool_call name="get_weather"><parameter name="location">NY</parameter>`}
	events := runChunks(t, nil, chunks, toolstream.ParserOptions{})

	calls := toolCalls(events)
	require.Len(t, calls, 1)
	assert.Equal(t, `{"location":"NY"}`, calls[0].Input)
	assert.Equal(t, toolstream.EventFinish, events[len(events)-1].Kind)
}

func TestFinishReconciliation_MultiModeDanglingSubcall(t *testing.T) {
	chunks := []string{
		`<tool_call><call name="a"><parameter name="x">1</parameter></call>` +
			`<function name="b"><parameter name="y">2</parameter>`,
	}
	events := runChunks(t, nil, chunks, toolstream.ParserOptions{})

	calls := toolCalls(events)
	require.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].ToolName)
	assert.Equal(t, "b", calls[1].ToolName)
	assert.Equal(t, `{"y":"2"}`, calls[1].Input)
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
