package transducer

import (
	"testing"

	"github.com/lanehollow/toolstream/pkg/protocol"
	"github.com/lanehollow/toolstream/pkg/schema"
	"github.com/lanehollow/toolstream/pkg/toolstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calcTool() toolstream.ToolDescriptor {
	return toolstream.ToolDescriptor{
		Name: "calc",
		InputSchema: schema.New(map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"a": map[string]interface{}{"type": "number"}},
		}),
	}
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

func TestNew_ConstructsRegisteredProtocol(t *testing.T) {
	tr, err := New(protocol.TaggedJSON, []toolstream.ToolDescriptor{calcTool()}, toolstream.ParserOptions{})
	require.NoError(t, err)
	require.NotNil(t, tr)
}

func TestNew_UnknownKindErrors(t *testing.T) {
	_, err := New(protocol.Kind("not-a-real-kind"), nil, toolstream.ParserOptions{})
	assert.Error(t, err)
}

func TestRunWholeText_ProtocolAlreadyFindsToolCall_SkipsRecovery(t *testing.T) {
	var events []toolstream.StreamEvent
	enqueue := func(e toolstream.StreamEvent) { events = append(events, e) }

	text := `<tool_call>{"name":"calc","arguments":{"a":1}}</tool_call>`
	RunWholeText(protocol.TaggedJSON, text, []toolstream.ToolDescriptor{calcTool()}, toolstream.ParserOptions{}, enqueue)

	calls := toolCalls(events)
	require.Len(t, calls, 1)
	assert.Equal(t, "calc", calls[0].ToolName)
	assert.JSONEq(t, `{"a":1}`, calls[0].Input)
	assert.Equal(t, toolstream.EventFinish, events[len(events)-1].Kind)
}

func TestRunWholeText_FallsBackToRecoveryWhenProtocolFindsNoToolCall(t *testing.T) {
	var events []toolstream.StreamEvent
	enqueue := func(e toolstream.StreamEvent) { events = append(events, e) }

	// TaggedJSON requires the <tool_call> sentinel; this text has none, so
	// the protocol pass emits only text. The bare JSON object should still
	// be recovered.
	text := `use this tool: {"name":"calc","arguments":{"a":5}}`
	RunWholeText(protocol.TaggedJSON, text, []toolstream.ToolDescriptor{calcTool()}, toolstream.ParserOptions{}, enqueue)

	calls := toolCalls(events)
	require.Len(t, calls, 1)
	assert.Equal(t, "calc", calls[0].ToolName)
	assert.JSONEq(t, `{"a":5}`, calls[0].Input)

	var sawLeadingText bool
	for _, e := range events {
		if e.Kind == toolstream.EventTextDelta && e.Delta == "use this tool: " {
			sawLeadingText = true
		}
	}
	assert.True(t, sawLeadingText)
	assert.Equal(t, toolstream.EventFinish, events[len(events)-1].Kind)
	assert.Equal(t, toolstream.FinishReasonToolCalls, events[len(events)-1].FinishReason)
}

func TestRunWholeText_NoCandidateAnywhere_PassesPlainTextThrough(t *testing.T) {
	var events []toolstream.StreamEvent
	enqueue := func(e toolstream.StreamEvent) { events = append(events, e) }

	RunWholeText(protocol.TaggedJSON, "just a plain reply, no tools here", []toolstream.ToolDescriptor{calcTool()}, toolstream.ParserOptions{}, enqueue)

	assert.Empty(t, toolCalls(events))
	var text string
	for _, e := range events {
		if e.Kind == toolstream.EventTextDelta {
			text += e.Delta
		}
	}
	assert.Equal(t, "just a plain reply, no tools here", text)
	assert.Equal(t, toolstream.EventFinish, events[len(events)-1].Kind)
}
