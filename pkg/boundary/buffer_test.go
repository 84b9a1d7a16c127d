package boundary

import (
	"strings"
	"testing"

	"github.com/lanehollow/toolstream/pkg/toolstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(events *[]toolstream.StreamEvent) toolstream.EnqueueFunc {
	return func(e toolstream.StreamEvent) { *events = append(*events, e) }
}

func newSeqIDGen() IDGenFunc {
	n := 0
	return func() string {
		n++
		return "text-" + string(rune('0'+n))
	}
}

func TestFlushSafePrefix_FlushesPlainText(t *testing.T) {
	buf := New([]string{"<tool_call>"}, newSeqIDGen())
	buf.Append("hello world")

	var events []toolstream.StreamEvent
	buf.FlushSafePrefix(collect(&events))

	require.Len(t, events, 2)
	assert.Equal(t, toolstream.EventTextStart, events[0].Kind)
	assert.Equal(t, toolstream.EventTextDelta, events[1].Kind)
	assert.Equal(t, "hello world", events[1].Delta)
	assert.Equal(t, 0, buf.Len())
}

func TestFlushSafePrefix_HoldsBackPartialSentinel(t *testing.T) {
	buf := New([]string{"<tool_call>"}, newSeqIDGen())
	buf.Append("before <tool_c")

	var events []toolstream.StreamEvent
	buf.FlushSafePrefix(collect(&events))

	require.Len(t, events, 2)
	assert.Equal(t, "before ", events[1].Delta)
	assert.Equal(t, "<tool_c", buf.Peek())
}

func TestFlushSafePrefix_SentinelAcrossChunkBoundary(t *testing.T) {
	buf := New([]string{"<tool_call>"}, newSeqIDGen())
	var events []toolstream.StreamEvent

	buf.Append("before <tool_c")
	buf.FlushSafePrefix(collect(&events))
	buf.Append("all>after")
	buf.FlushSafePrefix(collect(&events))

	for _, e := range events {
		if e.Kind == toolstream.EventTextDelta {
			assert.NotContains(t, strings.ToLower(e.Delta), "<tool_call>")
			assert.NotContains(t, e.Delta, "<tool_c")
		}
	}
}

func TestFlushSafePrefix_CaseInsensitiveSentinelMatch(t *testing.T) {
	buf := New([]string{"<get_weather>"}, newSeqIDGen())
	buf.Append("x <GET_WEA")

	var events []toolstream.StreamEvent
	buf.FlushSafePrefix(collect(&events))

	assert.Equal(t, "x ", events[1].Delta)
	assert.Equal(t, "<GET_WEA", buf.Peek())
}

func TestFlushSafePrefix_UnicodeNeverSplitsSentinelDetection(t *testing.T) {
	buf := New([]string{"<tool_call>"}, newSeqIDGen())
	buf.Append("안녕하세요 😀 <tool_call>")

	var events []toolstream.StreamEvent
	buf.FlushSafePrefix(collect(&events))

	require.Len(t, events, 2)
	assert.Equal(t, "안녕하세요 😀 ", events[1].Delta)
	assert.Equal(t, "<tool_call>", buf.Peek())
}

func TestCloseOpenText_NoOpWhenNothingOpen(t *testing.T) {
	buf := New([]string{"<tool_call>"}, newSeqIDGen())
	var events []toolstream.StreamEvent
	buf.CloseOpenText(collect(&events))
	assert.Empty(t, events)
}

func TestCloseOpenText_EmitsEndForOpenSegment(t *testing.T) {
	buf := New([]string{"<tool_call>"}, newSeqIDGen())
	var events []toolstream.StreamEvent
	buf.Append("hi")
	buf.FlushSafePrefix(collect(&events))
	buf.CloseOpenText(collect(&events))

	require.Len(t, events, 3)
	assert.Equal(t, toolstream.EventTextEnd, events[2].Kind)
	assert.Equal(t, events[0].ID, events[2].ID)
	assert.False(t, buf.IsTextOpen())
}

func TestConsume(t *testing.T) {
	buf := New(nil, newSeqIDGen())
	buf.Append("abcdef")
	buf.Consume(3)
	assert.Equal(t, "def", buf.Peek())
}
