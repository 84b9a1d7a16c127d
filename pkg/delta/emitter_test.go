package delta

import (
	"strings"
	"testing"

	"github.com/lanehollow/toolstream/pkg/toolstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitPrefixDelta_ExtendsAndAccumulates(t *testing.T) {
	e := New("call_x")
	var events []toolstream.StreamEvent
	enqueue := func(ev toolstream.StreamEvent) { events = append(events, ev) }

	ok := e.EmitPrefixDelta(`{"a":"Seo`, enqueue)
	assert.True(t, ok)
	ok = e.EmitPrefixDelta(`{"a":"Seoul"`, enqueue)
	assert.True(t, ok)

	require.Len(t, events, 2)
	assert.Equal(t, `{"a":"Seo`, events[0].Delta)
	assert.Equal(t, `ul"`, events[1].Delta)
	assert.Equal(t, `{"a":"Seoul"`, e.Emitted())
}

func TestEmitPrefixDelta_SameCandidateIsNoOp(t *testing.T) {
	e := New("call_x")
	var events []toolstream.StreamEvent
	enqueue := func(ev toolstream.StreamEvent) { events = append(events, ev) }

	e.EmitPrefixDelta(`{"a":1`, enqueue)
	ok := e.EmitPrefixDelta(`{"a":1`, enqueue)

	assert.False(t, ok)
	assert.Len(t, events, 1)
}

func TestEmitPrefixDelta_NonMonotonicDroppedSilently(t *testing.T) {
	e := New("call_x")
	var events []toolstream.StreamEvent
	enqueue := func(ev toolstream.StreamEvent) { events = append(events, ev) }

	e.EmitPrefixDelta(`{"numbers":"3"`, enqueue)
	ok := e.EmitPrefixDelta(`{"numbers":[3,5]`, enqueue)

	assert.False(t, ok)
	assert.Len(t, events, 1)
	assert.Equal(t, `{"numbers":"3"`, e.Emitted())
}

func TestEmitFinalRemainder_EmitsSuffix(t *testing.T) {
	e := New("call_x")
	var events []toolstream.StreamEvent
	enqueue := func(ev toolstream.StreamEvent) { events = append(events, ev) }

	e.EmitPrefixDelta(`{"a":"Seo`, enqueue)
	e.EmitFinalRemainder(`{"a":"Seoul"}`, toolstream.ParserOptions{}, enqueue)

	require.Len(t, events, 2)
	assert.Equal(t, `ul"}`, events[1].Delta)

	var joined strings.Builder
	for _, ev := range events {
		joined.WriteString(ev.Delta)
	}
	assert.Equal(t, `{"a":"Seoul"}`, joined.String())
}

func TestEmitFinalRemainder_MismatchReportsAndSkips(t *testing.T) {
	e := New("call_x")
	var events []toolstream.StreamEvent
	enqueue := func(ev toolstream.StreamEvent) { events = append(events, ev) }

	var reported []string
	opts := toolstream.ParserOptions{OnError: func(msg string, _ map[string]interface{}) { reported = append(reported, msg) }}

	e.EmitPrefixDelta(`{"a":"Seoul"`, enqueue)
	e.EmitFinalRemainder(`{"a":"Tokyo"}`, opts, enqueue)

	assert.Len(t, events, 1, "no corrupting delta should be emitted")
	assert.Len(t, reported, 1)
}

func TestEmitFinalRemainder_NoOpWhenAlreadyComplete(t *testing.T) {
	e := New("call_x")
	var events []toolstream.StreamEvent
	enqueue := func(ev toolstream.StreamEvent) { events = append(events, ev) }

	e.EmitPrefixDelta(`{"a":1}`, enqueue)
	e.EmitFinalRemainder(`{"a":1}`, toolstream.ParserOptions{}, enqueue)

	assert.Len(t, events, 1)
}

func TestEmitPrefixDelta_ChunksLargeCandidate(t *testing.T) {
	e := New("call_x")
	e.chunkThreshold = 8
	var events []toolstream.StreamEvent
	enqueue := func(ev toolstream.StreamEvent) { events = append(events, ev) }

	big := `{"text":"` + strings.Repeat("a", 40) + `"}`
	e.EmitPrefixDelta(big, enqueue)

	require.Greater(t, len(events), 1, "large candidate should be split across multiple deltas")
	var joined strings.Builder
	for _, ev := range events {
		assert.Equal(t, "call_x", ev.ID)
		joined.WriteString(ev.Delta)
	}
	assert.Equal(t, big, joined.String())
}

func TestEmitPrefixDelta_ChunkingRespectsRuneBoundaries(t *testing.T) {
	e := New("call_x")
	e.chunkThreshold = 3
	var events []toolstream.StreamEvent
	enqueue := func(ev toolstream.StreamEvent) { events = append(events, ev) }

	e.EmitPrefixDelta("안녕하세요😀", enqueue)

	var joined strings.Builder
	for _, ev := range events {
		joined.WriteString(ev.Delta)
		// every delta chunk must be valid UTF-8 on its own (no split rune)
		for _, r := range ev.Delta {
			assert.NotEqual(t, rune(0xFFFD), r)
		}
	}
	assert.Equal(t, "안녕하세요😀", joined.String())
}
