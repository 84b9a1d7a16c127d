package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/lanehollow/toolstream/pkg/protocol"
	"github.com/lanehollow/toolstream/pkg/schema"
	"github.com/lanehollow/toolstream/pkg/toolstream"
	"github.com/lanehollow/toolstream/pkg/transducer"
)

// cannedTranscript is a fixed model response naming the get_weather tool,
// written in the tagged-JSON sentinel shape; runTranscript re-chunks it
// on byte boundaries regardless of -protocol so a reader can see the
// chunk buffer (pkg/boundary) hold a split sentinel across Transform calls.
const cannedTranscript = `Let me check that for you. <tool_call>{"name":"get_weather","arguments":{"location":"Seoul","unit":"celsius"}}</tool_call> I'll have an answer shortly.`

func demoTools() []toolstream.ToolDescriptor {
	return []toolstream.ToolDescriptor{
		{
			Name: "get_weather",
			InputSchema: schema.New(map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"location": map[string]interface{}{"type": "string"},
					"unit":     map[string]interface{}{"type": "string"},
				},
			}),
		},
	}
}

// runTranscript feeds cannedTranscript through kind's Transducer in
// chunkSize-byte pieces, logging each upstream chunk and printing every
// resulting StreamEvent as one line of JSON, in the teacher's
// examples/cli-chat style of narrating a streamed response as it arrives.
func runTranscript(kind protocol.Kind, chunkSize int) error {
	if chunkSize < 1 {
		chunkSize = 1
	}

	opts := toolstream.ParserOptions{
		OnError: func(message string, metadata map[string]interface{}) {
			log.Printf("transducer diagnostic: %s %v", message, metadata)
		},
	}

	tr, err := transducer.New(kind, demoTools(), opts)
	if err != nil {
		return fmt.Errorf("constructing transducer: %w", err)
	}

	runID := uuid.NewString()
	fmt.Printf("run %s: streaming %q through protocol %q in %d-byte chunks\n\n", runID, cannedTranscript, kind, chunkSize)

	enqueue := func(e toolstream.StreamEvent) { printEvent(e) }

	tr.Transform(toolstream.UpstreamEvent{Kind: toolstream.UpstreamStreamStart}, enqueue)
	for i := 0; i < len(cannedTranscript); i += chunkSize {
		end := i + chunkSize
		if end > len(cannedTranscript) {
			end = len(cannedTranscript)
		}
		tr.Transform(toolstream.UpstreamEvent{Kind: toolstream.UpstreamTextDelta, Text: cannedTranscript[i:end]}, enqueue)
	}
	tr.Transform(toolstream.UpstreamEvent{Kind: toolstream.UpstreamFinish, FinishReason: toolstream.FinishReasonStop}, enqueue)
	tr.Flush(enqueue)

	return nil
}

// wireEvent is the JSON-friendly projection of a toolstream.StreamEvent;
// the type itself carries no json tags since it is an in-process value,
// not a wire payload, so the demo and the -serve handler each define
// their own projection.
type wireEvent struct {
	Kind         string            `json:"kind"`
	ID           string            `json:"id,omitempty"`
	Delta        string            `json:"delta,omitempty"`
	ToolName     string            `json:"toolName,omitempty"`
	Input        string            `json:"input,omitempty"`
	FinishReason string            `json:"finishReason,omitempty"`
	Usage        *toolstream.Usage `json:"usage,omitempty"`
	Err          string            `json:"error,omitempty"`
}

func toWireEvent(e toolstream.StreamEvent) wireEvent {
	w := wireEvent{
		Kind:         string(e.Kind),
		ID:           e.ID,
		Delta:        e.Delta,
		ToolName:     e.ToolName,
		Input:        e.Input,
		FinishReason: string(e.FinishReason),
		Usage:        e.Usage,
	}
	if e.Err != nil {
		w.Err = e.Err.Error()
	}
	return w
}

func printEvent(e toolstream.StreamEvent) {
	b, err := json.Marshal(toWireEvent(e))
	if err != nil {
		log.Printf("marshalling event: %v", err)
		return
	}
	fmt.Println(string(b))
}
