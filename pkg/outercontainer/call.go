package outercontainer

import (
	"github.com/lanehollow/toolstream/pkg/delta"
	"github.com/lanehollow/toolstream/pkg/jsonprefix"
	"github.com/lanehollow/toolstream/pkg/schema"
	"github.com/lanehollow/toolstream/pkg/toolstream"
)

// callBuilder drives one tool-call's input lifecycle (single mode has
// exactly one per stream; multi mode creates a fresh one per subelement).
// Progress is built from runs rather than raw occurrences so the same
// locking rule pkg/elementxml uses — a run is only folded into the emitted
// progress object once some other run has started after it, proof it is
// done growing — applies unchanged here; buildRuns additionally seals a
// key the moment its run ends, which is what makes the non-contiguous
// rejection rule (spec.md §4.8) possible to enforce at all.
type callBuilder struct {
	opts      toolstream.ParserOptions
	toolName  string
	schemaFor schema.JSONSchema

	started    bool
	toolCallID string
	emitter    *delta.Emitter
	args       *jsonprefix.OrderedObject
	locked     map[string]bool

	reportedRejects int
}

func newCallBuilder(opts toolstream.ParserOptions, toolName string, schemaFor schema.JSONSchema) *callBuilder {
	return &callBuilder{
		opts:      opts,
		toolName:  toolName,
		schemaFor: schemaFor,
		args:      jsonprefix.NewOrderedObject(),
		locked:    map[string]bool{},
	}
}

func (c *callBuilder) begin(enqueue toolstream.EnqueueFunc) {
	if c.started {
		return
	}
	c.started = true
	c.toolCallID = toolstream.NewToolCallID()
	c.emitter = delta.New(c.toolCallID)
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolInputStart, ID: c.toolCallID, ToolName: c.toolName})
}

func (c *callBuilder) reportRejects(rejects []paramOcc) {
	for _, r := range rejects[c.reportedRejects:] {
		c.opts.Report("outercontainer: non-contiguous repeated parameter rejected", map[string]interface{}{
			"tool":  c.toolName,
			"key":   r.Key,
			"value": r.Value,
		})
	}
	c.reportedRejects = len(rejects)
}

// progress applies spec.md §4.8's stability rule to the occurrences closed
// so far and emits a tool-input-delta if the progress object grew.
func (c *callBuilder) progress(occs []paramOcc, enqueue toolstream.EnqueueFunc) {
	runs, rejects := buildRuns(occs)
	c.reportRejects(rejects)
	if len(runs) == 0 {
		return
	}
	c.begin(enqueue)

	lastKey := runs[len(runs)-1].Key
	for _, r := range runs {
		if c.locked[r.Key] || r.Key == lastKey {
			continue
		}
		if len(r.Values) < 2 && !c.schemaFor.IsArrayProperty(r.Key) {
			continue
		}
		c.lock(r)
	}

	if c.args.Len() == 0 {
		return
	}
	candidate, err := c.args.ToJSON()
	if err != nil {
		return
	}
	c.emitter.EmitPrefixDelta(jsonprefix.ToIncompleteJSONPrefix(candidate), enqueue)
}

func (c *callBuilder) lock(r run) {
	c.locked[r.Key] = true
	c.args.Set(r.Key, c.coerce(r))
}

func (c *callBuilder) coerce(r run) interface{} {
	if len(r.Values) >= 2 || c.schemaFor.IsArrayProperty(r.Key) {
		return toInterfaceSlice(r.Values)
	}
	return r.Values[0]
}

// finalize builds the final arguments object from scratch (a key locked
// mid-stream may have kept repeating contiguously after being locked) and
// emits the terminal tool-input-end/tool-call pair.
func (c *callBuilder) finalize(occs []paramOcc, enqueue toolstream.EnqueueFunc) {
	runs, rejects := buildRuns(occs)
	c.reportRejects(rejects)
	c.begin(enqueue)

	byKey := map[string]run{}
	for _, r := range runs {
		byKey[r.Key] = r
	}

	final := jsonprefix.NewOrderedObject()
	for _, key := range c.args.Keys() {
		if r, ok := byKey[key]; ok {
			final.Set(key, c.coerce(r))
		}
	}
	for _, r := range runs {
		if final.Has(r.Key) {
			continue
		}
		final.Set(r.Key, c.coerce(r))
	}

	finalJSON, err := final.ToJSON()
	if err != nil {
		finalJSON = "{}"
	}
	c.emitter.EmitFinalRemainder(finalJSON, c.opts, enqueue)
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolInputEnd, ID: c.toolCallID})
	enqueue(toolstream.StreamEvent{Kind: toolstream.EventToolCall, ID: c.toolCallID, ToolName: c.toolName, Input: finalJSON})
	c.started = false
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
