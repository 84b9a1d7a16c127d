package transducer

import (
	"context"

	"github.com/lanehollow/toolstream/pkg/protocol"
	"github.com/lanehollow/toolstream/pkg/telemetry"
	"github.com/lanehollow/toolstream/pkg/toolstream"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NewInstrumented builds a Transducer the same way New does, then wraps it
// so each Transform/Flush call runs inside an OpenTelemetry span when
// settings enables telemetry. With settings nil or settings.IsEnabled
// false, the returned Transducer behaves exactly like New's (GetTracer
// hands back a no-op tracer, so span overhead is a single no-op Start).
func NewInstrumented(
	ctx context.Context,
	kind protocol.Kind,
	tools []toolstream.ToolDescriptor,
	opts toolstream.ParserOptions,
	settings *telemetry.Settings,
) (toolstream.Transducer, error) {
	inner, err := New(kind, tools, opts)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}

	return &instrumented{
		inner:  inner,
		ctx:    ctx,
		tracer: telemetry.GetTracer(settings),
		attrs:  telemetry.GetBaseAttributes(string(kind), names, settings),
	}, nil
}

// instrumented wraps a Transducer with a span around each Transform and
// Flush call. It holds no buffering or parsing state of its own; every
// call is a pure pass-through to inner once the span is recorded.
type instrumented struct {
	inner  toolstream.Transducer
	ctx    context.Context
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

func (t *instrumented) Transform(e toolstream.UpstreamEvent, enqueue toolstream.EnqueueFunc) {
	attrs := append(append([]attribute.KeyValue{}, t.attrs...), attribute.String("toolstream.upstream.kind", string(e.Kind)))
	_, _ = telemetry.RecordSpan(t.ctx, t.tracer, telemetry.SpanOptions{
		Name:        "toolstream.transform",
		Attributes:  attrs,
		EndWhenDone: true,
	}, func(_ context.Context, _ trace.Span) (struct{}, error) {
		t.inner.Transform(e, enqueue)
		return struct{}{}, nil
	})
}

func (t *instrumented) Flush(enqueue toolstream.EnqueueFunc) {
	_, _ = telemetry.RecordSpan(t.ctx, t.tracer, telemetry.SpanOptions{
		Name:        "toolstream.flush",
		Attributes:  t.attrs,
		EndWhenDone: true,
	}, func(_ context.Context, _ trace.Span) (struct{}, error) {
		t.inner.Flush(enqueue)
		return struct{}{}, nil
	})
}
