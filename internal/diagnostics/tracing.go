package diagnostics

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Iron-Ham/stagehand/internal/component"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for lifecycle spans.
const TracerName = "github.com/Iron-Ham/stagehand/lifecycle"

type spanKey struct {
	componentID string
	phase       component.Phase
}

// TraceSink turns lifecycle events into OpenTelemetry spans: one span per
// run, with one child span per component phase call.
type TraceSink struct {
	tracer trace.Tracer

	mu      sync.Mutex
	runCtx  context.Context
	runSpan trace.Span
	spans   map[spanKey]trace.Span
}

// NewTraceSink creates a TraceSink using a tracer from tp.
func NewTraceSink(tp trace.TracerProvider) *TraceSink {
	return &TraceSink{
		tracer: tp.Tracer(TracerName),
		runCtx: context.Background(),
		spans:  make(map[spanKey]trace.Span),
	}
}

// Handle starts or ends the span that e refers to.
func (s *TraceSink) Handle(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Type {
	case RunStarted:
		s.endOpenSpans(e)
		ctx, span := s.tracer.Start(context.Background(), "lifecycle.run",
			trace.WithTimestamp(e.Timestamp),
			trace.WithAttributes(attribute.String("run.id", e.RunID)),
		)
		s.runCtx, s.runSpan = ctx, span

	case PhaseStarted:
		_, span := s.tracer.Start(s.runCtx, fmt.Sprintf("lifecycle.%s", e.Phase),
			trace.WithTimestamp(e.Timestamp),
			trace.WithAttributes(
				attribute.String("run.id", e.RunID),
				attribute.String("component.id", e.ComponentID),
				attribute.String("lifecycle.phase", string(e.Phase)),
			),
		)
		s.spans[spanKey{e.ComponentID, e.Phase}] = span

	case PhaseCompleted, PhaseFailed:
		key := spanKey{e.ComponentID, e.Phase}
		span, ok := s.spans[key]
		if !ok {
			return
		}
		delete(s.spans, key)
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
		}
		span.End(trace.WithTimestamp(e.Timestamp))

	case ComponentLeaked:
		if s.runSpan != nil {
			s.runSpan.AddEvent("component.leaked",
				trace.WithTimestamp(e.Timestamp),
				trace.WithAttributes(attribute.String("component.id", e.ComponentID)),
			)
		}

	case RunReady, RunAborted:
		if s.runSpan == nil {
			return
		}
		if e.Type == RunAborted {
			msg := "run aborted"
			if e.Err != nil {
				msg = e.Err.Error()
			}
			s.runSpan.SetStatus(codes.Error, msg)
		}
		s.runSpan.End(trace.WithTimestamp(e.Timestamp))
		s.runSpan = nil
	}
}

// endOpenSpans ends spans left open by an abandoned previous run.
// Must be called with s.mu held.
func (s *TraceSink) endOpenSpans(e Event) {
	for key, span := range s.spans {
		span.SetStatus(codes.Error, "abandoned")
		span.End(trace.WithTimestamp(e.Timestamp))
		delete(s.spans, key)
	}
	if s.runSpan != nil {
		s.runSpan.End(trace.WithTimestamp(e.Timestamp))
		s.runSpan = nil
	}
}

// OpenSpans returns the number of phase spans started but not yet ended.
func (s *TraceSink) OpenSpans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spans)
}

// NewStdoutTracerProvider returns a TracerProvider exporting spans as
// pretty-printed JSON to w. Callers must Shutdown it to flush.
func NewStdoutTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}
