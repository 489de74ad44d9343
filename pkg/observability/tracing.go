package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the OpenTelemetry tracer name.
	TracerName = "phishscan"
)

// Stage names one step of the classification pipeline.
type Stage string

const (
	StageClassify   Stage = "classify"
	StageReputation Stage = "reputation_query"
	StageShortener  Stage = "shortener_resolve"
	StageFeedSync   Stage = "feed_sync"
	StageScan       Stage = "page_scan"
)

func (s Stage) String() string {
	return string(s)
}

// TraceClassification starts a span covering one URL classification.
func TraceClassification(ctx context.Context, rawURL string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, StageClassify.String(),
		trace.WithAttributes(attribute.String("url.raw", rawURL)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// TraceReputation starts a client span for a reputation service lookup.
func TraceReputation(ctx context.Context, service, url string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, StageReputation.String(),
		trace.WithAttributes(
			attribute.String("reputation.service", service),
			attribute.String("url.full", url),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// TraceStage starts an internal span for any other pipeline stage.
func TraceStage(ctx context.Context, stage Stage, attrs map[string]string) (context.Context, trace.Span) {
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, attribute.String(stage.String()+"."+k, v))
	}
	return otel.Tracer(TracerName).Start(ctx, stage.String(),
		trace.WithAttributes(kv...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// RecordVerdict records the classification outcome on a span.
func RecordVerdict(span trace.Span, malicious bool, source, reason string) {
	span.SetAttributes(
		attribute.Bool("verdict.malicious", malicious),
		attribute.String("verdict.source", source),
		attribute.String("verdict.reason", reason),
	)
}

// RecordInconclusive marks a lookup that produced no usable answer.
func RecordInconclusive(span trace.Span, tag string) {
	span.SetAttributes(attribute.String("reputation.error", tag))
	span.SetStatus(codes.Error, tag)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// ExtractTraceID extracts the trace ID from a context.
func ExtractTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// ExtractSpanID extracts the span ID from a context.
func ExtractSpanID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.SpanID().String()
}
