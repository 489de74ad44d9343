package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TracingOptions configures the process tracer provider.
type TracingOptions struct {
	ServiceName string
	Version     string
	SampleRatio float64
	// Processors receive every sampled span, e.g. an exporter or a test recorder.
	Processors []sdktrace.SpanProcessor
}

// BuildResource describes this process to span consumers.
func BuildResource(serviceName, version string) *resource.Resource {
	kvs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if version != "" {
		kvs = append(kvs, semconv.ServiceVersion(version))
	}
	res, _ := resource.New(context.Background(), resource.WithAttributes(kvs...))
	return res
}

// InstallTracing registers a global tracer provider so pipeline spans get
// real trace IDs, which the log handler attaches to every record. The
// returned function flushes and shuts the provider down.
func InstallTracing(opts TracingOptions) func(context.Context) error {
	if opts.ServiceName == "" {
		opts.ServiceName = TracerName
	}
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(BuildResource(opts.ServiceName, opts.Version)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))),
	}
	for _, p := range opts.Processors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(p))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
