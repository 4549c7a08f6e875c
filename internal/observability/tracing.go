package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// NewTracerProvider builds an OpenTelemetry tracer provider tagged with the
// service name; exporters are attached by the composition root (cmd/server)
// per DESIGN NOTES' "no implicit globals" rule — this package never reaches
// for a package-level default exporter.
func NewTracerProvider(serviceName string, sp sdktrace.SpanProcessor) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if sp != nil {
		opts = append(opts, sdktrace.WithSpanProcessor(sp))
	}
	return sdktrace.NewTracerProvider(opts...)
}

// StartSpan starts a span on the given tracer, returning the derived
// context and the span for the caller to End().
func StartSpan(ctx context.Context, tracer trace.Tracer, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// Tracer returns the global tracer registered under name, matching the
// teacher's pattern of pulling tracers from otel's global provider once a
// TracerProvider has been installed by the composition root.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
