// Package tracing sets up OpenTelemetry for recovery sessions. Spans are
// exported to Jaeger when enabled and dropped otherwise.
package tracing

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const ServiceName = "rescue-monitor"

type Options struct {
	EnableJaeger   bool
	JaegerEndpoint string
	// ServiceVersion is recorded on the resource of every span.
	ServiceVersion string
	// Attributes describe the recovery, e.g. the rescued device, and are
	// added to the resource.
	Attributes []attribute.KeyValue
	// Exporter receives spans in addition to Jaeger.
	Exporter tracesdk.SpanExporter
}

// RecoveryAttributes describe the devices a recovery reads and writes.
func RecoveryAttributes(input, output, mapfile string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("rescue.input", input),
		attribute.String("rescue.output", output),
	}
	if mapfile != "" {
		attrs = append(attrs, attribute.String("rescue.map", mapfile))
	}
	return attrs
}

// SessionAttributes identify a session span and the decoding it used.
func SessionAttributes(sessionID, ddrescueVersion, profile string, clamped bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("session.id", sessionID),
		attribute.String("ddrescue.version", ddrescueVersion),
		attribute.String("profile", profile),
		attribute.Bool("profile.clamped", clamped),
	}
}

func newJaegerExporter(endpoint string) (tracesdk.SpanExporter, error) {
	exp, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)),
	)
	if err != nil {
		return nil, err
	}
	return exp, nil
}

func InitTracerProvider(log logr.Logger, o Options) (*tracesdk.TracerProvider, error) {
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(ServiceName)}
	if o.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(o.ServiceVersion))
	}
	attrs = append(attrs, o.Attributes...)
	tracerOptions := []tracesdk.TracerProviderOption{
		tracesdk.WithSampler(tracesdk.AlwaysSample()),
		tracesdk.WithResource(resource.NewWithAttributes(semconv.SchemaURL, attrs...)),
	}
	if o.Exporter != nil {
		tracerOptions = append(tracerOptions, tracesdk.WithSyncer(o.Exporter))
	}
	if o.EnableJaeger {
		exp, err := newJaegerExporter(o.JaegerEndpoint)
		if err != nil {
			log.Error(err, "failed to create jaeger exporter")
			return nil, err
		}
		tracerOptions = append(tracerOptions,
			tracesdk.WithBatcher(exp))
	}

	tp := tracesdk.NewTracerProvider(tracerOptions...)
	otel.SetTracerProvider(tp)

	return tp, nil
}

func Shutdown(ctx context.Context, log logr.Logger, tp *tracesdk.TracerProvider) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		log.Error(err, "error shutting down tracer provider")
	}
}

// StartNewSpan starts a span on the global tracer provider.
func StartNewSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("").Start(ctx, name)
	span.SetAttributes(attrs...)
	return ctx, span
}
