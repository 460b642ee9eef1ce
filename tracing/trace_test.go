package tracing

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartNewSpan(t *testing.T) {
	tp, err := InitTracerProvider(logr.Discard(), Options{})
	require.NoError(t, err)
	defer Shutdown(context.Background(), logr.Discard(), tp)

	ctx, span := StartNewSpan(context.Background(), "recovery_session", attribute.String("session.id", "abc"))
	defer span.End()

	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.IsRecording())

	_, child := StartNewSpan(ctx, "reader_loop")
	defer child.End()
	assert.Equal(t, span.SpanContext().TraceID(), child.SpanContext().TraceID())
}

func TestInitTracerProvider_RecoveryResource(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := InitTracerProvider(logr.Discard(), Options{
		ServiceVersion: "0.3.0",
		Attributes:     RecoveryAttributes("/dev/sdb", "disk.img", "disk.map"),
		Exporter:       exp,
	})
	require.NoError(t, err)
	defer Shutdown(context.Background(), logr.Discard(), tp)

	_, span := StartNewSpan(context.Background(), "recovery_session", SessionAttributes("abc", "1.26", "1.25", true)...)
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	resource := map[attribute.Key]string{}
	for _, kv := range spans[0].Resource.Attributes() {
		resource[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, ServiceName, resource["service.name"])
	assert.Equal(t, "0.3.0", resource["service.version"])
	assert.Equal(t, "/dev/sdb", resource["rescue.input"])
	assert.Equal(t, "disk.map", resource["rescue.map"])

	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Attributes {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "1.26", attrs["ddrescue.version"])
	assert.Equal(t, "true", attrs["profile.clamped"])
}
