package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/textpipeline/internal/tracing"
)

// TestAnalyzeTracing checks that an analyze request produces a server span
// with the pipeline spans nested in the same trace
func TestAnalyzeTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	// built after the provider swap so the analyzer picks up its tracer
	h := tracing.HTTPMiddleware("textpipeline")(setupTestHandler(t, testConfig(), nil))

	req := httptest.NewRequest(http.MethodPost, "/api/analyze",
		strings.NewReader(`{"text":"This is a test article about machine learning.","options":{"toLowercase":true,"countWords":true}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, tp.ForceFlush(context.Background()))
	spans := exporter.GetSpans()
	require.NotEmpty(t, spans, "no spans were recorded")

	server := findSpan(spans, "POST /api/analyze")
	require.NotNil(t, server, "server span not found, have %v", getSpanNames(spans))
	assert.Equal(t, trace.SpanKindServer, server.SpanKind)
	assert.True(t, hasAttribute(server, "text.length"), "text.length attribute missing")
	assert.True(t, hasAttribute(server, "pipeline.options"), "pipeline.options attribute missing")

	run := findSpan(spans, "pipeline.run")
	require.NotNil(t, run, "pipeline.run span not found, have %v", getSpanNames(spans))
	assert.Equal(t, server.SpanContext.TraceID(), run.SpanContext.TraceID())
	assert.Equal(t, server.SpanContext.SpanID(), run.Parent.SpanID())

	var operations int
	for _, s := range spans {
		if s.Name == "pipeline.operation" {
			operations++
			assert.Equal(t, run.SpanContext.SpanID(), s.Parent.SpanID())
		}
	}
	assert.Equal(t, 2, operations)
}

// TestAnalyzeTracingContinuesRemoteTrace checks that a traceparent header from
// the caller is continued
func TestAnalyzeTracingContinuesRemoteTrace(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	// InitTracer normally installs the propagator
	prevProp := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prevProp) })

	h := tracing.HTTPMiddleware("textpipeline")(setupTestHandler(t, testConfig(), nil))

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"text":"hello","options":{"toUppercase":true}}`))
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	h.ServeHTTP(httptest.NewRecorder(), req)

	server := findSpan(exporter.GetSpans(), "POST /api/analyze")
	require.NotNil(t, server)
	assert.Equal(t, traceID, server.SpanContext.TraceID().String())
	assert.True(t, server.Parent.IsRemote())
}

func findSpan(spans tracetest.SpanStubs, name string) *tracetest.SpanStub {
	for i := range spans {
		if spans[i].Name == name {
			return &spans[i]
		}
	}
	return nil
}

func hasAttribute(span *tracetest.SpanStub, key string) bool {
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			return true
		}
	}
	return false
}

func getSpanNames(spans tracetest.SpanStubs) []string {
	names := make([]string, len(spans))
	for i, span := range spans {
		names[i] = span.Name
	}
	return names
}
