package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/quickinvoice/internal/observability/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTracedRouter(t *testing.T) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	InstallPropagator()

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(newSampler(1)),
		sdktrace.WithSpanProcessor(rec),
	)
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	r := gin.New()
	r.Use(GinMiddleware(tp))
	return r, rec
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) attribute.Value {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestGinMiddlewareRecordsSpanWithoutCallerTrace(t *testing.T) {
	r, rec := newTracedRouter(t)

	var got trace.Span
	r.GET("/api/invoice", func(c *gin.Context) {
		got = trace.SpanFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/invoice", nil))

	assert.Equal(t, http.StatusNoContent, resp.Code)
	require.NotNil(t, got)
	assert.True(t, got.SpanContext().IsValid())

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "HTTP GET /api/invoice", ended[0].Name())
	assert.Equal(t, trace.SpanKindServer, ended[0].SpanKind())
	assert.Equal(t, int64(http.StatusNoContent), spanAttr(ended[0], "http.status_code").AsInt64())
	assert.Equal(t, got.SpanContext().TraceID(), ended[0].SpanContext().TraceID())
}

func TestGinMiddlewareJoinsCallerTrace(t *testing.T) {
	r, rec := newTracedRouter(t)

	var got trace.SpanContext
	r.GET("/ping", func(c *gin.Context) {
		got = trace.SpanFromContext(c.Request.Context()).SpanContext()
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", got.TraceID().String())

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "00f067aa0ba902b7", ended[0].Parent().SpanID().String())
}

func TestGinMiddlewareMarksServerErrors(t *testing.T) {
	r, rec := newTracedRouter(t)
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("storage unavailable"))
		c.Status(http.StatusInternalServerError)
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/boom", nil))

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "exception", ended[0].Events()[0].Name)
}

func TestRequestLogsCarryTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(newSampler(1)))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	r := gin.New()
	r.Use(logger.GinMiddleware(zap.New(core), logger.MiddlewareConfig{}))
	r.Use(GinMiddleware(tp))
	r.GET("/api/invoice", func(c *gin.Context) { c.Status(http.StatusOK) })

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/invoice", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.NotEmpty(t, fields["trace_id"])
	assert.NotEmpty(t, fields["request_id"])
}
