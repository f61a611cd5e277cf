package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracedRouter(t *testing.T) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	router := gin.New()
	router.Use(RequestID(), Tracing(TracingConfig{
		Enabled:        true,
		ServiceName:    "shopledger-test",
		TracerProvider: tp,
	}), SpanAttributes())
	router.GET("/sales/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	router.GET("/broken", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	router.GET("/missing", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})
	return router, sr
}

func spanNamed(t *testing.T, sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range sr.Ended() {
		if s.Name() == name {
			return s
		}
	}
	require.Failf(t, "span not found", "no span named %q", name)
	return nil
}

func TestTracing_Disabled(t *testing.T) {
	router := newTestRouter(Tracing(TracingConfig{Enabled: false}), SpanAttributes())
	w := serve(router, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTracing_NamesSpanByRoute(t *testing.T) {
	router, sr := setupTracedRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/sales/0b8e6c1e-4a57-4a3b-9d53-0d1b7b1f0a11", nil)
	req.Header.Set(RequestIDHeader, "req-trace-1")
	w := serve(router, req)
	require.Equal(t, http.StatusOK, w.Code)

	span := spanNamed(t, sr, "GET /sales/:id")
	attrs := map[string]string{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "req-trace-1", attrs["request_id"])
}

func TestSpanAttributes_MarksServerErrors(t *testing.T) {
	router, sr := setupTracedRouter(t)

	serve(router, httptest.NewRequest(http.MethodGet, "/broken", nil))
	serve(router, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, codes.Error, spanNamed(t, sr, "GET /broken").Status().Code)
	assert.NotEqual(t, codes.Error, spanNamed(t, sr, "GET /missing").Status().Code)
}
