package middleware

import (
	"time"

	"github.com/erp/shopledger/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// httpMetrics holds all HTTP-related metrics instruments.
type httpMetrics struct {
	requestTotal    *telemetry.Counter
	requestDuration *telemetry.Histogram
	responseSize    *telemetry.Histogram
	activeRequests  metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	requestTotal, err := telemetry.NewCounter(
		meter,
		"http_server_request_total",
		"Total number of HTTP requests",
		"{request}",
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency distribution in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	responseSize, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_response_size_bytes",
		Description: "HTTP response body size distribution in bytes",
		Unit:        "By",
		Boundaries:  []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
	})
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"http_server_active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &httpMetrics{
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		responseSize:    responseSize,
		activeRequests:  activeRequests,
	}, nil
}

// HTTPMetrics returns a Gin middleware that collects HTTP metrics:
//   - http_server_request_total by method, route and status code
//   - http_server_request_duration_seconds by method and route
//   - http_server_response_size_bytes by method and route
//   - http_server_active_requests
//
// A nil or disabled provider yields a pass-through middleware.
func HTTPMetrics(mp *telemetry.MeterProvider) (gin.HandlerFunc, error) {
	if mp == nil || !mp.IsEnabled() {
		return func(c *gin.Context) { c.Next() }, nil
	}
	metrics, err := newHTTPMetrics(mp.Meter("http.server"))
	if err != nil {
		return nil, err
	}
	return metrics.middleware, nil
}

func (m *httpMetrics) middleware(c *gin.Context) {
	ctx := c.Request.Context()
	start := time.Now()

	m.activeRequests.Add(ctx, 1)
	c.Next()
	m.activeRequests.Add(ctx, -1)

	// Route pattern, not path, to keep label cardinality bounded
	route := c.FullPath()
	if route == "" {
		route = "unknown"
	}
	base := []attribute.KeyValue{
		telemetry.AttrHTTPMethod.String(c.Request.Method),
		telemetry.AttrHTTPRoute.String(route),
	}

	m.requestTotal.Inc(ctx, append(base, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))...)
	m.requestDuration.RecordDuration(ctx, time.Since(start), base...)
	if size := c.Writer.Size(); size > 0 {
		m.responseSize.Record(ctx, float64(size), base...)
	}
}
