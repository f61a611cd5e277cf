package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/shopledger/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func setupMeteredRouter(t *testing.T) (*gin.Engine, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp, err := telemetry.NewMeterProviderWithReader(reader, "shopledger-test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	mw, err := HTTPMetrics(mp)
	require.NoError(t, err)

	router := gin.New()
	router.Use(mw)
	router.GET("/sales/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	router.POST("/recoveries", func(c *gin.Context) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false})
	})
	return router, reader
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}
	require.Failf(t, "metric not found", "no metric named %q", name)
	return nil
}

func TestHTTPMetrics_Disabled(t *testing.T) {
	mw, err := HTTPMetrics(nil)
	require.NoError(t, err)
	w := serve(newTestRouter(mw), httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPMetrics_RequestCounter(t *testing.T) {
	router, reader := setupMeteredRouter(t)

	serve(router, httptest.NewRequest(http.MethodGet, "/sales/a", nil))
	serve(router, httptest.NewRequest(http.MethodGet, "/sales/b", nil))
	serve(router, httptest.NewRequest(http.MethodPost, "/recoveries", nil))
	serve(router, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	sum, ok := findMetric(t, reader, "http_server_request_total").(metricdata.Sum[int64])
	require.True(t, ok)

	got := map[string]int64{}
	for _, dp := range sum.DataPoints {
		route, _ := dp.Attributes.Value(telemetry.AttrHTTPRoute)
		status, _ := dp.Attributes.Value(telemetry.AttrHTTPStatusCode)
		got[route.AsString()+" "+status.Emit()] += dp.Value
	}
	assert.Equal(t, map[string]int64{
		"/sales/:id 200":  2,
		"/recoveries 422": 1,
		"unknown 404":     1,
	}, got)
}

func TestHTTPMetrics_DurationAndActiveRequests(t *testing.T) {
	router, reader := setupMeteredRouter(t)

	serve(router, httptest.NewRequest(http.MethodGet, "/sales/a", nil))

	hist, ok := findMetric(t, reader, "http_server_request_duration_seconds").(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)

	active, ok := findMetric(t, reader, "http_server_active_requests").(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, active.DataPoints, 1)
	assert.Equal(t, int64(0), active.DataPoints[0].Value)
}
