package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	result := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			result[m.Name] = m.Data
		}
	}
	return result
}

func TestRecorder(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	r, err := New(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	r.RecordMount(ctx, "ok")
	r.RecordMount(ctx, "ok")
	r.RecordMount(ctx, "unavailable")
	r.RecordSubmit(ctx, "skipped", 250*time.Millisecond)
	r.RecordClose(ctx)
	r.PageOpened(ctx)
	r.PageOpened(ctx)
	r.PageClosed(ctx)
	r.RecordMessage(ctx, "in", "mount")

	data := collect(t, reader)

	mounts, ok := data["opineeo.widget.mounts"].(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range mounts.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
	assert.Len(t, mounts.DataPoints, 2)

	latency, ok := data["opineeo.widget.submission.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, latency.DataPoints, 1)
	assert.Equal(t, uint64(1), latency.DataPoints[0].Count)
	assert.InDelta(t, 0.25, latency.DataPoints[0].Sum, 1e-9)

	pages, ok := data["opineeo.host.pages.active"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, pages.DataPoints, 1)
	assert.Equal(t, int64(1), pages.DataPoints[0].Value)
}

func TestPrometheus_Handler(t *testing.T) {
	p, err := NewPrometheus()
	require.NoError(t, err)
	defer func() {
		_ = p.Shutdown(context.Background())
	}()

	p.Recorder.RecordMount(context.Background(), "fetched")

	rec := httptest.NewRecorder()
	p.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "opineeo_widget_mounts")
	assert.Contains(t, string(body), `outcome="fetched"`)
}
