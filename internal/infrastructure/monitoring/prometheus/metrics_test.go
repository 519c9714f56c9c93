package prometheus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/embedscope/internal/application/embedding"
	"github.com/turtacn/embedscope/internal/domain/pointcloud"
)

var (
	_ embedding.FetchRecorder = (*AppMetrics)(nil)
	_ embedding.CacheRecorder = (*AppMetrics)(nil)
	_ pointcloud.Recorder     = (*AppMetrics)(nil)
)

func newTestAppMetrics(t *testing.T) (*AppMetrics, MetricsCollector) {
	c := newTestCollector(t)
	return NewAppMetrics(c), c
}

func TestAppMetrics_FetchLifecycle(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordFetchIssued()
	m.RecordFetchIssued()
	m.SetFetchInFlight(true)
	m.RecordFetchOutcome("resolved", 300*time.Millisecond)
	m.RecordFetchOutcome("stale", time.Second)
	m.RecordFetchOutcome("failed", 2*time.Second)
	m.SetFetchInFlight(false)

	out := scrapeMetrics(t, c)
	assert.Equal(t, 2.0, metricValue(t, out, "test_unit_fetch_issued_total"))
	assert.Equal(t, 1.0, metricValue(t, out, `test_unit_fetch_requests_total{outcome="resolved"}`))
	assert.Equal(t, 1.0, metricValue(t, out, `test_unit_fetch_requests_total{outcome="failed"}`))
	assert.Equal(t, 1.0, metricValue(t, out, "test_unit_fetch_stale_results_total"))
	assert.Equal(t, 1.0, metricValue(t, out, `test_unit_fetch_duration_seconds_count{outcome="stale"}`))
	assert.Equal(t, 0.0, metricValue(t, out, "test_unit_fetch_in_flight"))
	assert.Equal(t, 1.0, metricValue(t, out, `test_unit_errors_total{component="coordinator",error_type="fetch_failed"}`))
}

func TestAppMetrics_DatasetAndSelection(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordDataset(120, 80, 7)
	m.RecordDataset(100, 0, 4)
	m.RecordSelection(pointcloud.EventClusterClick)
	m.RecordSelection(pointcloud.EventClusterClick)

	out := scrapeMetrics(t, c)
	assert.Equal(t, 100.0, metricValue(t, out, `test_unit_pointcloud_points{role="primary"}`))
	assert.Equal(t, 0.0, metricValue(t, out, `test_unit_pointcloud_points{role="reference"}`))
	assert.Equal(t, 4.0, metricValue(t, out, "test_unit_pointcloud_clusters"))
	assert.Equal(t, 2.0, metricValue(t, out,
		`test_unit_selection_events_total{event="`+pointcloud.EventClusterClick+`"}`))
}

func TestAppMetrics_Cache(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordCacheAccess(true)
	m.RecordCacheAccess(false)
	m.RecordCacheAccess(false)

	out := scrapeMetrics(t, c)
	assert.Equal(t, 1.0, metricValue(t, out, "test_unit_cache_hits_total"))
	assert.Equal(t, 2.0, metricValue(t, out, "test_unit_cache_misses_total"))
}

func TestAppMetrics_HTTP(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordHTTPRequest("GET", "/api/v1/pointcloud", 200, 5*time.Millisecond)
	m.RecordHTTPRequest("PUT", "/api/v1/pointcloud/metric", 502, 5*time.Millisecond)

	out := scrapeMetrics(t, c)
	assert.Equal(t, 1.0, metricValue(t, out,
		`test_unit_http_requests_total{method="GET",path="/api/v1/pointcloud",status_code="200"}`))
	assert.Equal(t, 1.0, metricValue(t, out, `test_unit_errors_total{component="http",error_type="server_error"}`))
}
