package prometheus

import (
	"strconv"
	"time"

	"github.com/turtacn/embedscope/internal/domain/pointcloud"
)

// AppMetrics holds all engine metrics.  It satisfies the recorder ports of
// the embedding and pointcloud packages.
type AppMetrics struct {
	// Fetch
	FetchIssuedTotal   CounterVec
	FetchRequestsTotal CounterVec
	FetchDuration      HistogramVec
	FetchInFlight      GaugeVec
	FetchStaleTotal    CounterVec

	// Point cloud
	PointCloudPoints    GaugeVec
	PointCloudClusters  GaugeVec
	SelectionEventTotal CounterVec

	// Fetch cache
	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec

	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	ErrorsTotal CounterVec
}

// Default Buckets
var (
	DefaultHTTPDurationBuckets  = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultFetchDurationBuckets = []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60, 120}
)

// NewAppMetrics registers every metric with collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.FetchIssuedTotal = collector.RegisterCounter("fetch_issued_total", "Point cloud fetches issued")
	m.FetchRequestsTotal = collector.RegisterCounter("fetch_requests_total", "Point cloud fetches by outcome", "outcome")
	m.FetchDuration = collector.RegisterHistogram("fetch_duration_seconds", "Point cloud fetch duration", DefaultFetchDurationBuckets, "outcome")
	m.FetchInFlight = collector.RegisterGauge("fetch_in_flight", "1 while a fetch is outstanding")
	m.FetchStaleTotal = collector.RegisterCounter("fetch_stale_results_total", "Fetch results discarded because a newer request superseded them")

	m.PointCloudPoints = collector.RegisterGauge("pointcloud_points", "Points in the current point cloud", "role")
	m.PointCloudClusters = collector.RegisterGauge("pointcloud_clusters", "Clusters in the current point cloud")
	m.SelectionEventTotal = collector.RegisterCounter("selection_events_total", "Selection interactions", "event")

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Fetch cache hits")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Fetch cache misses")

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")

	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type")
	return m
}

func (m *AppMetrics) RecordFetchIssued() {
	m.FetchIssuedTotal.WithLabelValues().Inc()
}

// RecordFetchOutcome counts a finished fetch.  Stale results are also
// counted separately.
func (m *AppMetrics) RecordFetchOutcome(outcome string, elapsed time.Duration) {
	m.FetchRequestsTotal.WithLabelValues(outcome).Inc()
	m.FetchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if outcome == "stale" {
		m.FetchStaleTotal.WithLabelValues().Inc()
	}
	if outcome == "failed" {
		m.ErrorsTotal.WithLabelValues("coordinator", "fetch_failed").Inc()
	}
}

func (m *AppMetrics) SetFetchInFlight(inFlight bool) {
	v := 0.0
	if inFlight {
		v = 1
	}
	m.FetchInFlight.WithLabelValues().Set(v)
}

func (m *AppMetrics) RecordCacheAccess(hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues().Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues().Inc()
	}
}

func (m *AppMetrics) RecordDataset(primary, reference, clusters int) {
	m.PointCloudPoints.WithLabelValues(string(pointcloud.RolePrimary)).Set(float64(primary))
	m.PointCloudPoints.WithLabelValues(string(pointcloud.RoleReference)).Set(float64(reference))
	m.PointCloudClusters.WithLabelValues().Set(float64(clusters))
}

func (m *AppMetrics) RecordSelection(event string) {
	m.SelectionEventTotal.WithLabelValues(event).Inc()
}

// RecordHTTPRequest records one served request.  path should be the route
// template, not the raw URL, to bound cardinality.
func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if statusCode >= 500 {
		m.ErrorsTotal.WithLabelValues("http", "server_error").Inc()
	}
}

// RecordError counts an error of errorType raised by component.
func (m *AppMetrics) RecordError(component, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
