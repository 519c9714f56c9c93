package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/embedscope/internal/interfaces/http/handlers"
	"github.com/turtacn/embedscope/internal/interfaces/http/middleware"
	"github.com/turtacn/embedscope/internal/testutil"
)

func newTestRouter(t *testing.T) (*gin.Engine, prometheus.MetricsCollector, *testutil.MockLogger) {
	t.Helper()
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test"}, nil)
	require.NoError(t, err)
	log := testutil.NewMockLogger()
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = []string{"*"}

	r := NewRouter(RouterConfig{
		Mode:             gin.TestMode,
		HealthHandler:    handlers.NewHealthHandler("test"),
		CORS:             &cors,
		Logging:          middleware.LoggingConfig{SlowThreshold: time.Minute},
		Logger:           log,
		MetricsCollector: collector,
		HTTPRecorder:     prometheus.NewAppMetrics(collector),
	})
	return r, collector, log
}

func TestNewRouter_HealthAndMetrics(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",path="/healthz",status_code="200"} 1`)
}

func TestNewRouter_NilHandlers(t *testing.T) {
	r := NewRouter(RouterConfig{Mode: gin.TestMode})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/pointcloud", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewRouter_LogsAPIRequests(t *testing.T) {
	r, _, log := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, log.HasMessage("warn", "HTTP request completed with client error"))
}
