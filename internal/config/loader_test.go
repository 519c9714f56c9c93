package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/embedscope/internal/domain/metric"
	"github.com/turtacn/embedscope/pkg/errors"
)

const validConfigYAML = `
server:
  port: 9090
  mode: debug
log:
  level: debug
  format: console
fetch:
  endpoint: "http://phoenix:6006"
  api_key: "secret"
  timeout: 30s
pointcloud:
  embedding_id: "emb-1"
  display_mode: 2d
  window: 24h
  umap:
    min_dist: 0.1
    n_neighbors: 15
    n_samples: 200
  hdbscan:
    min_cluster_size: 5
  metric:
    type: performance
    metric: f1Score
  short_names:
    f1Score: "F1"
  datasets:
    primary:
      start: "2024-01-01T00:00:00Z"
      end: "2024-01-10T00:00:00Z"
    reference:
      start: "2023-12-01T00:00:00Z"
      end: "2023-12-31T00:00:00Z"
redis:
  enabled: true
  addr: "cache:6379"
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "http://phoenix:6006", cfg.Fetch.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)

	pc := cfg.PointCloud
	assert.Equal(t, "emb-1", pc.EmbeddingID)
	assert.Equal(t, "2d", pc.DisplayMode)
	assert.Equal(t, 24*time.Hour, pc.Window)
	assert.Equal(t, 0.1, pc.UMAP.MinDist)
	assert.Equal(t, 15, pc.UMAP.NNeighbors)
	assert.Equal(t, 5, pc.HDBSCAN.MinClusterSize)
	assert.Equal(t, 1, pc.HDBSCAN.ClusterMinSamples, "unset field takes the default")
	require.NotNil(t, pc.Datasets.Reference)

	def, err := pc.MetricDefinition()
	require.NoError(t, err)
	assert.Equal(t, metric.Performance{MetricKey: metric.F1Score}, def)
	assert.Equal(t, "F1", pc.ShortNameRegistry()[metric.F1Score], "lowercased viper key is mapped back")

	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultKafkaTopic, cfg.Kafka.Topic)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfig))
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "pointcloud: ["))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfig))
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	_, err := Load(createTempConfigFile(t, `
pointcloud:
  embedding_id: "emb-1"
  umap:
    min_dist: 2
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "pointcloud.umap")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("EMBEDSCOPE_SERVER_PORT", "7070")
	t.Setenv("EMBEDSCOPE_POINTCLOUD_EMBEDDING_ID", "from-env")

	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.PointCloud.EmbeddingID)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("EMBEDSCOPE_POINTCLOUD_EMBEDDING_ID", "env-only")
	t.Setenv("EMBEDSCOPE_FETCH_POLICY", PolicyNetworkOnly)
	t.Setenv("EMBEDSCOPE_POINTCLOUD_METRIC_TYPE", "drift")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.PointCloud.EmbeddingID)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultDisplayMode, cfg.PointCloud.DisplayMode)

	def, err := cfg.PointCloud.MetricDefinition()
	require.NoError(t, err)
	assert.Equal(t, metric.Drift{}, def)
}

func TestLoadFromEnv_MissingEmbeddingID(t *testing.T) {
	_, err := LoadFromEnv()
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)

	var latest atomic.Pointer[Config]
	require.NoError(t, Watch(path, func(c *Config) { latest.Store(c) }, nil))

	updated := replaceOnce(t, validConfigYAML, "n_neighbors: 15", "n_neighbors: 40")
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	assert.Eventually(t, func() bool {
		c := latest.Load()
		return c != nil && c.PointCloud.UMAP.NNeighbors == 40
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatch_InvalidChangeReported(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)

	var failed atomic.Pointer[error]
	require.NoError(t, Watch(path, func(*Config) {}, func(err error) { failed.Store(&err) }))

	broken := replaceOnce(t, validConfigYAML, "mode: debug", "mode: bogus")
	require.NoError(t, os.WriteFile(path, []byte(broken), 0o644))

	assert.Eventually(t, func() bool {
		p := failed.Load()
		return p != nil && errors.Is(*p, errors.ErrInvalidConfig)
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(filepath.Join(t.TempDir(), "missing.yaml"), func(*Config) {}, nil)
	assert.Error(t, err)
}

func replaceOnce(t *testing.T, s, old, new string) string {
	t.Helper()
	require.Contains(t, s, old)
	return strings.Replace(s, old, new, 1)
}
