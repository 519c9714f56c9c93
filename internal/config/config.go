// Package config defines the configuration of the embedscope engine.  No I/O
// happens here, only plain data types, defaults and validation; loading
// lives in loader.go.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/embedscope/internal/domain/metric"
	"github.com/turtacn/embedscope/internal/domain/pointcloud"
	"github.com/turtacn/embedscope/internal/infrastructure/database/redis"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/embedscope/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AllowedOrigins enables CORS for browser clients; "*" allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Fetch policies.
const (
	PolicyNetworkOnly = "network-only"
	PolicyCacheFirst  = "cache-first"
)

// FetchConfig points at the remote UMAP/HDBSCAN service.
type FetchConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	GraphQLPath string        `mapstructure:"graphql_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Policy      string        `mapstructure:"policy"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// UMAPConfig mirrors pointcloud.UMAPParameters.
type UMAPConfig struct {
	MinDist    float64 `mapstructure:"min_dist"`
	NNeighbors int     `mapstructure:"n_neighbors"`
	NSamples   int     `mapstructure:"n_samples"`
}

// HDBSCANConfig mirrors pointcloud.HDBSCANParameters.
type HDBSCANConfig struct {
	MinClusterSize          int     `mapstructure:"min_cluster_size"`
	ClusterMinSamples       int     `mapstructure:"cluster_min_samples"`
	ClusterSelectionEpsilon float64 `mapstructure:"cluster_selection_epsilon"`
}

// DatasetWindow is the span of a dataset as RFC 3339 strings.
type DatasetWindow struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// Bounds parses the window.
func (w DatasetWindow) Bounds() (start, end time.Time, err error) {
	start, err = time.Parse(time.RFC3339, w.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start %q: %w", w.Start, err)
	}
	end, err = time.Parse(time.RFC3339, w.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end %q: %w", w.End, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s before start %s", w.End, w.Start)
	}
	return start.UTC(), end.UTC(), nil
}

// DatasetsConfig describes the primary and optional reference dataset.  An
// empty primary window means "the trailing window ending now".
type DatasetsConfig struct {
	Primary   DatasetWindow  `mapstructure:"primary"`
	Reference *DatasetWindow `mapstructure:"reference"`
}

// PointCloudConfig seeds the session parameters.
type PointCloudConfig struct {
	EmbeddingID string            `mapstructure:"embedding_id"`
	DisplayMode string            `mapstructure:"display_mode"`
	Window      time.Duration     `mapstructure:"window"`
	UMAP        UMAPConfig        `mapstructure:"umap"`
	HDBSCAN     HDBSCANConfig     `mapstructure:"hdbscan"`
	Metric      metric.Spec       `mapstructure:"metric"`
	ShortNames  map[string]string `mapstructure:"short_names"`
	Datasets    DatasetsConfig    `mapstructure:"datasets"`
}

// UMAPParameters converts the UMAP section.
func (p PointCloudConfig) UMAPParameters() pointcloud.UMAPParameters {
	return pointcloud.UMAPParameters{MinDist: p.UMAP.MinDist, NNeighbors: p.UMAP.NNeighbors, NSamples: p.UMAP.NSamples}
}

// HDBSCANParameters converts the HDBSCAN section.
func (p PointCloudConfig) HDBSCANParameters() pointcloud.HDBSCANParameters {
	return pointcloud.HDBSCANParameters{
		MinClusterSize:          p.HDBSCAN.MinClusterSize,
		ClusterMinSamples:       p.HDBSCAN.ClusterMinSamples,
		ClusterSelectionEpsilon: p.HDBSCAN.ClusterSelectionEpsilon,
	}
}

// MetricDefinition parses the metric section.  An empty type yields nil and
// leaves the choice to the dataset-dependent default.
func (p PointCloudConfig) MetricDefinition() (metric.Definition, error) {
	if strings.TrimSpace(string(p.Metric.Type)) == "" {
		return nil, nil
	}
	return p.Metric.Definition()
}

// ShortNameRegistry merges the configured short names over the built-in
// ones.  Viper lowercases map keys, so configured keys are matched against
// the built-in keys case-insensitively to recover their casing.
func (p PointCloudConfig) ShortNameRegistry() metric.ShortNames {
	base := metric.DefaultShortNames()
	extra := make(map[string]string, len(p.ShortNames))
	for k, v := range p.ShortNames {
		for known := range base {
			if strings.EqualFold(string(known), k) {
				k = string(known)
				break
			}
		}
		extra[k] = v
	}
	return base.Merge(extra)
}

// KafkaConfig configures the lifecycle event stream.
type KafkaConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Brokers           []string      `mapstructure:"brokers"`
	Topic             string        `mapstructure:"topic"`
	GroupID           string        `mapstructure:"group_id"`
	Acks              string        `mapstructure:"acks"` // "none" | "one" | "all"
	Compression       string        `mapstructure:"compression"`
	BatchTimeout      time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	AutoCreateTopics  bool          `mapstructure:"auto_create_topics"`
	NumPartitions     int           `mapstructure:"num_partitions"`
	ReplicationFactor int           `mapstructure:"replication_factor"`
}

// MinIOConfig holds the object storage target of snapshot exports.
type MinIOConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	Region        string        `mapstructure:"region"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	Prefix        string        `mapstructure:"prefix"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
	RetentionDays int           `mapstructure:"retention_days"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Log        logging.LogConfig `mapstructure:"log"`
	Fetch      FetchConfig       `mapstructure:"fetch"`
	PointCloud PointCloudConfig  `mapstructure:"pointcloud"`
	Redis      redis.RedisConfig `mapstructure:"redis"`
	Kafka      KafkaConfig       `mapstructure:"kafka"`
	MinIO      MinIOConfig       `mapstructure:"minio"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

func invalid(format string, args ...interface{}) error {
	return errors.ErrInvalidConfig.WithDetail(fmt.Sprintf(format, args...))
}

// Validate performs semantic validation of the fully-populated Config and
// returns the first problem as ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return invalid("server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	switch c.Log.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return invalid("log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return invalid("log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Fetch.Endpoint == "" {
		return invalid("fetch.endpoint is required")
	}
	if c.Fetch.Timeout < 0 {
		return invalid("fetch.timeout must be non-negative, got %s", c.Fetch.Timeout)
	}
	switch c.Fetch.Policy {
	case PolicyNetworkOnly:
	case PolicyCacheFirst:
		if !c.Redis.Enabled {
			return invalid("fetch.policy %q requires redis.enabled", c.Fetch.Policy)
		}
	default:
		return invalid("fetch.policy %q is invalid; expected network-only|cache-first", c.Fetch.Policy)
	}

	if err := c.PointCloud.validate(); err != nil {
		return err
	}

	if c.Redis.Enabled {
		switch c.Redis.Mode {
		case "standalone":
			if c.Redis.Addr == "" {
				return invalid("redis.addr is required")
			}
		case "sentinel":
			if c.Redis.MasterName == "" || len(c.Redis.SentinelAddrs) == 0 {
				return invalid("redis sentinel mode requires master_name and sentinel_addrs")
			}
		case "cluster":
			if len(c.Redis.ClusterAddrs) == 0 {
				return invalid("redis cluster mode requires cluster_addrs")
			}
		default:
			return invalid("redis.mode %q is invalid; expected standalone|sentinel|cluster", c.Redis.Mode)
		}
		if c.Redis.DB < 0 {
			return invalid("redis.db must be >= 0, got %d", c.Redis.DB)
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return invalid("kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.Topic == "" {
			return invalid("kafka.topic is required")
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid("metrics.path %q must start with /", c.Metrics.Path)
	}
	return nil
}

// ValidateMinIO checks the section the export command needs.  It is not part
// of Validate because only export talks to object storage.
func (c *Config) ValidateMinIO() error {
	if c.MinIO.Endpoint == "" {
		return invalid("minio.endpoint is required")
	}
	if c.MinIO.Bucket == "" {
		return invalid("minio.bucket is required")
	}
	if c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "" {
		return invalid("minio.access_key and minio.secret_key are required")
	}
	return nil
}

func (p PointCloudConfig) validate() error {
	if strings.TrimSpace(p.EmbeddingID) == "" {
		return invalid("pointcloud.embedding_id is required")
	}
	if _, err := pointcloud.ParseDisplayMode(p.DisplayMode); err != nil {
		return invalid("pointcloud.display_mode %q is invalid; expected 2d|3d", p.DisplayMode)
	}
	if p.Window <= 0 {
		return invalid("pointcloud.window must be positive, got %s", p.Window)
	}
	if err := p.UMAPParameters().Validate(); err != nil {
		return invalid("pointcloud.umap: %v", err)
	}
	if err := p.HDBSCANParameters().Validate(); err != nil {
		return invalid("pointcloud.hdbscan: %v", err)
	}
	def, err := p.MetricDefinition()
	if err != nil {
		return invalid("pointcloud.metric: %v", err)
	}
	if def != nil {
		if _, err := metric.ResolveLabel(def, p.ShortNameRegistry()); err != nil {
			return invalid("pointcloud.metric: %v", err)
		}
	}
	if p.Datasets.Primary != (DatasetWindow{}) {
		if _, _, err := p.Datasets.Primary.Bounds(); err != nil {
			return invalid("pointcloud.datasets.primary: %v", err)
		}
	}
	if p.Datasets.Reference != nil {
		if _, _, err := p.Datasets.Reference.Bounds(); err != nil {
			return invalid("pointcloud.datasets.reference: %v", err)
		}
	}
	return nil
}
