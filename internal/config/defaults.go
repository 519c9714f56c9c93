package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/turtacn/embedscope/internal/domain/pointcloud"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost            = "0.0.0.0"
	DefaultServerPort            = 8080
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 30 * time.Second
	DefaultServerShutdownTimeout = 10 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultFetchEndpoint    = "http://localhost:6006"
	DefaultFetchGraphQLPath = "/graphql"
	DefaultFetchTimeout     = 60 * time.Second
	DefaultFetchPolicy      = PolicyNetworkOnly
	DefaultFetchCacheTTL    = 10 * time.Minute

	DefaultDisplayMode = string(pointcloud.DisplayMode3D)
	DefaultWindow      = pointcloud.DefaultWindow

	DefaultRedisMode      = "standalone"
	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "embedscope:"
	DefaultRedisPoolSize  = 10

	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaTopic        = "embedscope.lifecycle"
	DefaultKafkaGroupID      = "embedscope-tail"
	DefaultKafkaAcks         = "one"
	DefaultKafkaBatchTimeout = 100 * time.Millisecond
	DefaultKafkaWriteTimeout = 10 * time.Second

	DefaultMinIOEndpoint      = "localhost:9000"
	DefaultMinIOBucket        = "embedscope-snapshots"
	DefaultMinIOPrefix        = "snapshots/"
	DefaultMinIOPresignExpiry = time.Hour

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "embedscope"
)

// setViperDefaults registers every key with viper.  Besides seeding booleans
// whose zero value is not the default, registration is what lets
// AutomaticEnv resolve EMBEDSCOPE_* variables during Unmarshal.
func setViperDefaults(v *viper.Viper) {
	umap := pointcloud.DefaultUMAPParameters()
	hdb := pointcloud.DefaultHDBSCANParameters()

	defaults := map[string]interface{}{
		"server.host":             DefaultServerHost,
		"server.port":             DefaultServerPort,
		"server.mode":             DefaultServerMode,
		"server.read_timeout":     DefaultServerReadTimeout,
		"server.write_timeout":    DefaultServerWriteTimeout,
		"server.shutdown_timeout": DefaultServerShutdownTimeout,
		"server.allowed_origins":  []string{},

		"log.level":  DefaultLogLevel,
		"log.format": DefaultLogFormat,

		"fetch.endpoint":     DefaultFetchEndpoint,
		"fetch.api_key":      "",
		"fetch.graphql_path": DefaultFetchGraphQLPath,
		"fetch.timeout":      DefaultFetchTimeout,
		"fetch.policy":       DefaultFetchPolicy,
		"fetch.cache_ttl":    DefaultFetchCacheTTL,

		"pointcloud.embedding_id":                      "",
		"pointcloud.display_mode":                      DefaultDisplayMode,
		"pointcloud.window":                            DefaultWindow,
		"pointcloud.umap.min_dist":                     umap.MinDist,
		"pointcloud.umap.n_neighbors":                  umap.NNeighbors,
		"pointcloud.umap.n_samples":                    umap.NSamples,
		"pointcloud.hdbscan.min_cluster_size":          hdb.MinClusterSize,
		"pointcloud.hdbscan.cluster_min_samples":       hdb.ClusterMinSamples,
		"pointcloud.hdbscan.cluster_selection_epsilon": hdb.ClusterSelectionEpsilon,
		"pointcloud.metric.type":                       "",
		"pointcloud.metric.dimension":                  "",
		"pointcloud.metric.metric":                     "",

		"redis.enabled":    false,
		"redis.mode":       DefaultRedisMode,
		"redis.addr":       DefaultRedisAddr,
		"redis.password":   "",
		"redis.db":         0,
		"redis.pool_size":  DefaultRedisPoolSize,
		"redis.key_prefix": DefaultRedisKeyPrefix,
		"redis.ttl":        DefaultFetchCacheTTL,

		"kafka.enabled":            false,
		"kafka.brokers":            []string{DefaultKafkaBroker},
		"kafka.topic":              DefaultKafkaTopic,
		"kafka.group_id":           DefaultKafkaGroupID,
		"kafka.acks":               DefaultKafkaAcks,
		"kafka.compression":        "",
		"kafka.batch_timeout":      DefaultKafkaBatchTimeout,
		"kafka.write_timeout":      DefaultKafkaWriteTimeout,
		"kafka.auto_create_topics": false,
		"kafka.num_partitions":     3,
		"kafka.replication_factor": 1,

		"minio.endpoint":       DefaultMinIOEndpoint,
		"minio.access_key":     "",
		"minio.secret_key":     "",
		"minio.bucket":         DefaultMinIOBucket,
		"minio.region":         "",
		"minio.use_ssl":        false,
		"minio.prefix":         DefaultMinIOPrefix,
		"minio.presign_expiry": DefaultMinIOPresignExpiry,
		"minio.retention_days": 0,

		"metrics.enabled":   true,
		"metrics.path":      DefaultMetricsPath,
		"metrics.namespace": DefaultMetricsNamespace,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// ApplyDefaults fills zero-value fields in cfg.  Fields already set are left
// unchanged so that explicit configuration always wins.  Booleans cannot be
// told apart from "unset" here; they get their defaults from viper.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Fetch ─────────────────────────────────────────────────────────────────
	if cfg.Fetch.Endpoint == "" {
		cfg.Fetch.Endpoint = DefaultFetchEndpoint
	}
	if cfg.Fetch.GraphQLPath == "" {
		cfg.Fetch.GraphQLPath = DefaultFetchGraphQLPath
	}
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = DefaultFetchTimeout
	}
	if cfg.Fetch.Policy == "" {
		cfg.Fetch.Policy = DefaultFetchPolicy
	}
	if cfg.Fetch.CacheTTL == 0 {
		cfg.Fetch.CacheTTL = DefaultFetchCacheTTL
	}

	// ── Point cloud ───────────────────────────────────────────────────────────
	// min_dist and cluster_selection_epsilon default to 0, their zero value.
	pc := &cfg.PointCloud
	if pc.DisplayMode == "" {
		pc.DisplayMode = DefaultDisplayMode
	}
	if pc.Window == 0 {
		pc.Window = DefaultWindow
	}
	umap := pointcloud.DefaultUMAPParameters()
	if pc.UMAP.NNeighbors == 0 {
		pc.UMAP.NNeighbors = umap.NNeighbors
	}
	if pc.UMAP.NSamples == 0 {
		pc.UMAP.NSamples = umap.NSamples
	}
	hdb := pointcloud.DefaultHDBSCANParameters()
	if pc.HDBSCAN.MinClusterSize == 0 {
		pc.HDBSCAN.MinClusterSize = hdb.MinClusterSize
	}
	if pc.HDBSCAN.ClusterMinSamples == 0 {
		pc.HDBSCAN.ClusterMinSamples = hdb.ClusterMinSamples
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Mode == "" {
		cfg.Redis.Mode = DefaultRedisMode
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = DefaultRedisPoolSize
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = cfg.Fetch.CacheTTL
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.Acks == "" {
		cfg.Kafka.Acks = DefaultKafkaAcks
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = DefaultKafkaBatchTimeout
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = DefaultKafkaWriteTimeout
	}
	if cfg.Kafka.NumPartitions == 0 {
		cfg.Kafka.NumPartitions = 3
	}
	if cfg.Kafka.ReplicationFactor == 0 {
		cfg.Kafka.ReplicationFactor = 1
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.Prefix == "" {
		cfg.MinIO.Prefix = DefaultMinIOPrefix
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = DefaultMinIOPresignExpiry
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
